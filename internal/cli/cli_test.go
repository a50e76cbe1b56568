package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/autocheck/internal/app"
	"github.com/aussiebroadwan/autocheck/internal/cli"
	"github.com/aussiebroadwan/autocheck/internal/fakebackend"
	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const (
	demoUser     = "demo"
	demoPassword = "demo-password"
)

type harness struct {
	t       *testing.T
	backend *fakebackend.Server
	baseURL string
	store   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend, err := app.NewFakeBackend(app.FakeConfig{
		User:      demoUser,
		Password:  demoPassword,
		AccessTTL: time.Hour,
	}, slogx.Discard())
	require.NoError(t, err)

	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	t.Setenv("AUTOCHECK_ENV_FILE", filepath.Join(dir, "missing.env"))
	t.Setenv("AUTOCHECK_MASTER_KEY_PATH", filepath.Join(dir, "master.key"))
	t.Setenv("AUTOCHECK_LOG_LEVEL", "error")
	t.Setenv(cli.PasswordEnv, "")

	return &harness{
		t:       t,
		backend: backend,
		baseURL: ts.URL + fakebackend.BasePath,
		store:   filepath.Join(dir, "credentials.db"),
	}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()

	var stdout, stderr bytes.Buffer
	args = append([]string{"--base-url", h.baseURL, "--store", "sqlite", "--store-path", h.store}, args...)
	code := cli.Execute(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func (h *harness) ok(args ...string) string {
	h.t.Helper()
	r := h.run("", args...)
	require.Zero(h.t, r.code, "autocheck %s: %s", strings.Join(args, " "), r.stderr)
	return r.stdout
}

func (h *harness) login() {
	h.t.Helper()
	r := h.run(demoPassword+"\n", "login", "-u", demoUser)
	require.Zero(h.t, r.code, r.stderr)
	require.Equal(h.t, "signed in as demo\n", r.stdout)
}

func TestWorkflow(t *testing.T) {
	h := newHarness(t)
	h.login()

	require.Contains(t, h.ok("whoami"), demoUser)

	var brands []apisdk.Brand
	require.NoError(t, json.Unmarshal([]byte(h.ok("brands", "--json")), &brands))
	require.NotEmpty(t, brands)
	brandID := strconv.FormatInt(brands[0].ID, 10)

	var models []apisdk.CarModel
	require.NoError(t, json.Unmarshal([]byte(h.ok("models", "--brand", brandID, "--json")), &models))
	require.NotEmpty(t, models)
	modelID := strconv.FormatInt(models[0].ID, 10)

	require.Contains(t, h.ok("cars", "list"), "no cars yet")

	var car apisdk.CreatedCar
	out := h.ok("cars", "add", "--brand", brandID, "--model", modelID, "--mileage", "42000", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &car))
	require.Equal(t, int64(42000), car.InitialMileage)
	carID := strconv.FormatInt(car.ID, 10)

	list := h.ok("cars", "list")
	require.Contains(t, list, "BRAND")
	require.Contains(t, list, brands[0].Title)
	require.Contains(t, list, "42000")

	out = h.ok("services", "add", "--car", carID, "--description", "Oil change", "--hours", "1.5", "--date", "2024-03-01")
	require.Contains(t, out, "(pending)")

	var services []apisdk.Service
	require.NoError(t, json.Unmarshal([]byte(h.ok("services", "list", "--car", carID, "--json")), &services))
	require.Len(t, services, 1)
	serviceID := strconv.FormatInt(services[0].ID, 10)

	require.Equal(t, "service "+serviceID+" is now completed\n", h.ok("services", "status", serviceID, "completed"))
	require.Contains(t, h.ok("services", "list", "--car", carID), "completed")

	r := h.run("", "services", "status", serviceID, "finished")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "validation error (400)")
	require.Contains(t, r.stderr, "status")

	require.Equal(t, "removed service "+serviceID+"\n", h.ok("services", "rm", serviceID))
	require.Contains(t, h.ok("services", "list", "--car", carID), "no service records")

	require.Equal(t, "removed car "+carID+"\n", h.ok("cars", "rm", carID))

	r = h.run("", "cars", "rm", carID)
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "not found (404)")

	require.Equal(t, "signed out\n", h.ok("logout"))

	r = h.run("", "whoami")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, cli.ErrNotSignedIn.Error())
}

func TestSessionExpired(t *testing.T) {
	h := newHarness(t)
	h.login()

	h.backend.InvalidateAccessTokens()
	h.backend.SetFailRefresh(true)

	r := h.run("", "cars", "list")
	require.Equal(t, 1, r.code)
	require.Equal(t, 1, strings.Count(r.stderr, cli.ExpiredMessage))
	require.NotContains(t, r.stderr, "error:")

	// The stored session is gone.
	h.backend.SetFailRefresh(false)
	r = h.run("", "cars", "list")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, cli.ErrNotSignedIn.Error())
}

func TestSessionRestoredAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	h.login()

	before := h.backend.Stats().Refreshes
	h.ok("cars", "list")
	h.ok("cars", "list")

	// Each invocation starts with only the stored refresh token.
	require.Equal(t, before+2, h.backend.Stats().Refreshes)
}

func TestLoginErrors(t *testing.T) {
	h := newHarness(t)

	r := h.run("wrong\n", "login", "-u", demoUser)
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "api error (401)")
	require.Contains(t, r.stderr, "No active account found")

	r = h.run("", "login")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "--username is required")

	r = h.run("", "login", "-u", demoUser)
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "password")
}

func TestLoginPasswordFromEnv(t *testing.T) {
	h := newHarness(t)
	t.Setenv(cli.PasswordEnv, demoPassword)

	require.Equal(t, "signed in as demo\n", h.ok("login", "-u", demoUser))
}

func TestInvalidArguments(t *testing.T) {
	h := newHarness(t)
	h.login()

	r := h.run("", "cars", "rm", "abc")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, `invalid car id "abc"`)

	r = h.run("", "models")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "brand")
}

func TestUnreachableBackend(t *testing.T) {
	h := newHarness(t)
	h.baseURL = "http://127.0.0.1:1/api"

	r := h.run("", "brands")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "network error")
}

func TestSignup(t *testing.T) {
	h := newHarness(t)

	r := h.run("hunter2hunter2\n", "signup", "-u", "bob", "--email", "bob@example.com", "--first-name", "Bob")
	require.Zero(t, r.code, r.stderr)
	require.Equal(t, "signed up and signed in as bob\n", r.stdout)
	require.Contains(t, h.ok("whoami"), "bob@example.com")

	r = h.run("hunter2hunter2\n", "signup", "-u", "bob", "--email", "bob@example.com")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "already exists")

	r = h.run("short\n", "signup", "-u", "carol", "--email", "carol@example.com")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "at least 8 characters")

	r = h.run("", "signup", "-u", "carol")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "--email is required")
}

func TestProfile(t *testing.T) {
	h := newHarness(t)
	h.login()

	out := h.ok("profile")
	require.Contains(t, out, "COUNTRY")
	require.Contains(t, out, "UA")

	require.Equal(t, "profile updated\n", h.ok("profile", "set", "--country", "AU", "--date-birth", "1990-05-04"))

	var user apisdk.User
	require.NoError(t, json.Unmarshal([]byte(h.ok("profile", "--json")), &user))
	require.Equal(t, "AU", user.Country)
	require.NotNil(t, user.DateBirth)
	require.Equal(t, "1990-05-04", *user.DateBirth)

	r := h.run("", "profile", "set")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "nothing to change")

	r = h.run("", "profile", "set", "--date-birth", "tomorrow")
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "dateBirth")
}
