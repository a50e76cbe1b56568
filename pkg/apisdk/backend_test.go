package apisdk_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/autocheck/internal/fakebackend"
	"github.com/aussiebroadwan/autocheck/pkg/apisdk"
	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/aussiebroadwan/autocheck/pkg/credstore/drivers/sqlite"
	"github.com/aussiebroadwan/autocheck/pkg/cryptox"
	"github.com/aussiebroadwan/autocheck/pkg/httpx"
	"github.com/aussiebroadwan/autocheck/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// These tests run the client against the in-process backend double.

func startFake(t *testing.T, opts ...fakebackend.Option) (*fakebackend.Server, *apisdk.SDKClient) {
	t.Helper()

	opts = append([]fakebackend.Option{
		fakebackend.WithLogger(slogx.Discard()),
		fakebackend.WithSignInLimit(httpx.RateLimitConfig{}),
	}, opts...)

	srv, err := fakebackend.New(opts...)
	require.NoError(t, err)
	_, err = srv.AddUser("alice", "correct-horse")
	require.NoError(t, err)
	srv.SeedReferenceData()

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return srv, apisdk.NewSDKClient(ts.URL+fakebackend.BasePath, apisdk.WithLogger(slogx.Discard()))
}

func signedIn(t *testing.T, client *apisdk.SDKClient, store credstore.Store, opts ...apisdk.SessionOption) *apisdk.Session {
	t.Helper()

	session, err := client.NewSession(context.Background(), store, opts...)
	require.NoError(t, err)
	require.NoError(t, session.SignIn(context.Background(), "alice", "correct-horse"))
	return session
}

func TestBackendCarLifecycle(t *testing.T) {
	t.Parallel()
	_, client := startFake(t)
	session := signedIn(t, client, nil)
	ctx := context.Background()

	user, err := session.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	cars, err := session.ListCars(ctx)
	require.NoError(t, err)
	require.Empty(t, cars.Results)

	brands, err := session.ListBrands(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brands.Results)
	brand := brands.Results[0]

	models, err := session.ListModels(ctx, brand.ID)
	require.NoError(t, err)
	require.NotEmpty(t, models.Results)
	for _, m := range models.Results {
		require.Equal(t, brand.ID, m.CarBrand)
	}

	created, err := session.CreateCar(ctx, apisdk.CreateCarRequest{
		CarBrand:       brand.ID,
		CarModel:       models.Results[0].ID,
		InitialMileage: 1000,
		Mileage:        1500,
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.Equal(t, int64(1500), created.Mileage)

	cars, err = session.ListCars(ctx)
	require.NoError(t, err)
	require.Len(t, cars.Results, 1)
	require.Equal(t, brand.Title, cars.Results[0].Brand)
	require.Equal(t, models.Results[0].Title, cars.Results[0].Model)

	_, err = session.CreateCar(ctx, apisdk.CreateCarRequest{CarBrand: brand.ID, CarModel: 999999, Mileage: -1})
	require.ErrorIs(t, err, apisdk.ErrValidation)

	require.NoError(t, session.DeleteCar(ctx, created.ID))
	require.ErrorIs(t, session.DeleteCar(ctx, created.ID), apisdk.ErrNotFound)
}

func TestBackendServiceLifecycle(t *testing.T) {
	t.Parallel()
	_, client := startFake(t)
	session := signedIn(t, client, nil)
	ctx := context.Background()

	brands, err := session.ListBrands(ctx)
	require.NoError(t, err)
	models, err := session.ListModels(ctx, brands.Results[0].ID)
	require.NoError(t, err)

	car, err := session.CreateCar(ctx, apisdk.CreateCarRequest{
		CarBrand: brands.Results[0].ID,
		CarModel: models.Results[0].ID,
		Mileage:  10,
	})
	require.NoError(t, err)

	older, err := session.CreateService(ctx, apisdk.CreateServiceRequest{
		Car:             car.ID,
		WorkDescription: "Oil change",
		Hours:           "1.5",
		ScheduledDate:   "2024-03-01",
	})
	require.NoError(t, err)
	require.Equal(t, apisdk.StatusPending, older.Status)
	require.Equal(t, "1.5", older.Hours)

	newer, err := session.CreateService(ctx, apisdk.CreateServiceRequest{
		Car:             car.ID,
		WorkDescription: "Brake pads",
		Hours:           "2",
		ScheduledDate:   "2024-05-10",
		Status:          apisdk.StatusInProgress,
	})
	require.NoError(t, err)

	list, err := session.ListServices(ctx, car.ID)
	require.NoError(t, err)
	require.Len(t, list.Results, 2)
	require.Equal(t, newer.ID, list.Results[0].ID, "newest scheduled date first")
	require.NotNil(t, list.Results[0].CarInfo)
	require.Equal(t, car.ID, list.Results[0].CarInfo.ID)

	updated, err := session.UpdateServiceStatus(ctx, older.ID, apisdk.StatusCompleted)
	require.NoError(t, err)
	require.Equal(t, apisdk.StatusCompleted, updated.Status)
	require.Equal(t, "Oil change", updated.WorkDescription)

	_, err = session.UpdateServiceStatus(ctx, older.ID, apisdk.ServiceStatus("done"))
	require.ErrorIs(t, err, apisdk.ErrValidation)

	var apiErr *apisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Fields, "status")

	replaced, err := session.ReplaceService(ctx, newer.ID, apisdk.CreateServiceRequest{
		Car:             car.ID,
		WorkDescription: "Brake pads and discs",
		Hours:           "3.5",
		ScheduledDate:   "2024-05-11",
		Status:          apisdk.StatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, "Brake pads and discs", replaced.WorkDescription)
	require.Equal(t, "3.5", replaced.Hours)

	require.NoError(t, session.DeleteService(ctx, older.ID))
	list, err = session.ListServices(ctx, car.ID)
	require.NoError(t, err)
	require.Len(t, list.Results, 1)
}

func TestBackendExpiredAccessIsRefreshed(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t)
	session := signedIn(t, client, nil)
	ctx := context.Background()

	before := session.Credential()
	srv.InvalidateAccessTokens()

	cars, err := session.ListCars(ctx)
	require.NoError(t, err)
	require.NotNil(t, cars)

	after := session.Credential()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.Equal(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, int64(1), srv.Stats().Refreshes)
}

func TestBackendRefreshFailureExpiresSession(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t)

	store := credstore.NewMemory()
	var expired int
	session := signedIn(t, client, store, apisdk.WithExpiredHandler(func(error) { expired++ }))

	srv.InvalidateAccessTokens()
	srv.SetFailRefresh(true)

	_, err := session.ListCars(context.Background())
	require.ErrorIs(t, err, apisdk.ErrSessionExpired)
	require.Equal(t, 1, expired)
	require.Zero(t, store.Len())
	require.False(t, session.Authenticated())

	stats := srv.Stats()
	require.Equal(t, int64(1), stats.Refreshes)
	require.Equal(t, int64(1), stats.RefreshFailures)
}

func TestBackendProactiveRefresh(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t, fakebackend.WithAccessTTL(5*time.Second))
	session := signedIn(t, client, nil)

	_, err := session.ListCars(context.Background())
	require.NoError(t, err)

	stats := srv.Stats()
	require.Equal(t, int64(1), stats.Refreshes, "token was inside the refresh buffer")
	require.Zero(t, stats.RefreshFailures)
}

func TestBackendLogoutBlacklistsRefreshToken(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t)

	store := credstore.NewMemory()
	session := signedIn(t, client, store)
	refresh := session.Credential().RefreshToken

	require.NoError(t, session.Logout(context.Background()))
	require.True(t, srv.IsBlacklisted(refresh))
	require.Equal(t, int64(1), srv.Stats().Logouts)
	require.Zero(t, store.Len())

	// The revoked token can no longer mint access tokens.
	_, err := client.RefreshGrant(context.Background(), refresh)
	require.ErrorIs(t, err, apisdk.ErrAPI)
}

func TestBackendLogoutAfterRestartRevokes(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t)
	ctx := context.Background()

	durable := credstore.NewMemory()
	first := signedIn(t, client, credstore.NewSplit(credstore.NewMemory(), durable))
	refresh := first.Credential().RefreshToken

	// A new process only has the durable half.
	second, err := client.NewSession(ctx, credstore.NewSplit(credstore.NewMemory(), durable))
	require.NoError(t, err)
	require.Empty(t, second.Credential().AccessToken)

	require.NoError(t, second.Logout(ctx))
	require.True(t, srv.IsBlacklisted(refresh))
	require.Equal(t, int64(1), srv.Stats().Logouts)
	require.Zero(t, durable.Len())

	_, err = client.RefreshGrant(ctx, refresh)
	require.ErrorIs(t, err, apisdk.ErrAPI)
}

func TestBackendSessionSurvivesRestart(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t, fakebackend.WithRotateRefresh(true))
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sealer, err := cryptox.NewSealer([]byte("master key material"))
	require.NoError(t, err)

	durable := credstore.NewSealed(db, sealer)

	first := signedIn(t, client, credstore.NewSplit(credstore.NewMemory(), durable))
	oldRefresh := first.Credential().RefreshToken

	// Only the refresh token and username were persisted, and not in the clear.
	_, err = durable.Get(ctx, credstore.KeyAccessToken)
	require.ErrorIs(t, err, credstore.ErrNotFound)
	raw, err := db.Get(ctx, credstore.KeyRefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, oldRefresh, raw)

	second, err := client.NewSession(ctx, credstore.NewSplit(credstore.NewMemory(), durable))
	require.NoError(t, err)
	require.True(t, second.Authenticated())
	require.Equal(t, "alice", second.Username())
	require.Empty(t, second.Credential().AccessToken)

	user, err := second.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	rotated := second.Credential().RefreshToken
	require.NotEqual(t, oldRefresh, rotated)
	require.True(t, srv.IsBlacklisted(oldRefresh))

	stored, err := durable.Get(ctx, credstore.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, rotated, stored)
}

func TestBackendSignUpSignsTheSessionIn(t *testing.T) {
	t.Parallel()
	srv, client := startFake(t)
	ctx := context.Background()

	store := credstore.NewMemory()
	session, err := client.NewSession(ctx, store)
	require.NoError(t, err)

	req := apisdk.SignUpRequest{
		Username:       "bob",
		FirstName:      "Bob",
		Email:          "bob@example.com",
		Password:       "hunter2hunter2",
		RepeatPassword: "hunter2hunter2",
	}
	created, err := session.SignUp(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "bob", created.Username)
	require.True(t, session.Authenticated())
	require.Equal(t, "bob", session.Username())

	stored, err := store.Get(ctx, credstore.KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, session.Credential().RefreshToken, stored)

	user, err := session.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.Equal(t, "Bob", user.Name)
	require.Equal(t, int64(1), srv.Stats().SignUps)

	_, err = session.SignUp(ctx, req)
	require.ErrorIs(t, err, apisdk.ErrValidation)
	var apiErr *apisdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Fields, "username")
	require.True(t, session.Authenticated(), "a rejected sign-up keeps the current session")
}

func TestBackendProfile(t *testing.T) {
	t.Parallel()
	_, client := startFake(t)
	session := signedIn(t, client, nil)
	ctx := context.Background()

	profile, err := session.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)
	require.Nil(t, profile.DateBirth)

	name, born := "Alice", "1990-05-04"
	updated, err := session.UpdateProfile(ctx, apisdk.ProfileUpdate{Name: &name, DateBirth: &born})
	require.NoError(t, err)
	require.Equal(t, name, *updated.Name)
	require.Equal(t, born, *updated.DateBirth)
	require.NotNil(t, updated.Country, "untouched fields come back as stored")

	profile, err = session.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, name, profile.Name)
	require.Equal(t, born, *profile.DateBirth)

	bad := "05/04/1990"
	_, err = session.UpdateProfile(ctx, apisdk.ProfileUpdate{DateBirth: &bad})
	require.ErrorIs(t, err, apisdk.ErrValidation)
}
