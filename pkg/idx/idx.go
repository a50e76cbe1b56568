// Package idx mints the request IDs stamped on outbound calls and accepts
// the ones callers send in X-Request-ID.
package idx

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// ID is a ULID in canonical string form.
type ID string

// ErrInvalid reports a request ID that is not a ULID.
var ErrInvalid = errors.New("idx: invalid request id")

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New mints an ID for the current instant. IDs minted within the same
// millisecond still sort in the order they were made.
func New() ID {
	mu.Lock()
	defer mu.Unlock()
	return ID(ulid.MustNew(ulid.Now(), entropy).String())
}

// Parse accepts a caller supplied ID.
func Parse(s string) (ID, error) {
	u, err := ulid.ParseStrict(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return ID(u.String()), nil
}

func (id ID) String() string { return string(id) }
