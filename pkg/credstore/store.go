// Package credstore holds the credentials of a signed-in session.
//
// A Store is a small key-value surface with a fixed set of keys. Drivers under
// drivers/ provide durable backends; Memory, Split and Sealed compose them into
// the layout a Session needs.
package credstore

import (
	"context"
	"errors"
	"fmt"
)

// Well-known credential keys.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUsername     = "username"
)

// Keys lists every key a Store may hold, in a stable order.
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUsername}

var (
	ErrNotFound   = errors.New("credstore: not found")
	ErrUnknownKey = errors.New("credstore: unknown key")
)

// Store is the credential storage interface.
type Store interface {
	// Get returns the value under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put writes all values atomically. An empty value deletes the key.
	Put(ctx context.Context, values map[string]string) error

	// Clear removes every credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// ValidKey reports whether key is one of Keys.
func ValidKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// CheckKeys returns ErrUnknownKey for the first key in values that is not one
// of Keys.
func CheckKeys(values map[string]string) error {
	for k := range values {
		if !ValidKey(k) {
			return fmt.Errorf("%w: %q", ErrUnknownKey, k)
		}
	}
	return nil
}

// GetOptional is Get with ErrNotFound mapped to the empty string.
func GetOptional(ctx context.Context, s Store, key string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
