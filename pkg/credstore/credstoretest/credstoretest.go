// Package credstoretest provides a behaviour suite shared by every
// credstore.Store implementation.
package credstoretest

import (
	"context"
	"sync"
	"testing"

	"github.com/aussiebroadwan/autocheck/pkg/credstore"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore against the Store contract. newStore must return an
// empty store on every call.
func Run(t *testing.T, newStore func(t *testing.T) credstore.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), credstore.KeyAccessToken)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("PutThenGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, map[string]string{
			credstore.KeyAccessToken:  "T1",
			credstore.KeyRefreshToken: "R1",
			credstore.KeyUsername:     "alice",
		}))

		for key, want := range map[string]string{
			credstore.KeyAccessToken:  "T1",
			credstore.KeyRefreshToken: "R1",
			credstore.KeyUsername:     "alice",
		} {
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.Equal(t, want, got, key)
		}
	})

	t.Run("PutOverwritesAndEmptyDeletes", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, map[string]string{
			credstore.KeyAccessToken:  "T1",
			credstore.KeyRefreshToken: "R1",
		}))
		require.NoError(t, s.Put(ctx, map[string]string{
			credstore.KeyAccessToken:  "T2",
			credstore.KeyRefreshToken: "",
		}))

		got, err := s.Get(ctx, credstore.KeyAccessToken)
		require.NoError(t, err)
		require.Equal(t, "T2", got)

		_, err = s.Get(ctx, credstore.KeyRefreshToken)
		require.ErrorIs(t, err, credstore.ErrNotFound)
	})

	t.Run("PutRejectsUnknownKey", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		err := s.Put(ctx, map[string]string{"password": "hunter2"})
		require.ErrorIs(t, err, credstore.ErrUnknownKey)
	})

	t.Run("ClearIsIdempotent", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.Put(ctx, map[string]string{
			credstore.KeyAccessToken:  "T1",
			credstore.KeyRefreshToken: "R1",
			credstore.KeyUsername:     "alice",
		}))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))

		for _, key := range credstore.Keys {
			_, err := s.Get(ctx, key)
			require.ErrorIs(t, err, credstore.ErrNotFound, key)
		}
	})

	t.Run("ConcurrentPut", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Put(ctx, map[string]string{
					credstore.KeyAccessToken:  "T",
					credstore.KeyRefreshToken: "R",
				})
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, credstore.KeyRefreshToken)
		require.NoError(t, err)
		require.Equal(t, "R", got)
	})
}
