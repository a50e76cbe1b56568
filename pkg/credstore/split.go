package credstore

import (
	"context"
	"errors"
)

// Split routes the durable keys to one store and every other key to another.
// The usual layout keeps the access token in memory for the lifetime of the
// process and the refresh token (plus username) on disk, so a restarted
// process can refresh its way back in.
type Split struct {
	session Store
	durable Store
	keys    map[string]bool
}

// NewSplit builds a Split. durableKeys defaults to the refresh token and the
// username when empty.
func NewSplit(session, durable Store, durableKeys ...string) *Split {
	if len(durableKeys) == 0 {
		durableKeys = []string{KeyRefreshToken, KeyUsername}
	}

	keys := make(map[string]bool, len(durableKeys))
	for _, k := range durableKeys {
		keys[k] = true
	}

	return &Split{session: session, durable: durable, keys: keys}
}

func (s *Split) route(key string) Store {
	if s.keys[key] {
		return s.durable
	}
	return s.session
}

func (s *Split) Get(ctx context.Context, key string) (string, error) {
	return s.route(key).Get(ctx, key)
}

// Put writes the durable half first so a failure there leaves the session half
// untouched.
func (s *Split) Put(ctx context.Context, values map[string]string) error {
	if err := CheckKeys(values); err != nil {
		return err
	}

	durable := make(map[string]string)
	session := make(map[string]string)
	for k, v := range values {
		if s.keys[k] {
			durable[k] = v
		} else {
			session[k] = v
		}
	}

	if len(durable) > 0 {
		if err := s.durable.Put(ctx, durable); err != nil {
			return err
		}
	}
	if len(session) > 0 {
		if err := s.session.Put(ctx, session); err != nil {
			return err
		}
	}
	return nil
}

func (s *Split) Clear(ctx context.Context) error {
	return errors.Join(s.durable.Clear(ctx), s.session.Clear(ctx))
}
