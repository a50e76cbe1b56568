package credstore

import (
	"context"
	"fmt"
)

// Sealer encrypts values on their way into a store. *cryptox.Sealer
// implements it.
type Sealer interface {
	SealString(plaintext string) (string, error)
	OpenString(sealed string) (string, error)
}

// Sealed wraps a Store so values are encrypted at rest.
type Sealed struct {
	inner  Store
	sealer Sealer
}

func NewSealed(inner Store, sealer Sealer) *Sealed {
	return &Sealed{inner: inner, sealer: sealer}
}

func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}

	v, err := s.sealer.OpenString(raw)
	if err != nil {
		return "", fmt.Errorf("credstore: open %s: %w", key, err)
	}
	return v, nil
}

func (s *Sealed) Put(ctx context.Context, values map[string]string) error {
	sealed := make(map[string]string, len(values))
	for k, v := range values {
		if v == "" {
			sealed[k] = ""
			continue
		}

		enc, err := s.sealer.SealString(v)
		if err != nil {
			return fmt.Errorf("credstore: seal %s: %w", k, err)
		}
		sealed[k] = enc
	}
	return s.inner.Put(ctx, sealed)
}

func (s *Sealed) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
