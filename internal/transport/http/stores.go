package httptransport

import (
	"context"

	"consentgate/internal/consent"
	"consentgate/internal/consent/sources/redisconsent"
	"consentgate/internal/consent/sources/static"
)

// StaticStore adapts the in-memory consent source to ConsentStore.
type StaticStore struct {
	Source *static.Source
}

func (s StaticStore) Set(_ context.Context, p consent.Purpose, granted bool) error {
	s.Source.Set(p, granted)
	return nil
}

func (s StaticStore) Snapshot(_ context.Context) (map[consent.Purpose]bool, error) {
	return s.Source.Snapshot(), nil
}

// RedisStore adapts the Redis consent source to ConsentStore. Purposes that
// cannot be read are omitted from the snapshot rather than failing it.
type RedisStore struct {
	Source *redisconsent.Source
}

func (s RedisStore) Set(ctx context.Context, p consent.Purpose, granted bool) error {
	return s.Source.SetPurpose(ctx, p, granted)
}

func (s RedisStore) Snapshot(_ context.Context) (map[consent.Purpose]bool, error) {
	getters := s.Source.Getters()
	out := make(map[consent.Purpose]bool, len(getters))
	for p, getter := range getters {
		granted, err := getter()
		if err != nil {
			continue
		}
		out[p] = granted
	}
	return out, nil
}

var (
	_ ConsentStore = StaticStore{}
	_ ConsentStore = RedisStore{}
)
