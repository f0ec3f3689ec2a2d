// Package redisconsent adapts a Redis-backed consent platform to the consent
// source contract: purpose booleans live in a hash and changes are announced
// on a pub/sub channel.
package redisconsent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"consentgate/internal/consent"
	"consentgate/pkg/platform/sentinel"
)

const (
	defaultKey         = "consentgate:purposes"
	defaultChannel     = "consentgate:changed"
	defaultReadTimeout = 250 * time.Millisecond
)

// Source reads consent from Redis. Reads are synchronous with a short
// timeout: a slow or unreachable Redis must degrade to "no determination",
// never block the event pipeline.
type Source struct {
	client      *redis.Client
	key         string
	channel     string
	readTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithKey overrides the hash key holding purpose booleans.
func WithKey(key string) Option {
	return func(s *Source) { s.key = key }
}

// WithChannel overrides the pub/sub channel announcing consent changes.
func WithChannel(channel string) Option {
	return func(s *Source) { s.channel = channel }
}

// WithReadTimeout bounds each consent read.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Source) { s.readTimeout = d }
}

// WithLogger installs a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates a Redis-backed consent source.
func New(client *redis.Client, opts ...Option) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	s := &Source{
		client:      client,
		key:         defaultKey,
		channel:     defaultChannel,
		readTimeout: defaultReadTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Getters builds read functions for every purpose. A missing hash field is
// reported as sentinel.ErrNotFound so the reconciler treats it as "not yet
// determined" rather than denied-forever.
func (s *Source) Getters() consent.Getters {
	getters := make(consent.Getters, len(consent.All))
	for _, p := range consent.All {
		purpose := p
		getters[purpose] = func() (bool, error) {
			return s.read(purpose)
		}
	}
	return getters
}

func (s *Source) read(p consent.Purpose) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.readTimeout)
	defer cancel()

	raw, err := s.client.HGet(ctx, s.key, p.String()).Result()
	if errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("purpose %q: %w", p, sentinel.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("purpose %q: %w: %w", p, sentinel.ErrUnavailable, err)
	}
	granted, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("purpose %q has malformed value %q: %w", p, raw, sentinel.ErrInvalidState)
	}
	return granted, nil
}

// Subscribe listens on the pub/sub channel and invokes trigger on every
// message. The payload is ignored; the reconciler re-reads the full state
// anyway. Matches consent.SubscribeFunc.
func (s *Source) Subscribe(trigger func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := s.client.Subscribe(ctx, s.channel)

	go func() {
		for range pubsub.Channel() {
			trigger()
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				s.logger.Warn("closing consent pubsub", "channel", s.channel, "error", err)
			}
			cancel()
		})
	}
}

// Publish announces a consent change, for integrations that also write the
// hash through this package.
func (s *Source) Publish(ctx context.Context) error {
	return s.client.Publish(ctx, s.channel, "changed").Err()
}

// SetPurpose writes one purpose boolean and announces the change.
func (s *Source) SetPurpose(ctx context.Context, p consent.Purpose, granted bool) error {
	if !p.IsValid() {
		return fmt.Errorf("unknown consent purpose %q", p)
	}
	if err := s.client.HSet(ctx, s.key, p.String(), strconv.FormatBool(granted)).Err(); err != nil {
		return fmt.Errorf("write purpose %q: %w", p, err)
	}
	return s.Publish(ctx)
}
