package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/cas-client/pkg/lookup"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidEntry indicates a cached label that cannot be decoded.
var ErrInvalidEntry = errors.New("invalid cache entry")

// DefaultTTL is applied when NewRedisStore is given a non-positive TTL.
const DefaultTTL = 30 * time.Minute

// RedisStore is an enrichment label store shared through Redis.
type RedisStore struct {
	redis   redis.UniversalClient
	session string
	ttl     time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewSession returns a fresh enrichment session id.
func NewSession() string {
	return uuid.NewString()
}

// NewRedisStore creates a store for one enrichment session.
func NewRedisStore(redisClient redis.UniversalClient, session string, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if session == "" {
		session = NewSession()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{
		redis:   redisClient,
		session: session,
		ttl:     ttl,
		now:     time.Now,
		logger:  log.With().Str("component", "label-cache").Str("session", session).Logger(),
	}
}

// Session returns the session id the store writes under.
func (s *RedisStore) Session() string {
	return s.session
}

func (s *RedisStore) key(kind string) Key {
	return Key{Session: s.session, Kind: kind}
}

// touch renews the claim set and the label hash together. A claim must never
// outlive the label it guards.
func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, key Key) {
	pipe.Expire(ctx, key.ClaimKey(), s.ttl)
	pipe.Expire(ctx, key.String(), s.ttl)
}

// Claim marks id as pending. It returns true only for the first claim of
// (kind, id) in the session, across all processes sharing the Redis.
func (s *RedisStore) Claim(ctx context.Context, kind, id string) (bool, error) {
	key := s.key(kind)

	var added *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.SAdd(ctx, key.ClaimKey(), id)
		s.touch(ctx, pipe, key)
		return nil
	})
	if err != nil {
		LabelCacheErrors.WithLabelValues("claim").Inc()
		return false, fmt.Errorf("redis sadd: %w", err)
	}

	first := added.Val() == 1
	if first {
		LabelCacheOps.WithLabelValues("claim", "claimed").Inc()
	} else {
		LabelCacheOps.WithLabelValues("claim", "taken").Inc()
	}

	s.logger.Debug().Str("kind", kind).Str("id", id).Bool("first", first).Msg("Claim")
	return first, nil
}

// Release drops the claim on (kind, id) so a later job may fetch it again.
func (s *RedisStore) Release(ctx context.Context, kind, id string) error {
	if err := s.redis.SRem(ctx, s.key(kind).ClaimKey(), id).Err(); err != nil {
		LabelCacheErrors.WithLabelValues("release").Inc()
		return fmt.Errorf("redis srem: %w", err)
	}

	LabelCacheOps.WithLabelValues("release", "ok").Inc()
	s.logger.Debug().Str("kind", kind).Str("id", id).Msg("Claim released")
	return nil
}

// Put stores the label for (kind, id).
func (s *RedisStore) Put(ctx context.Context, kind, id, label string) error {
	value, err := encodeEntry(Entry{Label: label, FetchedAt: s.now().UTC()})
	if err != nil {
		LabelCacheErrors.WithLabelValues("put").Inc()
		return err
	}

	key := s.key(kind)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key.String(), id, value)
		s.touch(ctx, pipe, key)
		return nil
	})
	if err != nil {
		LabelCacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis hset: %w", err)
	}

	LabelCacheOps.WithLabelValues("put", "ok").Inc()
	s.logger.Debug().Str("kind", kind).Str("id", id).Msg("Label stored")
	return nil
}

// Entries returns the cached entries for kind. Undecodable entries are
// skipped.
func (s *RedisStore) Entries(ctx context.Context, kind string) (map[string]Entry, error) {
	raw, err := s.redis.HGetAll(ctx, s.key(kind).String()).Result()
	if err != nil {
		LabelCacheErrors.WithLabelValues("labels").Inc()
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	out := make(map[string]Entry, len(raw))
	for id, value := range raw {
		entry, err := decodeEntry(value)
		if err != nil {
			LabelCacheErrors.WithLabelValues("decode").Inc()
			s.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("Skipping cached label")
			continue
		}
		out[id] = entry
	}
	return out, nil
}

// Labels returns the labels cached for kind.
func (s *RedisStore) Labels(ctx context.Context, kind string) (lookup.Map, error) {
	entries, err := s.Entries(ctx, kind)
	if err != nil {
		return nil, err
	}

	m := make(lookup.Map, len(entries))
	for id, e := range entries {
		m[id] = e.Label
	}

	if len(m) == 0 {
		LabelCacheOps.WithLabelValues("labels", "empty").Inc()
	} else {
		LabelCacheOps.WithLabelValues("labels", "hit").Inc()
	}
	return m, nil
}

// Reset deletes every key of the session.
func (s *RedisStore) Reset(ctx context.Context) error {
	var keys []string
	iter := s.redis.Scan(ctx, 0, Key{Session: s.session}.SessionPattern(), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		LabelCacheErrors.WithLabelValues("reset").Inc()
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(keys) > 0 {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			LabelCacheErrors.WithLabelValues("reset").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
	}

	LabelCacheOps.WithLabelValues("reset", "ok").Inc()
	s.logger.Debug().Int("keys", len(keys)).Msg("Session reset")
	return nil
}
