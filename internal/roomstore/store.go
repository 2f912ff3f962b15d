// Package roomstore persists the latest serialized position per room.
// Redis is the durable backend; when it is unreachable the store degrades
// to a bounded in-process cache with the same TTL semantics, and callers
// never see an error from Get or Set.
package roomstore

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/shogi-sync-server/internal/obslog"
)

const keyPrefix = "room:"

const (
	DefaultTTL       = 24 * time.Hour
	DefaultOpTimeout = 2 * time.Second
)

type Store struct {
	rdb       *redis.Client // nil when Redis was never configured
	ttl       time.Duration
	opTimeout time.Duration
	degraded  atomic.Bool
	fb        *fallback
}

type Option func(*Store)

func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

func WithOpTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func WithFallbackCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fb.max = n
		}
	}
}

// New builds a store for the given Redis URL. An empty or unparsable URL
// is not fatal: the store starts degraded and serves from memory only.
func New(redisURL string, opts ...Option) *Store {
	s := &Store{
		ttl:       DefaultTTL,
		opTimeout: DefaultOpTimeout,
		fb:        newFallback(defaultFallbackCapacity),
	}
	for _, opt := range opts {
		opt(s)
	}

	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		obslog.L().Warn("room store: no REDIS_URL, running on in-memory fallback only")
		s.degraded.Store(true)
		return s
	}
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		obslog.L().Error("room store: invalid REDIS_URL, running on in-memory fallback only", zap.Error(err))
		s.degraded.Store(true)
		return s
	}
	s.rdb = redis.NewClient(ropts)

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		obslog.L().Warn("room store: redis unreachable at startup, degraded", zap.Error(err))
		s.degraded.Store(true)
	}
	return s
}

func keyFor(roomID string) string { return keyPrefix + roomID }

// Get returns the last persisted position for a room. A backend failure
// silently falls through to the in-process cache.
func (s *Store) Get(ctx context.Context, roomID string) (string, bool) {
	key := keyFor(roomID)
	if s.rdb != nil {
		cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		val, err := s.rdb.Get(cctx, key).Result()
		cancel()
		switch {
		case err == nil:
			s.degraded.Store(false)
			return val, true
		case err == redis.Nil:
			s.degraded.Store(false)
			return "", false
		default:
			obslog.L().Warn("room store: redis GET failed, using fallback",
				zap.String("key", key), zap.Error(err))
			s.degraded.Store(true)
		}
	}
	return s.fb.get(key)
}

// Set persists the position with a sliding TTL. On backend failure the
// value lands in the in-process cache instead; callers are not told.
func (s *Store) Set(ctx context.Context, roomID, text string) {
	key := keyFor(roomID)
	if s.rdb != nil {
		cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err := s.rdb.Set(cctx, key, text, s.ttl).Err()
		cancel()
		if err == nil {
			s.degraded.Store(false)
			return
		}
		obslog.L().Warn("room store: redis SET failed, using fallback",
			zap.String("key", key), zap.Error(err))
		s.degraded.Store(true)
	}
	s.fb.set(key, text, s.ttl)
}

// Ping probes the durable backend.
func (s *Store) Ping(ctx context.Context) bool {
	if s.rdb == nil {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	if err := s.rdb.Ping(cctx).Err(); err != nil {
		s.degraded.Store(true)
		return false
	}
	s.degraded.Store(false)
	return true
}

// Status describes store connectivity for the health surface.
type Status struct {
	Connected           bool `json:"connected"`
	UsingMemoryFallback bool `json:"usingMemoryFallback"`
	MemoryKeys          int  `json:"memoryKeys"`
}

func (s *Store) Status() Status {
	degraded := s.degraded.Load()
	return Status{
		Connected:           s.rdb != nil && !degraded,
		UsingMemoryFallback: degraded,
		MemoryKeys:          s.fb.len(),
	}
}

func (s *Store) Close() error {
	s.fb.clear()
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
