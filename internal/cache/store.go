package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultCheckPeriod   = 60 * time.Second
	defaultReconnectWait = 10 * time.Second
)

// State is the connection health of a Store.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateReconnecting
)

// String returns a human-readable state name for logs and the health endpoint.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Store wraps a Redis client with a connection-health state machine.
// Get and Set are best-effort: every failure against the backing store
// degrades to a cache miss / dropped write and is never surfaced to callers.
// State transitions happen only inside Store methods.
type Store struct {
	client        *redis.Client
	ttl           time.Duration
	log           *slog.Logger
	checkPeriod   time.Duration
	reconnectWait time.Duration

	mu    sync.Mutex
	state State
}

// Option adjusts Store timing parameters (used in tests to shrink periods).
type Option func(*Store)

// WithCheckPeriod overrides the interval between connection checks.
func WithCheckPeriod(d time.Duration) Option {
	return func(s *Store) { s.checkPeriod = d }
}

// WithReconnectWait overrides the backoff between reconnection attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(s *Store) { s.reconnectWait = d }
}

// NewStore constructs a Store in the Disconnected state.
// Call Connect for the initial probe and run Run in a goroutine to keep
// the connection healthy.
func NewStore(client *redis.Client, ttl time.Duration, log *slog.Logger, opts ...Option) *Store {
	s := &Store{
		client:        client,
		ttl:           ttl,
		log:           log,
		checkPeriod:   defaultCheckPeriod,
		reconnectWait: defaultReconnectWait,
		state:         StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Connect probes the backing store and reports whether it is reachable.
// On failure the Store stays Disconnected; the process keeps running and
// the background checker takes over recovery.
func (s *Store) Connect(ctx context.Context) bool {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.log.Warn("failed to connect to redis", "err", err)
		s.setState(StateDisconnected)
		return false
	}
	s.setState(StateConnected)
	s.log.Info("connected to redis")
	return true
}

// Run is the connection checker. It ticks on a fixed period: while
// Connected it verifies the connection with a ping, and whenever the
// connection is lost it runs the recovery loop until the store is
// reachable again. Run returns only when ctx is cancelled. At most one
// recovery loop is active at a time.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.checkPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		switch s.State() {
		case StateReconnecting:
			// recovery already in flight, re-check next tick
		case StateDisconnected:
			s.log.Warn("redis connection lost, reconnecting")
			s.reconnect(ctx)
		case StateConnected:
			if err := s.client.Ping(ctx).Err(); err != nil {
				s.log.Warn("redis ping failed", "err", err)
				s.setState(StateDisconnected)
				s.reconnect(ctx)
			}
		}
	}
}

// reconnect retries the initial probe at a fixed backoff until it succeeds
// or ctx is cancelled. Only Run calls it.
func (s *Store) reconnect(ctx context.Context) {
	s.setState(StateReconnecting)

	for {
		s.log.Info("attempting to reconnect to redis")
		err := s.client.Ping(ctx).Err()
		if err == nil {
			s.setState(StateConnected)
			s.log.Info("reconnected to redis")
			return
		}
		s.log.Warn("reconnection failed", "err", err, "retry_in", s.reconnectWait)

		select {
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return
		case <-time.After(s.reconnectWait):
		}
	}
}

// Get reads key from the store. The second return value reports a hit.
// Misses, a disconnected store, and read failures all report false;
// a read failure additionally flips the state to Disconnected.
func (s *Store) Get(ctx context.Context, key string) (string, bool) {
	if s.State() != StateConnected {
		s.log.Warn("redis disconnected, forced to fetch fresh data", "key", key)
		return "", false
	}

	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false
		}
		s.log.Warn("redis get failed, treating as miss", "key", key, "err", err)
		if !callerAborted(err) {
			s.setState(StateDisconnected)
		}
		return "", false
	}

	return val, true
}

// Set writes key with the store's TTL. It is fire-and-forget: when the
// store is disconnected or the write fails, the value is simply not
// cached and the failure is only logged.
func (s *Store) Set(ctx context.Context, key, value string) {
	if s.State() != StateConnected {
		s.log.Warn("redis disconnected, value will not be cached", "key", key)
		return
	}

	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.log.Warn("redis set failed, value will not be cached", "key", key, "err", err)
		if !callerAborted(err) {
			s.setState(StateDisconnected)
		}
	}
}

// callerAborted reports whether an operation failed because the caller's
// context ended, not because the store is unreachable. A client aborting
// its request must not mark a healthy store down.
func callerAborted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
