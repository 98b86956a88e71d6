package cache

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis logical databases, one per cache namespace. Keeping the namespaces
// in separate databases isolates their keyspaces and lets each be flushed
// or tuned independently.
const (
	FlightsDB  = 0
	AirportsDB = 1
)

// NewClient parses redisURL and returns a client bound to the given logical
// database. No ping happens here: connectivity is owned by Store, which
// starts Disconnected and probes via Connect.
func NewClient(redisURL string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DB = db

	return redis.NewClient(opts), nil
}
