package cache

import (
	"context"
	"strings"
)

// AirportCache caches country→airport resolutions on top of a Store.
// Values are comma-joined airport identifiers; the upstream identifiers
// are IATA-style codes and never contain commas. The store's TTL is
// configured several times longer than the route cache's, since
// country→airport mappings change rarely.
type AirportCache struct {
	store *Store
}

// NewAirportCache wraps store with the airport namespace.
func NewAirportCache(store *Store) *AirportCache {
	return &AirportCache{store: store}
}

func airportKey(country string) string {
	return "airports:" + strings.ToLower(strings.TrimSpace(country))
}

// Get returns the cached airport list for country, preserving popularity
// order. The second return value reports a hit.
func (c *AirportCache) Get(ctx context.Context, country string) ([]string, bool) {
	val, ok := c.store.Get(ctx, airportKey(country))
	if !ok || val == "" {
		return nil, false
	}
	return strings.Split(val, ","), true
}

// Set caches the airport list for country. Best-effort, like Store.Set.
func (c *AirportCache) Set(ctx context.Context, country string, airports []string) {
	if len(airports) == 0 {
		return
	}
	c.store.Set(ctx, airportKey(country), strings.Join(airports, ","))
}
