package cache

import (
	"context"
	"encoding/json"

	"github.com/neexbeast/flight-search/internal/flight"
)

// FlightCache caches route→offer lists on top of a Store. Values are JSON
// arrays of offers; the list is stored already sorted by price, and the
// order is preserved on read rather than re-derived.
type FlightCache struct {
	store *Store
}

// NewFlightCache wraps store with the route-offer namespace.
func NewFlightCache(store *Store) *FlightCache {
	return &FlightCache{store: store}
}

// Get returns the cached offer list for key. The second return value
// reports a hit. A value that fails to decode is treated as a miss.
func (c *FlightCache) Get(ctx context.Context, key string) ([]flight.Offer, bool) {
	val, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var offers []flight.Offer
	if err := json.Unmarshal([]byte(val), &offers); err != nil {
		c.store.log.Warn("corrupt cached offer list, treating as miss", "key", key, "err", err)
		return nil, false
	}

	return offers, true
}

// Set caches the sorted offer list for key. Best-effort, like Store.Set.
func (c *FlightCache) Set(ctx context.Context, key string, offers []flight.Offer) {
	b, err := json.Marshal(offers)
	if err != nil {
		c.store.log.Warn("marshaling offer list failed, value will not be cached", "key", key, "err", err)
		return
	}
	c.store.Set(ctx, key, string(b))
}
