package api

import (
	"context"

	"github.com/neexbeast/flight-search/internal/cache"
	"github.com/neexbeast/flight-search/internal/flight"
)

// FlightSearcher defines the search operation needed by handlers.
type FlightSearcher interface {
	Search(ctx context.Context, srcCountry, dstCountry, date string) ([]flight.Offer, error)
}

// StoreState reports a cache store's connection state for the health endpoint.
type StoreState interface {
	State() cache.State
}
