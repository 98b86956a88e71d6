package flight

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Session is one upstream network session, scoped to a single search call.
// Implemented by kiwi.Session.
type Session interface {
	GetCountry(ctx context.Context, term string) (string, error)
	GetAirports(ctx context.Context, countryID string) ([]string, error)
	SearchFlight(ctx context.Context, src, dst, date string) (*Offer, error)
	Close()
}

// Gateway opens upstream sessions.
type Gateway interface {
	OpenSession() Session
}

// AirportCache caches country→airport resolutions.
type AirportCache interface {
	Get(ctx context.Context, country string) ([]string, bool)
	Set(ctx context.Context, country string, airports []string)
}

// OfferCache caches route→offer lists keyed by RouteKey.
type OfferCache interface {
	Get(ctx context.Context, key string) ([]Offer, bool)
	Set(ctx context.Context, key string, offers []Offer)
}

// Searcher answers "cheapest flights between two countries on a date" with
// cache-aside reads and a concurrent per-airport-pair fan-out.
type Searcher struct {
	gateway  Gateway
	airports AirportCache
	offers   OfferCache
	log      *slog.Logger
}

// NewSearcher constructs a Searcher with all required dependencies.
func NewSearcher(gateway Gateway, airports AirportCache, offers OfferCache, log *slog.Logger) *Searcher {
	return &Searcher{
		gateway:  gateway,
		airports: airports,
		offers:   offers,
		log:      log,
	}
}

// Search returns the offers for the route, ascending by price. A cached
// route answers without any upstream call. Cache writes never block the
// response: they run in detached goroutines on an uncancellable context
// and their failures are only logged inside the cache layer.
func (s *Searcher) Search(ctx context.Context, srcCountry, dstCountry, date string) ([]Offer, error) {
	key := RouteKey(srcCountry, dstCountry, date)

	if offers, ok := s.offers.Get(ctx, key); ok {
		s.log.Info("route served from cache", "route", key)
		return offers, nil
	}

	// The two airport lookups are independent and may complete in either order.
	var srcAirports, dstAirports []string
	var srcCached, dstCached bool

	lookups, lookupCtx := errgroup.WithContext(ctx)
	lookups.Go(func() error {
		srcAirports, srcCached = s.airports.Get(lookupCtx, srcCountry)
		return nil
	})
	lookups.Go(func() error {
		dstAirports, dstCached = s.airports.Get(lookupCtx, dstCountry)
		return nil
	})
	_ = lookups.Wait()

	// One session covers the whole search, released on every exit path.
	sess := s.gateway.OpenSession()
	defer sess.Close()

	resolve, resolveCtx := errgroup.WithContext(ctx)
	if !srcCached {
		resolve.Go(func() error {
			airports, err := s.resolveAirports(resolveCtx, sess, srcCountry)
			if err != nil {
				return err
			}
			srcAirports = airports
			return nil
		})
	}
	if !dstCached {
		resolve.Go(func() error {
			airports, err := s.resolveAirports(resolveCtx, sess, dstCountry)
			if err != nil {
				return err
			}
			dstAirports = airports
			return nil
		})
	}
	if err := resolve.Wait(); err != nil {
		return nil, err
	}

	// Fan out over the full cross-product, at most 3x3 pairs. Results are
	// captured positionally so tie order follows pair-iteration order
	// (source outer, destination inner). A pair with no offer is a valid
	// negative result; a transport error fails the whole search.
	results := make([]*Offer, len(srcAirports)*len(dstAirports))
	pairs, pairCtx := errgroup.WithContext(ctx)
	for i, src := range srcAirports {
		for j, dst := range dstAirports {
			src, dst := src, dst
			idx := i*len(dstAirports) + j
			pairs.Go(func() error {
				offer, err := sess.SearchFlight(pairCtx, src, dst, date)
				if err != nil {
					return err
				}
				results[idx] = offer
				return nil
			})
		}
	}
	if err := pairs.Wait(); err != nil {
		return nil, err
	}

	offers := make([]Offer, 0, len(results))
	for _, r := range results {
		if r != nil {
			offers = append(offers, *r)
		}
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })

	go s.offers.Set(context.WithoutCancel(ctx), key, offers)

	return offers, nil
}

// resolveAirports resolves a country name to its ranked airport list via the
// upstream and schedules a fire-and-forget cache write for it.
func (s *Searcher) resolveAirports(ctx context.Context, sess Session, country string) ([]string, error) {
	countryID, err := sess.GetCountry(ctx, country)
	if err != nil {
		return nil, err
	}

	airports, err := sess.GetAirports(ctx, countryID)
	if err != nil {
		return nil, err
	}

	go s.airports.Set(context.WithoutCancel(ctx), country, airports)

	return airports, nil
}
