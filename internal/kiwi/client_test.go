package kiwi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/flight-search/internal/kiwi"
)

func locationsHandler(t *testing.T, ids ...string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		locations := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			locations = append(locations, map[string]any{"id": id})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results_retrieved": len(ids),
			"locations":         locations,
		})
	}
}

func newTestSession(t *testing.T, handler http.Handler) *kiwi.Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sess := kiwi.NewClientWithURL(srv.URL, "test-key").OpenSession()
	t.Cleanup(sess.Close)
	return sess
}

func TestGetCountry(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/query", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "France", r.URL.Query().Get("term"))
		assert.Equal(t, "country", r.URL.Query().Get("location_types"))
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		locationsHandler(t, "FR1")(w, r)
	})

	sess := newTestSession(t, mux)
	id, err := sess.GetCountry(context.Background(), "France")
	require.NoError(t, err)
	assert.Equal(t, "FR1", id)
}

func TestGetCountry_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/query", locationsHandler(t))

	sess := newTestSession(t, mux)
	_, err := sess.GetCountry(context.Background(), "Atlantis")

	var notFound *kiwi.CountryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Atlantis", notFound.Term)
}

func TestGetAirports_PreservesPopularityOrder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/subentity", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FR1", r.URL.Query().Get("term"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Equal(t, "-dst_popularity_score", r.URL.Query().Get("sort"))
		locationsHandler(t, "CDG", "ORY", "BVA")(w, r)
	})

	sess := newTestSession(t, mux)
	airports, err := sess.GetAirports(context.Background(), "FR1")
	require.NoError(t, err)
	assert.Equal(t, []string{"CDG", "ORY", "BVA"}, airports)
}

func TestGetAirports_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/subentity", locationsHandler(t))

	sess := newTestSession(t, mux)
	_, err := sess.GetAirports(context.Background(), "XX1")

	var notFound *kiwi.AirportNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "XX1", notFound.CountryID)
}

func TestSearchFlight(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "airport:CDG", r.URL.Query().Get("fly_from"))
		assert.Equal(t, "airport:MAD", r.URL.Query().Get("fly_to"))
		assert.Equal(t, "25/12/2030", r.URL.Query().Get("date_from"))
		assert.Equal(t, "price", r.URL.Query().Get("sort"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_results": 1,
			"data": []map[string]any{
				{"flyFrom": "CDG", "flyTo": "MAD", "price": 120.5},
			},
		})
	})

	sess := newTestSession(t, mux)
	offer, err := sess.SearchFlight(context.Background(), "CDG", "MAD", "25/12/2030")
	require.NoError(t, err)
	require.NotNil(t, offer)
	assert.Equal(t, "CDG", offer.Src)
	assert.Equal(t, "MAD", offer.Dst)
	assert.Equal(t, 120.5, offer.Price)
}

func TestSearchFlight_NoResults(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"_results": 0, "data": []any{}})
	})

	sess := newTestSession(t, mux)
	offer, err := sess.SearchFlight(context.Background(), "CDG", "MAD", "25/12/2030")
	require.NoError(t, err, "an empty pair is a valid negative result, not an error")
	assert.Nil(t, offer)
}

func TestRateLimited_HTTPStatus(t *testing.T) {
	sess := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := sess.GetCountry(context.Background(), "France")
	require.ErrorIs(t, err, kiwi.ErrRateLimited)
}

func TestRateLimited_BodyErrorCode(t *testing.T) {
	// Kiwi sometimes reports quota exhaustion inside a 200 body.
	sess := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"error_code": 429})
	}))

	ctx := context.Background()

	_, err := sess.GetCountry(ctx, "France")
	require.ErrorIs(t, err, kiwi.ErrRateLimited)

	_, err = sess.GetAirports(ctx, "FR1")
	require.ErrorIs(t, err, kiwi.ErrRateLimited)

	_, err = sess.SearchFlight(ctx, "CDG", "MAD", "25/12/2030")
	require.ErrorIs(t, err, kiwi.ErrRateLimited)
}

func TestGetCountry_MalformedResponse(t *testing.T) {
	// A positive count with an empty locations array must be an error,
	// not a panic.
	mux := http.NewServeMux()
	mux.HandleFunc("/locations/query", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results_retrieved": 1,
			"locations":         []any{},
		})
	})

	sess := newTestSession(t, mux)
	_, err := sess.GetCountry(context.Background(), "France")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestSearchFlight_MalformedResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"_results": 1,
			"data":     []any{},
		})
	})

	sess := newTestSession(t, mux)
	_, err := sess.SearchFlight(context.Background(), "CDG", "MAD", "25/12/2030")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestServerError(t *testing.T) {
	sess := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "err", http.StatusInternalServerError)
	}))

	_, err := sess.GetCountry(context.Background(), "France")
	require.Error(t, err)
	assert.NotErrorIs(t, err, kiwi.ErrRateLimited)
}
