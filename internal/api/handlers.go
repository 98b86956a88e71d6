package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/neexbeast/flight-search/internal/cache"
	"github.com/neexbeast/flight-search/internal/flight"
	"github.com/neexbeast/flight-search/internal/kiwi"
)

var datePattern = regexp.MustCompile(`^(0[1-9]|[12][0-9]|3[01])/(0[1-9]|1[0-2])/(\d{4})$`)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	searcher FlightSearcher
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(searcher FlightSearcher, log *slog.Logger) *Handlers {
	return &Handlers{searcher: searcher, log: log}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SearchFlight handles GET /search-flight.
// All three query parameters are required; the date must be DD/MM/YYYY.
func (h *Handlers) SearchFlight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	srcCountry := q.Get("source_country")
	dstCountry := q.Get("destination_country")
	date := q.Get("departure_date")

	if srcCountry == "" || dstCountry == "" {
		writeError(w, http.StatusBadRequest, "source_country and destination_country are required")
		return
	}
	if !datePattern.MatchString(date) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("date %q is not of format \"DD/MM/YYYY\"", date))
		return
	}

	offers, err := h.searcher.Search(r.Context(), srcCountry, dstCountry, date)
	if err != nil {
		h.writeSearchError(w, srcCountry, dstCountry, err)
		return
	}

	if offers == nil {
		offers = []flight.Offer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

// writeSearchError maps the upstream error taxonomy onto HTTP statuses:
// unknown country/airport → 400, rate limit → 429, anything else → 500.
func (h *Handlers) writeSearchError(w http.ResponseWriter, srcCountry, dstCountry string, err error) {
	var countryErr *kiwi.CountryNotFoundError
	var airportErr *kiwi.AirportNotFoundError

	switch {
	case errors.As(err, &countryErr):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("country %s does not exist. Please try to search with different country", countryErr.Term))
	case errors.As(err, &airportErr):
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("there is no airport for country with id %s. Please try to search with different country", airportErr.CountryID))
	case errors.Is(err, kiwi.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "upstream rate limit reached, please retry later")
	default:
		h.log.Error("flight search failed", "source", srcCountry, "destination", dstCountry, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// HealthHandlerFunc returns an http.HandlerFunc reporting the connection
// state of both cache stores. A disconnected cache degrades searches but
// does not take the service down, so the endpoint always answers 200.
func HealthHandlerFunc(flights, airports StoreState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if flights.State() != cache.StateConnected || airports.State() != cache.StateConnected {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status":         status,
			"flights_cache":  flights.State().String(),
			"airports_cache": airports.State().String(),
		})
	}
}
