package kiwi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/neexbeast/flight-search/internal/flight"
)

const (
	defaultBaseURL = "https://api.tequila.kiwi.com"
	httpTimeout    = 10 * time.Second
	userAgent      = "flight-search"

	// maxAirports bounds a country's candidate list; Kiwi ranks by
	// destination popularity, so this keeps the top-3 airports.
	maxAirports = 3
)

// ErrRateLimited is returned by any Session call when Kiwi reports quota
// exhaustion, either via HTTP 429 or an error_code field in the body.
var ErrRateLimited = errors.New("kiwi: rate limited")

// CountryNotFoundError reports that a country search term matched nothing.
type CountryNotFoundError struct {
	Term string
}

func (e *CountryNotFoundError) Error() string {
	return fmt.Sprintf("country %s does not exist", e.Term)
}

// AirportNotFoundError reports that a country has no active airports.
type AirportNotFoundError struct {
	CountryID string
}

func (e *AirportNotFoundError) Error() string {
	return fmt.Sprintf("there is no airport for country with id %s", e.CountryID)
}

// Client holds the static configuration for talking to the Kiwi Tequila API.
type Client struct {
	baseURL string
	apiKey  string
}

// NewClient constructs a Client against the production Kiwi API.
func NewClient(apiKey string) *Client {
	return &Client{baseURL: defaultBaseURL, apiKey: apiKey}
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL, apiKey string) *Client {
	return &Client{baseURL: baseURL, apiKey: apiKey}
}

// Session is a network session scoped to one search call. It owns its own
// transport so that connections are reused across the calls of a single
// search and released when the search ends.
type Session struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// OpenSession starts a new session. Callers must Close it on every exit path.
func (c *Client) OpenSession() *Session {
	return &Session{
		baseURL: c.baseURL,
		apiKey:  c.apiKey,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: &http.Transport{},
		},
	}
}

// Close releases the session's idle connections.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// get performs an authenticated GET and decodes the JSON response into dst.
// An HTTP 429 maps to ErrRateLimited.
func (s *Session) get(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

type locationsResponse struct {
	ErrorCode        int `json:"error_code"`
	ResultsRetrieved int `json:"results_retrieved"`
	Locations        []struct {
		ID string `json:"id"`
	} `json:"locations"`
}

// GetCountry resolves a country search term to a Kiwi country identifier.
func (s *Session) GetCountry(ctx context.Context, term string) (string, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("limit", "1")
	q.Set("location_types", "country")
	q.Set("active_only", "true")

	var raw locationsResponse
	if err := s.get(ctx, s.baseURL+"/locations/query?"+q.Encode(), &raw); err != nil {
		return "", fmt.Errorf("kiwi country lookup for %s: %w", term, err)
	}

	if raw.ErrorCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if raw.ResultsRetrieved == 0 {
		return "", &CountryNotFoundError{Term: term}
	}
	if len(raw.Locations) == 0 {
		return "", fmt.Errorf("kiwi country lookup for %s: malformed response: %d results but no locations", term, raw.ResultsRetrieved)
	}

	return raw.Locations[0].ID, nil
}

// GetAirports resolves a country identifier to its top airports, ordered by
// destination popularity.
func (s *Session) GetAirports(ctx context.Context, countryID string) ([]string, error) {
	q := url.Values{}
	q.Set("term", countryID)
	q.Set("limit", fmt.Sprintf("%d", maxAirports))
	q.Set("location_types", "airport")
	q.Set("active_only", "true")
	q.Set("sort", "-dst_popularity_score")

	var raw locationsResponse
	if err := s.get(ctx, s.baseURL+"/locations/subentity?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("kiwi airport lookup for %s: %w", countryID, err)
	}

	if raw.ErrorCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if raw.ResultsRetrieved == 0 {
		return nil, &AirportNotFoundError{CountryID: countryID}
	}

	airports := make([]string, 0, len(raw.Locations))
	for _, loc := range raw.Locations {
		airports = append(airports, loc.ID)
	}

	return airports, nil
}

type searchResponse struct {
	ErrorCode int `json:"error_code"`
	Results   int `json:"_results"`
	Data      []struct {
		FlyFrom string  `json:"flyFrom"`
		FlyTo   string  `json:"flyTo"`
		Price   float64 `json:"price"`
	} `json:"data"`
}

// SearchFlight searches one airport pair on one date and returns the
// cheapest offer. A pair with no itineraries returns nil, nil.
func (s *Session) SearchFlight(ctx context.Context, src, dst, date string) (*flight.Offer, error) {
	q := url.Values{}
	q.Set("fly_from", "airport:"+src)
	q.Set("fly_to", "airport:"+dst)
	q.Set("date_from", date)
	q.Set("date_to", date)
	q.Set("max_fly_duration", "20")
	q.Set("ret_from_diff_city", "false")
	q.Set("ret_to_diff_city", "false")
	q.Set("one_for_city", "0")
	q.Set("adults", "1")
	q.Set("selected_cabins", "M")
	q.Set("only_working_days", "false")
	q.Set("only_weekends", "false")
	q.Set("max_stopovers", "2")
	q.Set("max_sector_stopovers", "2")
	q.Set("conn_on_diff_airport", "0")
	q.Set("ret_from_diff_airport", "0")
	q.Set("ret_to_diff_airport", "0")
	q.Set("sort", "price")
	q.Set("limit", "1")

	var raw searchResponse
	if err := s.get(ctx, s.baseURL+"/v2/search?"+q.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("kiwi flight search %s-%s on %s: %w", src, dst, date, err)
	}

	if raw.ErrorCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if raw.Results == 0 {
		return nil, nil
	}
	if len(raw.Data) == 0 {
		return nil, fmt.Errorf("kiwi flight search %s-%s on %s: malformed response: %d results but no data", src, dst, date, raw.Results)
	}

	best := raw.Data[0]
	return &flight.Offer{Src: best.FlyFrom, Dst: best.FlyTo, Price: best.Price}, nil
}
