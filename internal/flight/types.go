package flight

import "strings"

// Offer is the cheapest itinerary found for one airport pair.
type Offer struct {
	Src   string  `json:"src"`
	Dst   string  `json:"dst"`
	Price float64 `json:"price"`
}

// RouteKey identifies one (source country, destination country, date) search.
// Direction matters: RouteKey(a, b, d) != RouteKey(b, a, d).
// "|" is used as the delimiter because country names may contain hyphens.
func RouteKey(srcCountry, dstCountry, date string) string {
	return normalize(srcCountry) + "|" + normalize(dstCountry) + "|" + date
}

func normalize(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
