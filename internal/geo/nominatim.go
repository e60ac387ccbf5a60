package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rideconnect/internal/types"
)

// Location is a geocoding result.
type Location struct {
	Point       types.Point
	DisplayName string
	// Confidence in [0,1]; fallback results carry reduced confidence.
	Confidence float64
	Fallback   bool
}

// Address is a reverse-geocoding result.
type Address struct {
	Road     string
	Suburb   string
	City     string
	Postcode string
	Display  string
	Fallback bool
}

var ErrNoResult = errors.New("geocoding: no result")

// Nominatim performs address lookups against a Nominatim HTTP server,
// restricted to the configured service area. On upstream failure it degrades
// to a table of known Lisbon landmarks rather than failing the caller.
type Nominatim struct {
	Endpoint string
	Bounds   Bounds
	Client   *http.Client
}

func NewNominatim(endpoint string, bounds Bounds) *Nominatim {
	return &Nominatim{
		Endpoint: endpoint,
		Bounds:   bounds,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Geocode resolves a free-text address to coordinates inside the service
// area viewbox.
func (n *Nominatim) Geocode(ctx context.Context, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, fmt.Errorf("%w: empty address", ErrNoResult)
	}

	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("countrycodes", "pt")
	q.Set("bounded", "1")
	q.Set("viewbox", fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", n.Bounds.West, n.Bounds.South, n.Bounds.East, n.Bounds.North))
	q.Set("addressdetails", "1")

	var out []struct {
		Lat         string  `json:"lat"`
		Lon         string  `json:"lon"`
		DisplayName string  `json:"display_name"`
		Importance  float64 `json:"importance"`
		PlaceRank   int     `json:"place_rank"`
	}
	if err := n.getJSON(ctx, "/search", q, &out); err != nil {
		return fallbackLocation(address), nil
	}
	if len(out) == 0 {
		return fallbackLocation(address), nil
	}

	r := out[0]
	var lat, lng float64
	if _, err := fmt.Sscanf(r.Lat, "%f", &lat); err != nil {
		return fallbackLocation(address), nil
	}
	if _, err := fmt.Sscanf(r.Lon, "%f", &lng); err != nil {
		return fallbackLocation(address), nil
	}
	return Location{
		Point:       types.Point{Lat: lat, Lng: lng},
		DisplayName: r.DisplayName,
		Confidence:  confidence(r.Importance, r.PlaceRank),
	}, nil
}

// ReverseGeocode resolves coordinates to address components.
func (n *Nominatim) ReverseGeocode(ctx context.Context, p types.Point) (Address, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", p.Lat))
	q.Set("lon", fmt.Sprintf("%.6f", p.Lng))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	var out struct {
		DisplayName string `json:"display_name"`
		Address     struct {
			Road     string `json:"road"`
			Suburb   string `json:"suburb"`
			City     string `json:"city"`
			Town     string `json:"town"`
			Postcode string `json:"postcode"`
		} `json:"address"`
	}
	if err := n.getJSON(ctx, "/reverse", q, &out); err != nil {
		return Address{
			Display:  fmt.Sprintf("%.4f, %.4f (Lisboa area)", p.Lat, p.Lng),
			City:     "Lisboa",
			Fallback: true,
		}, nil
	}
	city := out.Address.City
	if city == "" {
		city = out.Address.Town
	}
	return Address{
		Road:     out.Address.Road,
		Suburb:   out.Address.Suburb,
		City:     city,
		Postcode: out.Address.Postcode,
		Display:  out.DisplayName,
	}, nil
}

// Suggest returns up to limit address completions for a partial query.
// Upstream failures yield an empty list, not an error.
func (n *Nominatim) Suggest(ctx context.Context, partial string, limit int) []Location {
	partial = strings.TrimSpace(partial)
	if len(partial) < 3 {
		return nil
	}
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	q := url.Values{}
	q.Set("q", partial)
	q.Set("format", "json")
	q.Set("limit", fmt.Sprintf("%d", limit))
	q.Set("countrycodes", "pt")
	q.Set("bounded", "1")
	q.Set("viewbox", fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", n.Bounds.West, n.Bounds.South, n.Bounds.East, n.Bounds.North))

	var out []struct {
		Lat         string  `json:"lat"`
		Lon         string  `json:"lon"`
		DisplayName string  `json:"display_name"`
		Importance  float64 `json:"importance"`
		PlaceRank   int     `json:"place_rank"`
	}
	if err := n.getJSON(ctx, "/search", q, &out); err != nil {
		return nil
	}

	var locs []Location
	for _, r := range out {
		var lat, lng float64
		if _, err := fmt.Sscanf(r.Lat, "%f", &lat); err != nil {
			continue
		}
		if _, err := fmt.Sscanf(r.Lon, "%f", &lng); err != nil {
			continue
		}
		locs = append(locs, Location{
			Point:       types.Point{Lat: lat, Lng: lng},
			DisplayName: r.DisplayName,
			Confidence:  confidence(r.Importance, r.PlaceRank),
		})
	}
	return locs
}

func (n *Nominatim) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.Endpoint+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("nominatim status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Higher importance and lower place_rank indicate a better match.
func confidence(importance float64, placeRank int) float64 {
	c := importance*2 + (1 - float64(placeRank)/30)
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return float64(int(c*100)) / 100
}

// Known landmarks used when the upstream geocoder is unreachable.
var fallbackLocations = []struct {
	name    string
	display string
	point   types.Point
}{
	{"hospital são josé", "Hospital São José, Lisboa", types.Point{Lat: 38.7223, Lng: -9.1393}},
	{"hospital santa maria", "Hospital Santa Maria, Lisboa", types.Point{Lat: 38.7492, Lng: -9.1607}},
	{"rossio", "Rossio, Lisboa", types.Point{Lat: 38.7139, Lng: -9.1394}},
	{"belém", "Belém, Lisboa", types.Point{Lat: 38.6968, Lng: -9.2034}},
	{"marquês de pombal", "Marquês de Pombal, Lisboa", types.Point{Lat: 38.7205, Lng: -9.1495}},
	{"aeroporto", "Aeroporto de Lisboa", types.Point{Lat: 38.7756, Lng: -9.1354}},
	{"cascais", "Cascais", types.Point{Lat: 38.6968, Lng: -9.4215}},
	{"sintra", "Sintra", types.Point{Lat: 38.8029, Lng: -9.3817}},
}

func fallbackLocation(address string) Location {
	lower := strings.ToLower(address)
	for _, loc := range fallbackLocations {
		if strings.Contains(lower, loc.name) || strings.Contains(loc.name, lower) {
			return Location{Point: loc.point, DisplayName: loc.display, Confidence: 0.8, Fallback: true}
		}
	}
	// Default to the Lisbon centre with low confidence.
	return Location{
		Point:       types.Point{Lat: 38.7223, Lng: -9.1393},
		DisplayName: "Lisboa, Portugal",
		Confidence:  0.3,
		Fallback:    true,
	}
}
