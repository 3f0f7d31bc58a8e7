// Package geocode resolves place names the gazetteer and index do not cover
// through an external geocoding service.
package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/geoinfer/internal/cache"
	"github.com/ppiankov/geoinfer/internal/fetch"
	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

const cacheNamespace = "geocode"

// Result is a geocoding answer. Lat/Lon are nil when the provider found nothing.
type Result struct {
	Query       string   `json:"query"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Source      string   `json:"source"`
	FromCache   bool     `json:"-"`
}

// Coords returns the point, or nil when the lookup found nothing
func (r *Result) Coords() *model.Coordinates {
	if r == nil || r.Lat == nil || r.Lon == nil {
		return nil
	}
	return &model.Coordinates{Lat: *r.Lat, Lon: *r.Lon}
}

// Geocoder resolves a free-form location name
type Geocoder interface {
	Geocode(ctx context.Context, name string) (*Result, error)
}

// Nominatim queries an OpenStreetMap Nominatim server
type Nominatim struct {
	baseURL string
	fetcher *fetch.Fetcher
	cache   cache.Cache
	ttl     time.Duration
	log     logging.Logger
}

// NewNominatim creates a geocoder. The fetcher carries the retry budget and
// rate limiter; c may be nil to disable caching.
func NewNominatim(baseURL string, fetcher *fetch.Fetcher, c cache.Cache, ttl time.Duration, log logging.Logger) *Nominatim {
	return &Nominatim{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		log:     logging.OrNop(log),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode normalizes name, consults the cache and otherwise asks the server.
// Empty answers are cached too so unknown names are not re-queried.
func (n *Nominatim) Geocode(ctx context.Context, name string) (*Result, error) {
	query := Normalize(name)
	if query == "" {
		return &Result{Query: query, Source: "nominatim"}, nil
	}

	key := cache.Key(cacheNamespace, query)
	if n.cache != nil {
		var cached Result
		if cache.GetJSON(ctx, n.cache, key, &cached) {
			n.log.Debug("geocode cache hit", logging.String("query", query))
			cached.FromCache = true
			return &cached, nil
		}
	}

	params := url.Values{
		"q":              {query},
		"format":         {"json"},
		"limit":          {"1"},
		"addressdetails": {"1"},
	}

	var places []nominatimPlace
	if err := n.fetcher.GetJSON(ctx, n.baseURL+"/search?"+params.Encode(), &places); err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	result := &Result{Query: query, Source: "nominatim"}
	if len(places) > 0 {
		lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
		lon, errLon := strconv.ParseFloat(places[0].Lon, 64)
		if errLat == nil && errLon == nil {
			result.Lat, result.Lon = &lat, &lon
			result.DisplayName = places[0].DisplayName
		}
	}

	if n.cache != nil {
		if err := cache.SetJSON(ctx, n.cache, key, result, n.ttl); err != nil {
			n.log.Warn("geocode cache write failed", logging.String("query", query), logging.Error(err))
		}
	}
	return result, nil
}
