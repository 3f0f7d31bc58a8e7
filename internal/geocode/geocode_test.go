package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/geoinfer/internal/cache"
	"github.com/ppiankov/geoinfer/internal/fetch"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Atlanta", "Atlanta, GA, USA"},
		{"  atlanta,  GA ", "Atlanta, GA, USA"},
		{"NYC", "New York, NY, USA"},
		{"DC", "Washington, DC, USA"},
		{"Springfield, IL", "Springfield, Illinois, USA"},
		{"Boise, ID", "Boise, Idaho, USA"},
		{"Lyon, FR", "lyon, fr"},
		{"Funafuti   Atoll", "funafuti atoll"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newServer(t *testing.T, calls *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = fmt.Fprint(w, body)
	}))
}

func newTestFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(5*time.Second, "geoinfer-test", 1<<20, false, "", "", "")
}

func TestNominatimGeocode(t *testing.T) {
	var calls atomic.Int32
	server := newServer(t, &calls, `[{"lat":"37.2090","lon":"-93.2923","display_name":"Springfield, Greene County, Missouri, United States"}]`)
	defer server.Close()

	c := cache.NewLayeredCache(cache.NewMemoryCache(time.Minute, time.Minute))
	g := NewNominatim(server.URL+"/", newTestFetcher(), c, time.Hour, nil)

	res, err := g.Geocode(context.Background(), "Springfield, MO")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if res.Query != "Springfield, Missouri, USA" {
		t.Errorf("query = %q", res.Query)
	}
	coords := res.Coords()
	if coords == nil || coords.Lat != 37.2090 || coords.Lon != -93.2923 {
		t.Fatalf("coords = %+v", coords)
	}
	if res.FromCache {
		t.Error("first lookup should not come from cache")
	}

	again, err := g.Geocode(context.Background(), "  Springfield,   MO")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if !again.FromCache {
		t.Error("second lookup should be served from cache")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 server call, got %d", calls.Load())
	}
}

func TestNominatimNoResultsIsCached(t *testing.T) {
	var calls atomic.Int32
	server := newServer(t, &calls, `[]`)
	defer server.Close()

	c := cache.NewLayeredCache(cache.NewMemoryCache(time.Minute, time.Minute))
	g := NewNominatim(server.URL, newTestFetcher(), c, time.Hour, nil)

	for i := 0; i < 2; i++ {
		res, err := g.Geocode(context.Background(), "Atlantis")
		if err != nil {
			t.Fatalf("Geocode: %v", err)
		}
		if res.Coords() != nil {
			t.Errorf("expected no coordinates, got %+v", res.Coords())
		}
	}
	if calls.Load() != 1 {
		t.Errorf("negative result should be cached, got %d calls", calls.Load())
	}
}

func TestNominatimServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	g := NewNominatim(server.URL, newTestFetcher(), nil, time.Hour, nil)
	if _, err := g.Geocode(context.Background(), "Paris"); err == nil {
		t.Fatal("expected error")
	}
}
