package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/geoinfer/internal/model"
)

var testNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

type stubSource struct {
	titles   map[string]string // query -> page title
	extracts map[string]string // title -> text
	err      error
	searches []string
}

func (s *stubSource) Search(ctx context.Context, query string) (string, error) {
	s.searches = append(s.searches, query)
	if s.err != nil {
		return "", s.err
	}
	return s.titles[query], nil
}

func (s *stubSource) Extract(ctx context.Context, title string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.extracts[title], nil
}

func (s *stubSource) PageURL(title string) string {
	return "https://example.org/wiki/" + strings.ReplaceAll(title, " ", "_")
}

type memStore struct {
	mu       sync.Mutex
	rows     map[string]*model.EventVenueResult
	payloads map[string][]byte
	now      func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		rows:     make(map[string]*model.EventVenueResult),
		payloads: make(map[string][]byte),
		now:      func() time.Time { return testNow },
	}
}

func storeKey(key string, year *int) string {
	if year == nil {
		return key + "/-"
	}
	return fmt.Sprintf("%s/%d", key, *year)
}

func (m *memStore) Get(ctx context.Context, key string, year *int) (*model.EventVenueResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[storeKey(key, year)]
	if !ok || !r.ExpiresAt.After(m.now()) {
		return nil, errors.New("not found")
	}
	return r, nil
}

func (m *memStore) Put(ctx context.Context, r *model.EventVenueResult, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := storeKey(r.EventKey, r.EventYear)
	m.rows[k] = r
	m.payloads[k] = raw
	return nil
}

func newTestResolver(store Store, source ReferenceSource) *Resolver {
	return NewResolver(store, source, Options{Now: func() time.Time { return testNow }})
}

func TestResolveNoEvent(t *testing.T) {
	r := newTestResolver(newMemStore(), &stubSource{})
	if got := r.Resolve(context.Background(), "Will it snow in Denver?"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestResolveConfirmed(t *testing.T) {
	source := &stubSource{
		titles: map[string]string{"2026 Academy Awards": "98th Academy Awards"},
		extracts: map[string]string{
			"98th Academy Awards": "The 98th Academy Awards ceremony will be held at the Dolby Theatre in Hollywood, Los Angeles.",
		},
	}
	store := newMemStore()
	r := newTestResolver(store, source)

	got := r.Resolve(context.Background(), "Who will host the 2026 Oscars?")
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Status != model.VenueConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}
	if got.City != "Hollywood" || got.VenueName != "Dolby Theatre" {
		t.Errorf("unexpected venue %+v", got)
	}
	if got.Confidence != ConfirmedConfidence {
		t.Errorf("confidence = %.2f, want %.2f", got.Confidence, ConfirmedConfidence)
	}
	if got.SourceURL != "https://example.org/wiki/98th_Academy_Awards" {
		t.Errorf("source = %s", got.SourceURL)
	}
	if want := testNow.Add(14 * 24 * time.Hour); !got.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", got.ExpiresAt, want)
	}

	k := storeKey("oscars", got.EventYear)
	if store.rows[k] == nil {
		t.Fatal("result was not cached")
	}
	if !strings.Contains(string(store.payloads[k]), `"98th Academy Awards"`) {
		t.Errorf("payload missing page: %s", store.payloads[k])
	}
}

func TestResolveCacheHitSkipsSource(t *testing.T) {
	store := newMemStore()
	year := 2026
	cached := &model.EventVenueResult{
		Status: model.VenueConfirmed, EventKey: "grammys", EventYear: &year,
		City: "Los Angeles", Country: "California", Confidence: 0.72,
		ExpiresAt: testNow.Add(time.Hour),
	}
	_ = store.Put(context.Background(), cached, nil)

	var hits, misses int
	source := &stubSource{}
	r := NewResolver(store, source, Options{
		Now:           func() time.Time { return testNow },
		OnCacheLookup: func(hit bool) { countHit(hit, &hits, &misses) },
	})

	got := r.Resolve(context.Background(), "Grammys 2026 album of the year")
	if got != cached {
		t.Fatalf("expected cached row, got %+v", got)
	}
	if len(source.searches) != 0 {
		t.Errorf("source should not be queried on a cache hit, got %v", source.searches)
	}
	if hits != 1 || misses != 0 {
		t.Errorf("hits=%d misses=%d, want 1/0", hits, misses)
	}
}

func countHit(hit bool, hits, misses *int) {
	if hit {
		*hits++
	} else {
		*misses++
	}
}

func TestResolveExpiredCacheRefreshes(t *testing.T) {
	store := newMemStore()
	year := 2026
	_ = store.Put(context.Background(), &model.EventVenueResult{
		Status: model.VenueConfirmed, EventKey: "emmys", EventYear: &year,
		City: "Stale", Confidence: 0.72, ExpiresAt: testNow.Add(-time.Minute),
	}, nil)

	source := &stubSource{}
	got := newTestResolver(store, source).Resolve(context.Background(), "2026 Emmys best drama")
	if got.Status != model.VenueNotAvailable {
		t.Fatalf("status = %s, want not_available", got.Status)
	}
	if len(source.searches) == 0 {
		t.Error("expired row should trigger a lookup")
	}
}

func TestResolveBeyondHorizon(t *testing.T) {
	source := &stubSource{}
	store := newMemStore()
	r := newTestResolver(store, source)

	got := r.Resolve(context.Background(), "Where will the 2034 FIFA World Cup final be played?")
	if got.Status != model.VenueNotAvailable {
		t.Fatalf("status = %s, want not_available", got.Status)
	}
	if got.Confidence != NotAvailableConfidence {
		t.Errorf("confidence = %.2f", got.Confidence)
	}
	if got.Reason != reasonBeyondRange {
		t.Errorf("reason = %q", got.Reason)
	}
	if len(source.searches) != 0 {
		t.Errorf("far-future events must not be looked up, got %v", source.searches)
	}
	if want := testNow.Add(3 * 24 * time.Hour); !got.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", got.ExpiresAt, want)
	}
	if store.rows[storeKey("world_cup", got.EventYear)] == nil {
		t.Error("negative result should be cached")
	}
}

func TestWithinHorizon(t *testing.T) {
	r := newTestResolver(nil, nil)
	year := func(y int) *int { return &y }

	tests := []struct {
		year *int
		want bool
	}{
		{nil, true},
		{year(2020), true},
		{year(2026), true},
		{year(2027), false}, // Dec 31 2027 is after May 2027
		{year(2030), false},
	}
	for _, tt := range tests {
		if got := r.withinHorizon(tt.year); got != tt.want {
			t.Errorf("withinHorizon(%v) = %v, want %v", tt.year, got, tt.want)
		}
	}
}

func TestResolveAllQueriesFail(t *testing.T) {
	source := &stubSource{err: errors.New("fetch: connection refused")}
	store := newMemStore()

	got := newTestResolver(store, source).Resolve(context.Background(), "Super Bowl 2026 halftime")
	if got.Status != model.VenueNotAvailable || got.Reason != reasonUnconfirmed {
		t.Fatalf("unexpected result %+v", got)
	}
	want := []string{"Super Bowl LX", "2026 Super Bowl", "Super Bowl 2026 halftime"}
	if strings.Join(source.searches, "|") != strings.Join(want, "|") {
		t.Errorf("searches = %v, want %v", source.searches, want)
	}
	if !strings.Contains(string(store.payloads[storeKey("super_bowl", got.EventYear)]), "connection refused") {
		t.Error("payload should record the failed queries")
	}
}

func TestResolveFallsThroughUnparseablePages(t *testing.T) {
	source := &stubSource{
		titles: map[string]string{
			"Super Bowl LX":   "Super Bowl LX",
			"2026 Super Bowl": "Super Bowl LX (venue)",
		},
		extracts: map[string]string{
			"Super Bowl LX":         "The game date has been set.",
			"Super Bowl LX (venue)": "The game will be played at the Levi's Stadium in Santa Clara, California.",
		},
	}

	got := newTestResolver(nil, source).Resolve(context.Background(), "Super Bowl 2026 MVP")
	if got.Status != model.VenueConfirmed || got.City != "Santa Clara" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestResolveNilSource(t *testing.T) {
	got := newTestResolver(nil, nil).Resolve(context.Background(), "Met Gala 2026 theme")
	if got.Status != model.VenueNotAvailable {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestResolveCancelledIsNotCached(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemStore()
	got := newTestResolver(store, &stubSource{}).Resolve(ctx, "Tony Awards 2026")
	if got.Status != model.VenueNotAvailable {
		t.Fatalf("status = %s", got.Status)
	}
	if len(store.rows) != 0 {
		t.Error("cancelled lookup should not be cached")
	}
}
