package event

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/geoinfer/internal/fetch"
	"github.com/ppiankov/geoinfer/internal/util"
)

const articleHTML = `<html><body><div id="mw-content-text"><div class="mw-parser-output">
<table class="infobox"><tr><td>Date February 8, 2026</td></tr></table>
<p><b>Super Bowl LX</b> will be played at the Levi's Stadium<sup>[1]</sup> in Santa Clara, California.</p>
<div class="mw-heading"><h2>Background</h2></div>
<p>Held at the Other Arena in Nowhere, Elsewhere.</p>
</div></div></body></html>`

func newWikiServer(t *testing.T, extract string, robots string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/robots.txt":
			if robots == "" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = fmt.Fprint(w, robots)
		case r.URL.Path == "/w/api.php" && r.URL.Query().Get("list") == "search":
			if r.URL.Query().Get("srsearch") == "nothing" {
				_, _ = fmt.Fprint(w, `{"query":{"search":[]}}`)
				return
			}
			_, _ = fmt.Fprint(w, `{"query":{"search":[{"title":"Super Bowl LX"},{"title":"Super Bowl LIX"}]}}`)
		case r.URL.Path == "/w/api.php" && r.URL.Query().Get("prop") == "extracts":
			if r.URL.Query().Get("titles") != "Super Bowl LX" {
				t.Errorf("unexpected title %q", r.URL.Query().Get("titles"))
			}
			_, _ = fmt.Fprintf(w, `{"query":{"pages":{"123":{"title":"Super Bowl LX","extract":%q}}}}`, extract)
		case r.URL.Path == "/wiki/Super_Bowl_LX":
			_, _ = fmt.Fprint(w, articleHTML)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestFetcher() *fetch.Fetcher {
	return fetch.NewFetcher(5*time.Second, "geoinfer-test/0.1", 1<<20, false, "", "", "")
}

func TestWikipediaSearch(t *testing.T) {
	server := newWikiServer(t, "", "")
	defer server.Close()

	src := NewWikipediaSource(server.URL+"/", newTestFetcher(), nil, false, nil)

	title, err := src.Search(context.Background(), "Super Bowl LX")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if title != "Super Bowl LX" {
		t.Errorf("title = %q", title)
	}

	title, err = src.Search(context.Background(), "nothing")
	if err != nil || title != "" {
		t.Errorf("expected empty title, got %q, %v", title, err)
	}
}

func TestWikipediaExtract(t *testing.T) {
	server := newWikiServer(t, "Super Bowl LX will be played at the Levi's Stadium in Santa Clara, California.", "")
	defer server.Close()

	src := NewWikipediaSource(server.URL, newTestFetcher(), nil, false, nil)
	text, err := src.Extract(context.Background(), "Super Bowl LX")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(text, "Super Bowl LX will be played") {
		t.Errorf("unexpected extract %q", text)
	}
}

func TestWikipediaPageFallback(t *testing.T) {
	server := newWikiServer(t, "", "")
	defer server.Close()

	src := NewWikipediaSource(server.URL, newTestFetcher(), util.NewRobotsChecker("geoinfer-test/0.1", time.Second), true, nil)
	text, err := src.Extract(context.Background(), "Super Bowl LX")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Super Bowl LX will be played at the Levi's Stadium in Santa Clara, California."
	if text != want {
		t.Errorf("lead text = %q, want %q", text, want)
	}

	venue, ok := ParseVenue(text)
	if !ok || venue.City != "Santa Clara" {
		t.Errorf("ParseVenue() = %+v, %v", venue, ok)
	}
}

func TestWikipediaPageFallbackDisabled(t *testing.T) {
	server := newWikiServer(t, "", "")
	defer server.Close()

	src := NewWikipediaSource(server.URL, newTestFetcher(), nil, false, nil)
	text, err := src.Extract(context.Background(), "Super Bowl LX")
	if err != nil || text != "" {
		t.Errorf("expected empty extract, got %q, %v", text, err)
	}
}

func TestWikipediaPageFallbackRobotsDisallow(t *testing.T) {
	server := newWikiServer(t, "", "User-agent: *\nDisallow: /wiki/\n")
	defer server.Close()

	src := NewWikipediaSource(server.URL, newTestFetcher(), util.NewRobotsChecker("geoinfer-test/0.1", time.Second), true, nil)
	text, err := src.Extract(context.Background(), "Super Bowl LX")
	if err != nil || text != "" {
		t.Errorf("expected robots to block the page, got %q, %v", text, err)
	}
}

func TestWikipediaPageURL(t *testing.T) {
	src := NewWikipediaSource("https://en.wikipedia.org/", newTestFetcher(), nil, false, nil)
	if got := src.PageURL("98th Academy Awards"); got != "https://en.wikipedia.org/wiki/98th_Academy_Awards" {
		t.Errorf("PageURL() = %s", got)
	}
}

func TestResolverWithWikipedia(t *testing.T) {
	server := newWikiServer(t, "Super Bowl LX will be played at the Levi's Stadium in Santa Clara, California.", "")
	defer server.Close()

	src := NewWikipediaSource(server.URL, newTestFetcher(), nil, false, nil)
	got := newTestResolver(nil, src).Resolve(context.Background(), "Super Bowl 2026 winner?")
	if got.Status != "confirmed" || got.City != "Santa Clara" || got.Country != "California" {
		t.Fatalf("unexpected result %+v", got)
	}
	if got.SourceURL != server.URL+"/wiki/Super_Bowl_LX" {
		t.Errorf("source = %s", got.SourceURL)
	}
}
