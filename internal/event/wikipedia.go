package event

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/geoinfer/internal/fetch"
	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/util"
)

// WikipediaSource looks up event pages through the MediaWiki API
type WikipediaSource struct {
	baseURL      string
	fetcher      *fetch.Fetcher
	robots       *util.RobotsChecker // nil disables the robots gate
	pageFallback bool
	log          logging.Logger
}

// NewWikipediaSource creates a source rooted at baseURL (e.g. https://en.wikipedia.org).
// When pageFallback is set and an article has no plain-text extract, the
// rendered page is fetched and parsed, subject to robots when non-nil.
func NewWikipediaSource(baseURL string, fetcher *fetch.Fetcher, robots *util.RobotsChecker, pageFallback bool, log logging.Logger) *WikipediaSource {
	return &WikipediaSource{
		baseURL:      strings.TrimRight(baseURL, "/"),
		fetcher:      fetcher,
		robots:       robots,
		pageFallback: pageFallback,
		log:          logging.OrNop(log),
	}
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// Search returns the title of the best matching page, or "" when nothing matched
func (w *WikipediaSource) Search(ctx context.Context, query string) (string, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"format":   {"json"},
		"srlimit":  {"5"},
	}

	var resp searchResponse
	if err := w.fetcher.GetJSON(ctx, w.apiURL(params), &resp); err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	for _, hit := range resp.Query.Search {
		if hit.Title != "" {
			return hit.Title, nil
		}
	}
	return "", nil
}

// Extract returns the plain-text body of the page titled title
func (w *WikipediaSource) Extract(ctx context.Context, title string) (string, error) {
	params := url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"explaintext": {"1"},
		"titles":      {title},
		"format":      {"json"},
		"redirects":   {"1"},
	}

	var resp extractResponse
	if err := w.fetcher.GetJSON(ctx, w.apiURL(params), &resp); err != nil {
		return "", fmt.Errorf("extract %q: %w", title, err)
	}
	for _, page := range resp.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}

	if !w.pageFallback {
		return "", nil
	}
	return w.pageText(ctx, title)
}

// PageURL returns the article URL for title
func (w *WikipediaSource) PageURL(title string) string {
	return w.baseURL + "/wiki/" + url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (w *WikipediaSource) pageText(ctx context.Context, title string) (string, error) {
	pageURL := w.PageURL(title)

	if w.robots != nil {
		allowed, _, err := w.robots.CanFetch(ctx, pageURL)
		if err != nil {
			w.log.Debug("robots check failed", logging.String("url", pageURL), logging.Error(err))
		}
		if !allowed {
			w.log.Debug("page fetch disallowed by robots.txt", logging.String("url", pageURL))
			return "", nil
		}
	}

	resp, err := w.fetcher.FetchWithRetry(ctx, pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch page %q: %w", title, err)
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		return "", fmt.Errorf("parse page %q: %w", title, err)
	}
	return leadText(doc), nil
}

func (w *WikipediaSource) apiURL(params url.Values) string {
	return w.baseURL + "/w/api.php?" + params.Encode()
}
