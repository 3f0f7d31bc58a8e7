// Package fetch performs narrow, bounded HTTP GETs for the reference-source
// and geocoder lookups.
package fetch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/util"
)

const defaultMaxRetries = 3

// fetchSleepFunc is the sleep function used between retries (injectable for tests)
var fetchSleepFunc = time.Sleep

// Waiter blocks until a request to rawURL is allowed
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher issues GET requests with a size cap, redirect cap and bounded retry
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	maxRetries int
	limiter    Waiter
	log        logging.Logger
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecure bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := util.NewTransport(httpProxy, httpsProxy, noProxy)
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed mirrors
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent:  userAgent,
		maxBytes:   maxBytes,
		maxRetries: defaultMaxRetries,
		log:        logging.NewNop(),
	}
}

// WithLimiter rate-limits every attempt through l
func (f *Fetcher) WithLimiter(l Waiter) *Fetcher {
	f.limiter = l
	return f
}

// WithLogger sets the logger used for retry diagnostics
func (f *Fetcher) WithLogger(log logging.Logger) *Fetcher {
	f.log = logging.OrNop(log)
	return f
}

// WithMaxRetries sets the attempt budget; values below 1 mean a single attempt
func (f *Fetcher) WithMaxRetries(n int) *Fetcher {
	if n < 1 {
		n = 1
	}
	f.maxRetries = n
	return f
}

// Response is a fetched body and selected metadata
type Response struct {
	Body         []byte
	StatusCode   int
	ContentType  string
	LastModified string
	FinalURL     string
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Fetch performs a single GET
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	return f.get(ctx, rawURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
}

func (f *Fetcher) get(ctx context.Context, rawURL, accept string) (*Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		Body:         body,
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		FinalURL:     resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*Response, error) {
	return f.withRetry(ctx, rawURL, func() (*Response, error) { return f.Fetch(ctx, rawURL) })
}

// GetJSON fetches rawURL with retry and decodes the body into v
func (f *Fetcher) GetJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := f.withRetry(ctx, rawURL, func() (*Response, error) {
		return f.get(ctx, rawURL, "application/json")
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

func (f *Fetcher) withRetry(ctx context.Context, rawURL string, do func() (*Response, error)) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		resp, err := do()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < f.maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			f.log.Debug("retrying fetch",
				logging.String("url", rawURL),
				logging.Int("attempt", attempt+1),
				logging.Duration("backoff", backoff),
				logging.Error(err))
			fetchSleepFunc(backoff)
		}
	}
	return nil, lastErr
}

// isRetryableFetchError returns true for 5xx, 429 and transient network errors
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())

	if strings.HasPrefix(s, "unexpected status: ") {
		code := strings.TrimPrefix(s, "unexpected status: ")
		return strings.HasPrefix(code, "5") || strings.HasPrefix(code, "429")
	}

	if strings.HasPrefix(s, "fetch: ") {
		return strings.Contains(s, "timeout") ||
			strings.Contains(s, "connection refused") ||
			strings.Contains(s, "connection reset") ||
			strings.Contains(s, "eof")
	}
	return false
}
