package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

// Resolution confidences and reasons
const (
	ConfirmedConfidence    = 0.72
	NotAvailableConfidence = 0.35

	reasonConfirmed   = "Event venue resolved from public event page"
	reasonBeyondRange = "Event venue not publicly confirmed yet (outside short-term horizon)"
	reasonUnconfirmed = "Event venue not publicly confirmed yet"

	extractHeadChars = 500
)

// Store persists resolutions keyed by (event key, year). Get returns an
// error for missing, expired or unreadable entries; all are treated as misses.
type Store interface {
	Get(ctx context.Context, key string, year *int) (*model.EventVenueResult, error)
	Put(ctx context.Context, r *model.EventVenueResult, rawPayload []byte) error
}

// ReferenceSource finds and reads the public page describing an event
type ReferenceSource interface {
	Search(ctx context.Context, query string) (string, error)
	Extract(ctx context.Context, title string) (string, error)
	PageURL(title string) string
}

// Options tunes a Resolver. Zero values fall back to the defaults.
type Options struct {
	HorizonMonths int
	ConfirmedTTL  time.Duration
	NegativeTTL   time.Duration
	Now           func() time.Time
	Logger        logging.Logger
	OnCacheLookup func(hit bool)
}

// Resolver runs the detect, cache, horizon and lookup steps for event prompts
type Resolver struct {
	store         Store
	source        ReferenceSource
	horizonMonths int
	confirmedTTL  time.Duration
	negativeTTL   time.Duration
	now           func() time.Time
	log           logging.Logger
	onCacheLookup func(hit bool)
}

// NewResolver creates a resolver. A nil store disables caching and a nil
// source makes every near-term lookup come back not_available.
func NewResolver(store Store, source ReferenceSource, opts Options) *Resolver {
	r := &Resolver{
		store:         store,
		source:        source,
		horizonMonths: opts.HorizonMonths,
		confirmedTTL:  opts.ConfirmedTTL,
		negativeTTL:   opts.NegativeTTL,
		now:           opts.Now,
		log:           logging.OrNop(opts.Logger),
		onCacheLookup: opts.OnCacheLookup,
	}
	if r.horizonMonths <= 0 {
		r.horizonMonths = 18
	}
	if r.confirmedTTL <= 0 {
		r.confirmedTTL = 14 * 24 * time.Hour
	}
	if r.negativeTTL <= 0 {
		r.negativeTTL = 3 * 24 * time.Hour
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Resolve detects an event in text and resolves its venue. It returns nil
// when no event is named. Lookup failures never surface as errors.
func (r *Resolver) Resolve(ctx context.Context, text string) *model.EventVenueResult {
	intent := Detect(text)
	if intent == nil {
		return nil
	}
	return r.ResolveIntent(ctx, *intent)
}

// ResolveIntent resolves a detected event
func (r *Resolver) ResolveIntent(ctx context.Context, intent model.EventIntent) *model.EventVenueResult {
	log := r.log.With(logging.String("event", intent.Key))

	if r.store != nil {
		cached, err := r.store.Get(ctx, intent.Key, intent.Year)
		r.observeCache(err == nil)
		if err == nil {
			log.Debug("event venue cache hit", logging.String("status", string(cached.Status)))
			return cached
		}
	}

	if !r.withinHorizon(intent.Year) {
		result := r.notAvailable(intent, reasonBeyondRange)
		r.save(ctx, result, nil)
		return result
	}

	result, payload := r.lookup(ctx, intent)
	if ctx.Err() != nil {
		// A cancelled lookup says nothing about the venue
		return result
	}
	r.save(ctx, result, payload)
	return result
}

func (r *Resolver) observeCache(hit bool) {
	if r.onCacheLookup != nil {
		r.onCacheLookup(hit)
	}
}

// withinHorizon reports whether Dec 31 of year falls before now + horizon.
// A missing year counts as near-term.
func (r *Resolver) withinHorizon(year *int) bool {
	if year == nil {
		return true
	}
	now := r.now().UTC()
	eventDate := time.Date(*year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return !eventDate.After(now.AddDate(0, r.horizonMonths, 0))
}

type queryAttempt struct {
	Query string `json:"query"`
	Page  string `json:"page,omitempty"`
	Error string `json:"error,omitempty"`
}

type pageAttempt struct {
	Title       string `json:"title"`
	ExtractHead string `json:"extract_head"`
}

type lookupPayload struct {
	Queries []queryAttempt `json:"queries"`
	Pages   []pageAttempt  `json:"pages"`
}

func (r *Resolver) lookup(ctx context.Context, intent model.EventIntent) (*model.EventVenueResult, *lookupPayload) {
	payload := &lookupPayload{}
	if r.source == nil {
		return r.notAvailable(intent, reasonUnconfirmed), payload
	}

	for _, query := range CandidateQueries(intent, r.now().Year()) {
		if ctx.Err() != nil {
			break
		}

		attempt := queryAttempt{Query: query}
		title, err := r.source.Search(ctx, query)
		if err != nil {
			attempt.Error = err.Error()
			r.log.Debug("event search failed", logging.String("query", query), logging.Error(err))
		}
		attempt.Page = title
		payload.Queries = append(payload.Queries, attempt)
		if title == "" {
			continue
		}

		text, err := r.source.Extract(ctx, title)
		if err != nil {
			r.log.Debug("event extract failed", logging.String("page", title), logging.Error(err))
			continue
		}
		if text == "" {
			continue
		}
		payload.Pages = append(payload.Pages, pageAttempt{Title: title, ExtractHead: head(text, extractHeadChars)})

		venue, ok := ParseVenue(text)
		if !ok {
			continue
		}

		now := r.now()
		return &model.EventVenueResult{
			Status:     model.VenueConfirmed,
			EventKey:   intent.Key,
			EventYear:  intent.Year,
			VenueName:  venue.Name,
			City:       venue.City,
			Country:    venue.Country,
			SourceURL:  r.source.PageURL(title),
			Confidence: ConfirmedConfidence,
			Reason:     reasonConfirmed,
			FetchedAt:  now,
			ExpiresAt:  now.Add(r.confirmedTTL),
		}, payload
	}

	return r.notAvailable(intent, reasonUnconfirmed), payload
}

func (r *Resolver) notAvailable(intent model.EventIntent, reason string) *model.EventVenueResult {
	now := r.now()
	return &model.EventVenueResult{
		Status:     model.VenueNotAvailable,
		EventKey:   intent.Key,
		EventYear:  intent.Year,
		Confidence: NotAvailableConfidence,
		Reason:     reason,
		FetchedAt:  now,
		ExpiresAt:  now.Add(r.negativeTTL),
	}
}

func (r *Resolver) save(ctx context.Context, result *model.EventVenueResult, payload *lookupPayload) {
	if r.store == nil {
		return
	}

	var raw []byte
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	if err := r.store.Put(ctx, result, raw); err != nil {
		r.log.Warn("event venue cache write failed", logging.String("event", result.EventKey), logging.Error(err))
	}
}

func head(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n])
}
