package pipeline

import (
	"errors"
	"fmt"

	"github.com/ppiankov/geoinfer/internal/cache"
	"github.com/ppiankov/geoinfer/internal/event"
	"github.com/ppiankov/geoinfer/internal/fetch"
	"github.com/ppiankov/geoinfer/internal/gazetteer"
	"github.com/ppiankov/geoinfer/internal/geocode"
	"github.com/ppiankov/geoinfer/internal/llm"
	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/metrics"
	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/nlp"
	"github.com/ppiankov/geoinfer/internal/semantic"
	"github.com/ppiankov/geoinfer/internal/store/sqlite"
	"github.com/ppiankov/geoinfer/internal/util"
	"github.com/ppiankov/geoinfer/internal/worker"
)

// Build constructs an engine with every stage cfg enables. The returned
// close function releases the event store and cache connections.
func Build(cfg *model.Config, log logging.Logger, m *metrics.Metrics) (*Engine, func() error, error) {
	log = logging.OrNop(log)
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	geo := gazetteer.New(gazetteer.DefaultTable())
	deps := Deps{
		Gazetteer:  geo,
		Recognizer: nlp.New(cfg.Inference.NLP, geo),
		Metrics:    m,
		Logger:     log,
	}

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)

	var byteCache cache.Cache
	if cfg.Cache.Enabled {
		layered := cache.New(cfg.Cache, log)
		closers = append(closers, layered.Close)
		byteCache = layered
	}

	if cfg.Event.Enabled {
		store, err := sqlite.Open(cfg.Event.DBPath)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("open event cache: %w", err)
		}
		closers = append(closers, store.Close)

		fetcher := newFetcher(cfg, cfg.HTTP.UserAgent, cfg.HTTP.MaxRetries, limiter, log)
		var robots *util.RobotsChecker
		if cfg.Event.RespectRobots {
			robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
		}
		source := event.NewWikipediaSource(cfg.Event.WikipediaURL, fetcher, robots, cfg.Event.PageFallback, log)

		deps.Events = event.NewResolver(store, source, event.Options{
			HorizonMonths: cfg.Event.HorizonMonths,
			ConfirmedTTL:  cfg.Event.ConfirmedTTL,
			NegativeTTL:   cfg.Event.NegativeTTL,
			Logger:        log,
			OnCacheLookup: m.ObserveEventCache,
		})
	}

	if cfg.Semantic.Enabled {
		sem, err := semantic.NewPipeline(cfg.Semantic, log)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		deps.Semantic = sem
	}

	if cfg.Geocoder.Enabled {
		if err := limiter.SetRateFor(cfg.Geocoder.URL, cfg.Geocoder.RateLimitRPS, 1); err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("geocoder rate limit: %w", err)
		}
		fetcher := newFetcher(cfg, cfg.Geocoder.UserAgent, cfg.Geocoder.MaxRetries, limiter, log)
		deps.Geocoder = geocode.NewNominatim(cfg.Geocoder.URL, fetcher, byteCache, cfg.Geocoder.CacheTTL, log)
	}

	if cfg.LLM.Enabled {
		locator, err := llm.NewLocator(llm.ConfigFromModel(cfg.LLM, cfg.HTTP), byteCache, log)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		deps.LLM = locator
	}

	return NewEngine(cfg, deps), closeAll, nil
}

func newFetcher(cfg *model.Config, userAgent string, retries int, limiter fetch.Waiter, log logging.Logger) *fetch.Fetcher {
	return fetch.NewFetcher(cfg.HTTP.Timeout, userAgent, cfg.HTTP.MaxBytes, false,
		cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy).
		WithLimiter(limiter).
		WithLogger(log).
		WithMaxRetries(retries)
}
