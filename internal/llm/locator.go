package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/geoinfer/internal/cache"
	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

const (
	// MaxConfidence caps what an LLM answer may claim
	MaxConfidence = 0.85

	defaultConfidence = 0.5
	reasonPrefix      = "LLM: "
	defaultCacheTTL   = 7 * 24 * time.Hour
)

// ErrUnavailable is returned when the configured provider fails its availability check
var ErrUnavailable = errors.New("llm provider not available")

// Locator asks an LLM for locations when no other signal produced any
type Locator struct {
	provider Provider
	config   Config
	cache    cache.Cache
	cacheTTL time.Duration
	log      logging.Logger

	checkOnce sync.Once
	available bool
}

// NewLocator creates a locator from config. A disabled config yields a
// locator whose Locate is a no-op.
func NewLocator(config Config, c cache.Cache, log logging.Logger) (*Locator, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	return NewLocatorWithProvider(provider, config, c, log), nil
}

// NewLocatorWithProvider wraps an existing provider. c may be nil.
func NewLocatorWithProvider(provider Provider, config Config, c cache.Cache, log logging.Logger) *Locator {
	return &Locator{
		provider: provider,
		config:   config,
		cache:    c,
		cacheTTL: defaultCacheTTL,
		log:      logging.OrNop(log),
	}
}

// IsEnabled returns true if LLM fallback is enabled
func (l *Locator) IsEnabled() bool {
	return l != nil && l.provider != nil
}

// ProviderName returns the name of the active provider
func (l *Locator) ProviderName() string {
	if !l.IsEnabled() {
		return ""
	}
	return l.provider.Name()
}

// Locate returns candidates for in. Answers are cached by prompt so repeated
// prompts do not reach the provider.
func (l *Locator) Locate(ctx context.Context, in model.Input) ([]model.Candidate, error) {
	if !l.IsEnabled() {
		return nil, nil
	}

	prompt := BuildPrompt(in)
	key := cache.Key("llm", l.provider.Name(), l.config.Model, prompt)

	if l.cache != nil {
		if raw, ok := l.cache.Get(ctx, key); ok {
			l.log.Debug("llm cache hit", logging.String("provider", l.provider.Name()))
			return ParseLocations(string(raw))
		}
	}

	l.checkOnce.Do(func() {
		l.available = l.provider.IsAvailable(ctx)
	})
	if !l.available {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, l.provider.Name())
	}

	resp, err := l.provider.Complete(ctx, CompletionRequest{
		Prompt:      prompt,
		System:      systemPrompt,
		Model:       l.config.Model,
		MaxTokens:   l.config.MaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm locate: %w", err)
	}
	l.log.Debug("llm answered",
		logging.String("provider", l.provider.Name()),
		logging.String("model", resp.Model),
		logging.Int("tokens", resp.TokensUsed))

	cands, err := ParseLocations(resp.Text)
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		if err := l.cache.Set(ctx, key, []byte(resp.Text), l.cacheTTL); err != nil {
			l.log.Warn("llm cache write failed", logging.Error(err))
		}
	}
	return cands, nil
}

type llmLocation struct {
	Name       string   `json:"location_name"`
	Type       string   `json:"location_type"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// ParseLocations decodes a JSON array answer, tolerating a markdown code fence.
// Confidences are capped at MaxConfidence and default to 0.5.
func ParseLocations(raw string) ([]model.Candidate, error) {
	text := stripFence(raw)

	var items []llmLocation
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("parse llm answer: %w", err)
	}

	cands := make([]model.Candidate, 0, len(items))
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}

		conf := defaultConfidence
		if it.Confidence != nil {
			conf = *it.Confidence
		}
		conf = model.Clamp01(conf)
		if conf > MaxConfidence {
			conf = MaxConfidence
		}

		reason := strings.TrimSpace(it.Reason)
		if reason == "" {
			reason = "inferred by LLM"
		}

		c := model.Candidate{
			Name:       name,
			Kind:       model.ParseKind(strings.ToLower(strings.TrimSpace(it.Type))),
			Confidence: conf,
			Reason:     reasonPrefix + reason,
			Method:     model.MethodLLM,
		}
		if c.Kind == model.KindGlobal {
			c.Name = model.GlobalName
			c.PlaceID = model.GlobalPlaceID
		}
		cands = append(cands, c)
	}
	return cands, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
