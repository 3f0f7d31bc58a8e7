package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/geoinfer/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-turn prompt and returns the model's text
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one prompt
type CompletionRequest struct {
	Prompt string

	// System is an optional system instruction
	System string

	// Model overrides the configured model
	Model string

	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the model's answer
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

const (
	defaultMaxTokens   = 500
	defaultTemperature = 0.1
)

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   30,
		MaxTokens: defaultMaxTokens,
	}
}

const systemPrompt = "You extract geographic locations from prediction market questions and answer with JSON only."

// BuildPrompt asks for a JSON array of locations for one prompt
func BuildPrompt(in model.Input) string {
	var b strings.Builder
	b.WriteString(`Analyze this prediction market question and extract geographic locations.
Return a JSON array of objects with these fields:
- location_name: human-readable location (e.g., "Atlanta, GA" or "London, UK")
- location_type: one of "city", "state", "country", "region", "building", "global"
- confidence: float 0-1 indicating how strongly the market relates to this location
- reason: brief explanation

If the market has no geographic relevance, return:
[{"location_name": "Global / No specific location", "location_type": "global", "confidence": 0.9, "reason": "No geographic relevance"}]

`)
	fmt.Fprintf(&b, "Market question: %s\n", strings.TrimSpace(in.Title))
	if d := strings.TrimSpace(in.Description); d != "" {
		fmt.Fprintf(&b, "Market description: %s\n", d)
	}
	if len(in.Choices) > 0 {
		fmt.Fprintf(&b, "Outcomes: %s\n", strings.Join(in.Choices, " | "))
	}
	b.WriteString("\nReturn ONLY the JSON array, no other text.")
	return b.String()
}
