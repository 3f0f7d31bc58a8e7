package model

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds all runtime settings
type Config struct {
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Event        EventConfig       `yaml:"event" mapstructure:"event"`
	Semantic     SemanticConfig    `yaml:"semantic" mapstructure:"semantic"`
	Inference    InferenceConfig   `yaml:"inference" mapstructure:"inference"`
	Geocoder     GeocoderConfig    `yaml:"geocoder" mapstructure:"geocoder"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	LLM          LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Log          LogConfig         `yaml:"log" mapstructure:"log"`
	Output       OutputConfig      `yaml:"output" mapstructure:"output"`
	Metrics      MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}

// HTTPConfig controls outbound requests
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent  string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBytes   int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig controls the generic byte cache used for geocoding and LLM answers
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir           string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL     time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL       time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisAddr     string        `yaml:"redis_addr,omitempty" mapstructure:"redis_addr"` // Empty disables the shared layer
	RedisPassword string        `yaml:"-" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// EventConfig controls the event venue resolver
type EventConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	DBPath        string        `yaml:"db_path" mapstructure:"db_path"`
	HorizonMonths int           `yaml:"horizon_months" mapstructure:"horizon_months"`
	ConfirmedTTL  time.Duration `yaml:"confirmed_ttl" mapstructure:"confirmed_ttl"`
	NegativeTTL   time.Duration `yaml:"negative_ttl" mapstructure:"negative_ttl"`
	WikipediaURL  string        `yaml:"wikipedia_url" mapstructure:"wikipedia_url"`
	PageFallback  bool          `yaml:"page_fallback" mapstructure:"page_fallback"` // Parse rendered page HTML when the extract API yields nothing
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// SemanticConfig controls the retrieval pipeline
type SemanticConfig struct {
	Enabled         bool    `yaml:"enabled" mapstructure:"enabled"`
	SeedPath        string  `yaml:"seed_path,omitempty" mapstructure:"seed_path"` // Empty uses the built-in dataset
	IndexDir        string  `yaml:"index_dir" mapstructure:"index_dir"`
	Dim             int     `yaml:"dim" mapstructure:"dim"`
	TopN            int     `yaml:"top_n" mapstructure:"top_n"`
	TopK            int     `yaml:"top_k" mapstructure:"top_k"`
	Floor           float64 `yaml:"floor" mapstructure:"floor"`
	MergeFloor      float64 `yaml:"merge_floor" mapstructure:"merge_floor"`
	CalibrationFile string  `yaml:"calibration_file,omitempty" mapstructure:"calibration_file"`
}

// InferenceConfig controls arbitration
type InferenceConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
	NLP           bool    `yaml:"nlp" mapstructure:"nlp"` // Proper-noun recognizer
}

// GeocoderConfig controls the optional external geocoder
type GeocoderConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Provider     string        `yaml:"provider" mapstructure:"provider"`
	URL          string        `yaml:"url" mapstructure:"url"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimitRPS float64       `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	CacheTTL     time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// RateLimitConfig is the default per-host request budget
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// ConcurrencyConfig controls batch workers
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LLMConfig controls the optional LLM fallback
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"-" mapstructure:"api_key"` // Never written to disk
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// OutputConfig controls rendering
type OutputConfig struct {
	Format  string `yaml:"format" mapstructure:"format"` // json or text
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// MetricsConfig controls the Prometheus endpoint used by batch runs
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// DefaultDataDir returns ~/.geoinfer, or .geoinfer when the home directory is unknown
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".geoinfer"
	}
	return filepath.Join(home, ".geoinfer")
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	return &Config{
		HTTP: HTTPConfig{
			Timeout:    10 * time.Second,
			UserAgent:  "geoinfer/0.1 (+https://github.com/ppiankov/geoinfer)",
			MaxBytes:   2_000_000,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(dataDir, "cache"),
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   30 * 24 * time.Hour,
		},
		Event: EventConfig{
			Enabled:       true,
			DBPath:        filepath.Join(dataDir, "event_venue_cache.db"),
			HorizonMonths: 18,
			ConfirmedTTL:  14 * 24 * time.Hour,
			NegativeTTL:   3 * 24 * time.Hour,
			WikipediaURL:  "https://en.wikipedia.org",
			PageFallback:  true,
			RespectRobots: true,
		},
		Semantic: SemanticConfig{
			Enabled:    true,
			IndexDir:   filepath.Join(dataDir, "index"),
			Dim:        384,
			TopN:       8,
			TopK:       5,
			Floor:      0.05,
			MergeFloor: 0.5,
		},
		Inference: InferenceConfig{
			MinConfidence: 0.15,
			MaxCandidates: 5,
			NLP:           true,
		},
		Geocoder: GeocoderConfig{
			Enabled:      false,
			Provider:     "nominatim",
			URL:          "https://nominatim.openstreetmap.org",
			UserAgent:    "geoinfer/0.1",
			RateLimitRPS: 1.0,
			MaxRetries:   3,
			CacheTTL:     30 * 24 * time.Hour,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2.0,
			BurstSize:         2,
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		LLM: LLMConfig{
			Enabled:   false,
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   30,
			MaxTokens: 500,
		},
		Log: LogConfig{
			Level: "warn",
		},
		Output: OutputConfig{
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}
