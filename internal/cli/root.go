package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/model"
)

// Version is set at build time via -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "geoinfer",
	Short: "geoinfer - location inference for prediction-market prompts",
	Long: `geoinfer reads a prompt (a title, an optional description and optional
answer choices) and infers the real-world locations it is about.

Every answer is a ranked list of candidates with confidence, granularity,
coordinates and the evidence that produced it. Prompts about global topics
return a global marker, and named events whose venue is not yet public
return not_available instead of a guess.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("geoinfer %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.geoinfer/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (forces debug logging)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// Keys that may be overridden from GEOINFER_* environment variables
var envKeys = []string{
	"log.level", "log.development",
	"http.timeout", "http.user_agent", "http.http_proxy", "http.https_proxy", "http.no_proxy",
	"cache.enabled", "cache.dir", "cache.redis_addr", "cache.redis_password", "cache.redis_db",
	"event.enabled", "event.db_path", "event.horizon_months", "event.wikipedia_url",
	"semantic.enabled", "semantic.seed_path", "semantic.index_dir", "semantic.dim", "semantic.calibration_file",
	"inference.min_confidence", "inference.max_candidates", "inference.nlp",
	"geocoder.enabled", "geocoder.url", "geocoder.user_agent",
	"llm.enabled", "llm.provider", "llm.model", "llm.api_key", "llm.base_url",
	"concurrency.workers",
	"output.format",
	"metrics.enabled", "metrics.addr",
}

// initConfig reads in config file, .env and ENV variables
func initConfig() {
	// A missing .env is normal
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(model.DefaultDataDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match GEOINFER_*
	viper.SetEnvPrefix("GEOINFER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if viper.GetBool("verbose") {
		cfg.Output.Verbose = true
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// applyLLMEnv fills the provider credentials from the usual environment
// variables when the config does not carry them
func applyLLMEnv(cfg *model.Config) error {
	if !cfg.LLM.Enabled {
		return nil
	}

	switch strings.ToLower(cfg.LLM.Provider) {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

func newLogger(cfg *model.Config) (logging.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Development)
}

func configPath() string {
	return filepath.Join(model.DefaultDataDir(), "config.yaml")
}
