package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geoinfer/internal/model"
	"github.com/ppiankov/geoinfer/internal/pipeline"
)

var (
	description  string
	choices      []string
	outJSON      string
	format       string
	inferTimeout time.Duration
	noEvent      bool
	noSemantic   bool
	noCache      bool
	llmEnabled   bool
	llmProvider  string
	llmModel     string
)

// inferCmd represents the infer command
var inferCmd = &cobra.Command{
	Use:   "infer <title>",
	Short: "Infer the locations a single prompt is about",
	Long: `Infer runs every signal over one prompt:
- Gazetteer, team, institution and landmark tables
- Seat-of-government defaults for policy prompts
- Named-event venue lookup with a local cache
- Semantic retrieval over the place index
- Optional LLM fallback when nothing else matched

Example:
  geoinfer infer "Atlanta Hawks vs Lakers"
  geoinfer infer "Who wins the election?" --description "Polls close in Ohio" --choice Yes --choice No
  geoinfer infer "Oscars 2026: Best Picture Winner" --json result.json
  geoinfer infer "Will they win the division?" --llm --llm-provider ollama --llm-model llama3`,
	Args: cobra.ExactArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)

	inferCmd.Flags().StringVar(&description, "description", "", "prompt description")
	inferCmd.Flags().StringArrayVar(&choices, "choice", nil, "answer choice (repeatable)")
	inferCmd.Flags().StringVar(&outJSON, "json", "", "also write the result as JSON to this path")
	inferCmd.Flags().StringVar(&format, "format", "", "stdout format: text or json (default from config)")
	inferCmd.Flags().DurationVar(&inferTimeout, "timeout", 30*time.Second, "overall inference timeout")
	inferCmd.Flags().BoolVar(&noEvent, "no-event", false, "disable the event venue lookup")
	inferCmd.Flags().BoolVar(&noSemantic, "no-semantic", false, "disable semantic retrieval")
	inferCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the geocode and LLM answer cache")

	inferCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM fallback")
	inferCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	inferCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runInfer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyInferFlags(cfg)
	if err := applyLLMEnv(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), inferTimeout)
	defer cancel()

	engine, closeEngine, err := pipeline.Build(cfg, log, nil)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer func() { _ = closeEngine() }()

	in := model.Input{Title: args[0], Description: description, Choices: choices}
	result, err := engine.Infer(ctx, in)
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.Verbose)
	if outJSON != "" {
		if err := renderer.RenderJSON(result, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}

	if cfg.Output.Format == "text" {
		return renderer.WriteText(os.Stdout, result)
	}
	return renderer.WriteJSON(os.Stdout, result)
}

// applyInferFlags overrides config with explicitly set flags
func applyInferFlags(cfg *model.Config) {
	if format != "" {
		cfg.Output.Format = format
	}
	if noEvent {
		cfg.Event.Enabled = false
	}
	if noSemantic {
		cfg.Semantic.Enabled = false
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if llmEnabled {
		cfg.LLM.Enabled = true
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
}
