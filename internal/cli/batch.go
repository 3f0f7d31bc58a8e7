package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ppiankov/geoinfer/internal/logging"
	"github.com/ppiankov/geoinfer/internal/metrics"
	"github.com/ppiankov/geoinfer/internal/pipeline"
	"github.com/ppiankov/geoinfer/internal/worker"
)

var (
	concurrency  int
	outputPath   string
	batchTimeout time.Duration
	metricsAddr  string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Infer locations for many prompts from a file in parallel",
	Long: `Batch processes many prompts concurrently:
- Read prompts from the input file, one per line
- A line starting with "{" is a JSON object with title, description, choices and id
- Any other line is a bare title
- Write one JSON result per line, in input order

Example:
  geoinfer batch prompts.txt
  geoinfer batch prompts.jsonl --concurrency 8 --output results.jsonl
  geoinfer batch prompts.jsonl --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVar(&outputPath, "output", "-", "JSONL output path, - for stdout")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")

	batchCmd.Flags().BoolVar(&noEvent, "no-event", false, "disable the event venue lookup")
	batchCmd.Flags().BoolVar(&noSemantic, "no-semantic", false, "disable semantic retrieval")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the geocode and LLM answer cache")
	batchCmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM fallback")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyInferFlags(cfg)
	if concurrency > 0 {
		cfg.Concurrency.Workers = concurrency
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = metricsAddr
	}
	if err := applyLLMEnv(cfg); err != nil {
		return err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  geoinfer Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output:       %s\n", outputPath)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	if cfg.LLM.Enabled {
		fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintf(os.Stderr, "\n")

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		stop, err := serveMetrics(cfg.Metrics.Addr, m, log)
		if err != nil {
			return err
		}
		defer stop()
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n\n", cfg.Metrics.Addr)
	}

	engine, closeEngine, err := pipeline.Build(cfg, log, m)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	defer func() { _ = closeEngine() }()

	out, closeOut, err := openOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeOut(); cerr != nil && err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	processor := worker.NewBatchProcessor(engine, cfg.Concurrency.Workers, log)

	fmt.Fprintf(os.Stderr, "⚙️  Reading prompts from file...\n")
	inputs, err := worker.ReadInputsFromFile(file)
	if err != nil {
		return fmt.Errorf("read inputs: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d prompts\n\n", len(inputs))

	results := processor.ProcessInputs(ctx, inputs)

	renderer := pipeline.NewRenderer(false)
	var successCount, failureCount, locatedCount int
	for _, r := range results {
		if r.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Input.Title, r.Error)
			continue
		}
		successCount++
		if r.Result.HasLocation {
			locatedCount++
		}
		if err := renderer.WriteJSONLine(out, r.Result); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	skipped := len(inputs) - len(results)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d prompts\n", len(inputs))
	fmt.Fprintf(os.Stderr, "  Success:   %d (%d with a location)\n", successCount, locatedCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "  Skipped:   %d (timeout)\n", skipped)
	}
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// serveMetrics exposes m on addr until the returned stop function is called
func serveMetrics(addr string, m *metrics.Metrics, log logging.Logger) (func(), error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", logging.String("addr", addr), logging.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

var _ worker.Inferrer = (*pipeline.Engine)(nil)
