package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/geoinfer/internal/semantic"
)

var (
	indexSeed string
	indexOut  string
	indexDim  int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the semantic place index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed the seed dataset and write the index artifacts",
	Long: `Build embeds every record of the seed dataset and writes the index
artifacts (records, vectors and a manifest) to the output directory.
Inference rebuilds the index on its own when the seed changes; use this
command to prepare the artifacts ahead of time.

Example:
  geoinfer index build
  geoinfer index build --seed places.jsonl --out ./index --dim 512`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)

	indexBuildCmd.Flags().StringVar(&indexSeed, "seed", "", "seed JSONL file (default: built-in dataset or semantic.seed_path)")
	indexBuildCmd.Flags().StringVar(&indexOut, "out", "", "output directory (default: semantic.index_dir)")
	indexBuildCmd.Flags().IntVar(&indexDim, "dim", 0, "embedding dimension (default: semantic.dim)")
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seedPath := cfg.Semantic.SeedPath
	if indexSeed != "" {
		seedPath = indexSeed
	}
	out := cfg.Semantic.IndexDir
	if indexOut != "" {
		out = indexOut
	}
	dim := cfg.Semantic.Dim
	if indexDim > 0 {
		dim = indexDim
	}
	if out == "" {
		return fmt.Errorf("no output directory: set --out or semantic.index_dir")
	}

	seed, err := semantic.ReadSeed(seedPath)
	if err != nil {
		return err
	}

	start := time.Now()
	idx, err := semantic.Build(seed, out, semantic.NewEmbedder(dim))
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	source := seed.Path
	if source == "" {
		source = "built-in seed"
	}
	fmt.Fprintf(os.Stderr, "✓ Indexed %d records from %s (dim %d) in %v\n",
		idx.Len(), source, idx.Embedder().Dim(), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "  Output: %s\n", out)
	return nil
}
