package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"courtpack/internal/chunker"
	"courtpack/internal/grounder"
	"courtpack/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the claim-pack corpus",
	Long: `Reads every .pdf and .txt document under corpus.dir, splits the pages
into overlapping chunks, embeds them, and persists the index to index.dir.
Documents that cannot be read are skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ck, err := chunker.NewWindowChunker(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}
	emb, err := newEmbedder()
	if err != nil {
		return err
	}
	ix := index.New(emb)

	stats, err := grounder.NewBuilder(ck, ix, logger).BuildFromDir(cfg.Corpus.Dir)
	if err != nil {
		return fmt.Errorf("build index from %s: %w", cfg.Corpus.Dir, err)
	}
	if err := ix.Save(cfg.Index.Dir); err != nil {
		return fmt.Errorf("save index to %s: %w", cfg.Index.Dir, err)
	}

	m := ix.Manifest()
	cmd.Printf("Indexed %d documents (%d skipped): %d pages, %d chunks.\n",
		stats.Sources, stats.Skipped, stats.Pages, stats.Chunks)
	cmd.Printf("Index %s saved to %s (model %s, dimension %d).\n",
		m.BuildID, cfg.Index.Dir, m.EmbeddingModel, m.Dimension)
	return nil
}
