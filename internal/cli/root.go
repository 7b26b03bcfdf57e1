// Package cli wires the configuration, the embedder, the index, and the
// grounding service into cobra commands.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"courtpack/internal/config"
	"courtpack/internal/domain"
	"courtpack/internal/embedding"
	"courtpack/internal/extract"
	"courtpack/internal/grounder"
	"courtpack/internal/index"
)

const version = "0.3.0"

var (
	cfgPath string
	verbose bool

	cfg    *config.AppConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "courtpack",
	Short:         "Grounded retrieval over multi-page claim packs",
	Long:          "courtpack indexes claim-pack documents page by page and answers\nquestions with citations back to the source page.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
			return err
		}
		var from string
		cfg, from, err = config.LoadDefault()
		if err == nil {
			logger.Debug("configuration loaded", "path", from)
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.yaml (default: ./config.yaml, then ~/.config/courtpack/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// newEmbedder builds the embedder the configuration selects. Load-time
// validation guarantees the type is known.
func newEmbedder() (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai":
		oc := cfg.Embedder.OpenAI
		return embedding.NewOpenAIClient(embedding.OpenAIConfig{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return embedding.NewTFIDF(), nil
	}
}

// openIndex loads the persisted index for querying. A stale index (sources
// changed since the build) is a warning, not a failure: the chunks still
// answer queries, they just may not reflect the files on disk.
func openIndex() (*index.Index, error) {
	emb, err := newEmbedder()
	if err != nil {
		return nil, err
	}
	ix, err := index.Load(cfg.Index.Dir, emb)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: no index at %s, run \"courtpack index\" first", domain.ErrIndexNotBuilt, cfg.Index.Dir)
		}
		return nil, err
	}
	if err := ix.VerifySources(); err != nil {
		if !errors.Is(err, domain.ErrStaleIndex) {
			return nil, err
		}
		logger.Warn("index is stale", "reason", err)
	}
	return ix, nil
}

// session exposes the query surface the TUI needs.
type session struct {
	*grounder.Service
	ix *index.Index
}

func (s session) Packs() []string { return s.ix.Packs() }

func newSession(fetchK int) (session, error) {
	ix, err := openIndex()
	if err != nil {
		return session{}, err
	}
	svc := grounder.New(ix, extract.NewRegex(), fetchK, logger)
	return session{Service: svc, ix: ix}, nil
}
