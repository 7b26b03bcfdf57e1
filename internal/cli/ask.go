package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"courtpack/internal/grounder"
)

var (
	askPack string
	askTopK int
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question against the indexed claim packs",
	Long: `Retrieves the most relevant chunks for the question and prints a
grounded answer with a citation per supporting page. Use --pack to
restrict retrieval to a single claim pack.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askPack, "pack", "p", "", "restrict retrieval to one pack id")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default: retrieval.top_k)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	topK := askTopK
	if topK == 0 {
		topK = cfg.Retrieval.TopK
	}

	sess, err := newSession(cfg.Retrieval.FetchK)
	if err != nil {
		return err
	}

	answer, err := sess.Answer(args[0], askPack, topK)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(grounder.FormatAnswer(answer))
	return nil
}
