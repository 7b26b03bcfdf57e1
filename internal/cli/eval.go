package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"courtpack/internal/eval"
)

var (
	evalGroundTruth string
	evalOutput      string
	evalTopK        int
	evalFetchK      int
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score retrieval hit@k against a ground-truth manifest",
	Long: `Replays the canonical question per (pack, field) pair in the manifest
and records a hit when the expected value appears in the retrieved
chunks. The report is deterministic for a fixed index and manifest.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVar(&evalGroundTruth, "ground-truth", "", "path to the ground-truth JSON (default: eval.ground_truth)")
	evalCmd.Flags().StringVarP(&evalOutput, "out", "o", "", "path for the report JSON (default: eval.output)")
	evalCmd.Flags().IntVarP(&evalTopK, "top-k", "k", 0, "chunks to retrieve per question (default: retrieval.top_k)")
	evalCmd.Flags().IntVar(&evalFetchK, "fetch-k", 0, "candidate pool size before filtering (default: retrieval.fetch_k)")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, _ []string) error {
	gtPath := evalGroundTruth
	if gtPath == "" {
		gtPath = cfg.Eval.GroundTruth
	}
	outPath := evalOutput
	if outPath == "" {
		outPath = cfg.Eval.Output
	}
	params := eval.Params{TopK: evalTopK, FetchK: evalFetchK}
	if params.TopK == 0 {
		params.TopK = cfg.Retrieval.TopK
	}
	if params.FetchK == 0 {
		params.FetchK = cfg.Retrieval.FetchK
	}

	gt, err := eval.LoadGroundTruth(gtPath)
	if err != nil {
		return err
	}
	sess, err := newSession(params.FetchK)
	if err != nil {
		return err
	}
	evaluator, err := eval.New(sess.Service, params, logger)
	if err != nil {
		return err
	}

	report, err := evaluator.Run(gt)
	if err != nil {
		return err
	}
	if err := eval.WriteReport(outPath, report); err != nil {
		return fmt.Errorf("write report to %s: %w", outPath, err)
	}

	cmd.Printf("hit@%d: %d/%d (%.1f%%)\n",
		report.TopK, report.Overall.Hits, report.Overall.Total, report.Overall.HitRate*100)
	cmd.Printf("Report written to %s.\n", outPath)
	return nil
}
