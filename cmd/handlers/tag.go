package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"parkintel/internal/classify"
	"parkintel/internal/logger"
)

// NewTagCmd creates the tag command, which runs the LLM relevance tagger
// over unscored articles.
func NewTagCmd() *cobra.Command {
	var (
		limit     int
		batchSize int
		backfill  bool
	)

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Score unscored articles with the configured LLM",
		Long: `Tag selects articles that have never been scored, sends them to the
configured LLM provider in batches, and records a 1-5 relevance score
plus narrative tags per article. Already-scored articles are never
re-sent, so the command is safe to re-run after a partial failure.

Examples:
  parkintel tag
  parkintel tag --limit 50 --batch-size 5
  parkintel tag --backfill`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if batchSize > 0 {
				cfg.LLM.BatchSize = batchSize
			}
			if backfill {
				limit = 0
			}

			ctx := cmd.Context()
			classifier, err := classify.NewClassifier(ctx, cfg.LLM)
			if err != nil {
				return fmt.Errorf("create classifier: %w", err)
			}

			tagger := classify.NewTagger(st, classifier, classify.Options{
				BatchSize:   cfg.LLM.BatchSize,
				MinInterval: cfg.LLM.MinIntervalDuration(),
			}, logger.Get())

			stats, err := tagger.Run(ctx, limit)
			if err != nil {
				return err
			}

			fmt.Printf("selected %d articles: %d scored, %d failed\n", stats.Selected, stats.Scored, stats.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "cap the number of articles to score (0 = all unscored)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "articles per LLM call (0 = use config)")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "process the whole unscored backlog, ignoring --limit")
	return cmd
}
