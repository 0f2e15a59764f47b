package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"parkintel/internal/signals"
)

// NewSignalsCmd creates the signals command, which aggregates the stored
// corpus into a JSON signal report.
func NewSignalsCmd() *cobra.Command {
	var (
		windowHours  int
		compareHours int
		source       string
		minRelevance int
		topArticles  int
	)

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Compute topic heat, narrative momentum, and activity for a time window",
		Long: `Signals compares the most recent window of ingested articles against
the window immediately before it and reports topic heat with momentum,
narrative momentum among scored articles, relevance distribution,
per-source activity, and the top articles by relevance. Output is JSON
on stdout.

Examples:
  parkintel signals
  parkintel signals --window 6 --compare-window 6
  parkintel signals --source xueqiu --min-relevance 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			if windowHours <= 0 {
				windowHours = cfg.Signals.WindowHours
			}
			if compareHours <= 0 {
				compareHours = cfg.Signals.CompareWindowHours
			}

			report, err := signals.Compute(cmd.Context(), st, time.Now().UTC(),
				time.Duration(windowHours)*time.Hour,
				time.Duration(compareHours)*time.Hour,
				signals.Options{
					Source:          source,
					MinRelevance:    minRelevance,
					TopArticleLimit: topArticles,
				})
			if err != nil {
				return fmt.Errorf("compute signals: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().IntVar(&windowHours, "window", 0, "report window in hours (0 = use config)")
	cmd.Flags().IntVar(&compareHours, "compare-window", 0, "baseline window in hours (0 = use config)")
	cmd.Flags().StringVar(&source, "source", "", "restrict the report to one source")
	cmd.Flags().IntVar(&minRelevance, "min-relevance", 3, "minimum relevance for top articles")
	cmd.Flags().IntVar(&topArticles, "top", 0, "top article count (0 = default)")
	return cmd
}
