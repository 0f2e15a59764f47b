package handlers

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

// NewLatestCmd creates the latest command, which prints recent articles
// as JSON.
func NewLatestCmd() *cobra.Command {
	var (
		limit        int
		source       string
		minRelevance int
	)

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the most recently ingested articles as JSON",
		Long: `Latest prints stored articles newest-first, optionally filtered by
source or minimum relevance score.

Examples:
  parkintel latest --limit 10
  parkintel latest --source hackernews --min-relevance 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			articles, err := st.Latest(cmd.Context(), limit, source, minRelevance)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(articles)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of articles to print")
	cmd.Flags().StringVar(&source, "source", "", "filter by source")
	cmd.Flags().IntVar(&minRelevance, "min-relevance", 0, "filter by minimum relevance score")
	return cmd
}
