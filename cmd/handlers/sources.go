package handlers

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewSourcesCmd creates the sources command, which summarizes per-source
// ingestion activity.
func NewSourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show per-source article counts and last ingestion times",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.SourceStats(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tTOTAL\tLAST 24H\tLAST INGESTED\tLAST PUBLISHED")
			for _, s := range stats {
				lastIngested := "-"
				if !s.LastIngestedAt.IsZero() {
					lastIngested = s.LastIngestedAt.Format("2006-01-02 15:04")
				}
				lastPublished := "-"
				if !s.LastPublishedAt.IsZero() {
					lastPublished = s.LastPublishedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", s.Source, s.Count, s.Last24h, lastIngested, lastPublished)
			}
			return w.Flush()
		},
	}
	return cmd
}
