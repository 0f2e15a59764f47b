package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"parkintel/internal/tagger"
)

// NewBackfillTagsCmd creates the backfill-tags command, which recomputes
// keyword tags for every stored article. Run it after changing the
// keyword vocabulary; relevance scores and narrative tags are untouched.
func NewBackfillTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill-tags",
		Short: "Recompute keyword tags for all stored articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := setup(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			articles, err := st.AllArticles(ctx)
			if err != nil {
				return err
			}

			updated := 0
			for _, a := range articles {
				tags := tagger.Tag(a.Title, a.Content)
				if err := st.ReplaceTags(ctx, a.ID, tags); err != nil {
					return fmt.Errorf("retag article %d: %w", a.ID, err)
				}
				updated++
			}

			fmt.Printf("recomputed tags for %d articles\n", updated)
			return nil
		},
	}
	return cmd
}
