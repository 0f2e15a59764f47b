package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"parkintel/cmd/handlers"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "parkintel",
	Short: "parkintel collects, tags, and aggregates market-intel articles",
	Long: `parkintel is a pipeline for short-form market intelligence.

It pulls articles from configured sources (Hacker News, Substack feeds,
YouTube channels, Xueqiu), deduplicates and keyword-tags them on ingest,
scores them for trading relevance with an LLM, and aggregates the stored
corpus into signal reports.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.parkintel.yaml)")

	rootCmd.AddCommand(handlers.NewCollectCmd())
	rootCmd.AddCommand(handlers.NewTagCmd())
	rootCmd.AddCommand(handlers.NewSignalsCmd())
	rootCmd.AddCommand(handlers.NewLatestCmd())
	rootCmd.AddCommand(handlers.NewSourcesCmd())
	rootCmd.AddCommand(handlers.NewBackfillTagsCmd())
}
