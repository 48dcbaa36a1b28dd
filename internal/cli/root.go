// Package cli holds the ticketbot command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var categoriesFile string

var rootCmd = &cobra.Command{
	Use:           "ticketbot",
	Short:         "Support ticket bot for chat communities",
	Long:          `ticketbot opens support tickets as private threads, tracks them in a database and reports on them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&categoriesFile, "categories", "", "categories file (overrides CATEGORIES_FILE)")
}
