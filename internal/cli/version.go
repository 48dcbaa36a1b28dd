package cli

import (
	"fmt"
	goruntime "runtime"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X github.com/spec-kit/ticket-bot/internal/cli.version=...".
var (
	version = "dev"
	commit  = "none"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ticketbot %s (%s) %s\n", version, commit, goruntime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
