package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-bot/internal/service"
)

var cleanupDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop expired cooldowns and old closed tickets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, backend, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		tickets := service.NewTicketService(service.TicketDependencies{
			TicketRepo:   backend.Store.Tickets,
			CooldownRepo: backend.Store.Cooldowns,
			Logger:       logger,
			Config:       cfg.Bot,
		})
		result, err := tickets.Cleanup(cmd.Context(), cleanupDays)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %d cooldowns, deleted %d tickets\n", result.ClearedCooldowns, result.DeletedTickets)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "delete closed tickets older than this many days (0 uses TICKET_RETENTION_DAYS)")
	rootCmd.AddCommand(cleanupCmd)
}
