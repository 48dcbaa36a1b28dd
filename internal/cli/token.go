package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
)

var (
	flagSubject string
	flagRole    string
	flagCost    int
)

// hashKeyCmd prints the value for AUTH_API_KEY_HASH.
var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api-key>",
	Short: "Hash an admin API key for AUTH_API_KEY_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashed, err := auth.HashAPIKey(args[0], flagCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hashed)
		return nil
	},
}

// tokenCmd signs an API token with the configured secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token without going through /auth/token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		token, err := service.NewAuthService(cfg.Auth, logger).IssueToken(flagSubject, domain.APIRole(flagRole))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token.Value)
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().IntVar(&flagCost, "cost", 0, "bcrypt cost (0 uses the default)")
	tokenCmd.Flags().StringVar(&flagSubject, "subject", "bot", "token subject")
	tokenCmd.Flags().StringVar(&flagRole, "role", string(domain.APIRoleIntegration), "admin or integration")
	rootCmd.AddCommand(hashKeyCmd, tokenCmd)
}
