package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"authsession/pkg/logging"
)

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored credential",
		Long: `Remove the stored credential. Other processes watching the same
credential directory observe the logout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			if err := env.session.Clear(); err != nil {
				return fmt.Errorf("failed to clear credential: %w", err)
			}
			logging.Audit(logging.AuditEvent{Action: "logout", Outcome: "success", Target: env.storageDescription()})
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
