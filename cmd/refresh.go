package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"authsession/pkg/logging"
)

func newRefreshCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored credential now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := env.session.Refresh(ctx); err != nil {
				logging.Audit(logging.AuditEvent{Action: "refresh", Outcome: "failure", Details: err.Error()})
				return err
			}
			logging.Audit(logging.AuditEvent{Action: "refresh", Outcome: "success"})
			fmt.Fprintln(cmd.OutOrStdout(), "Credential refreshed.")
			return nil
		},
	}
}
