package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"authsession/pkg/session"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print credential changes made by other processes",
		Long: `Watch the durable credential directory and print a line whenever another
process logs in, refreshes or logs out. While watching, the credential is
also refreshed shortly before it expires. Stop with Ctrl+C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			if env.disk == nil {
				return errors.New("watch requires durable storage")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			unsubscribe := env.session.Subscribe(func(st session.State) {
				status := "logged out"
				if st.Authenticated {
					status = "authenticated"
				}
				fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.RFC3339), status)
			})
			defer unsubscribe()

			if err := env.session.Start(); err != nil {
				return err
			}
			defer env.session.Close()

			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s\n", env.disk.Dir())
			<-ctx.Done()
			return nil
		},
	}
}
