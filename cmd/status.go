package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"authsession/pkg/credstore"
)

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credential",
		Long: `Show whether a credential is stored, whether it can be refreshed and
when it expires. Token values are never printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			return renderStatus(cmd, env, time.Now())
		},
	}
}

func renderStatus(cmd *cobra.Command, env *environment, now time.Time) error {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Property", "Value"})

	t.AppendRow(table.Row{"Storage", env.storageDescription()})

	if env.session.IsAuthenticated() {
		t.AppendRow(table.Row{"Status", text.FgGreen.Sprint("Authenticated")})
	} else {
		t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Not authenticated")})
	}

	if refreshToken, ok := env.store.Get(credstore.RefreshTokenKey); ok && refreshToken != "" {
		t.AppendRow(table.Row{"Refresh", text.FgGreen.Sprint("Available")})
	} else {
		t.AppendRow(table.Row{"Refresh", text.FgYellow.Sprint("Not available (re-auth required on expiry)")})
	}

	if expiresAt, ok := env.session.ExpiresAt(); ok {
		t.AppendRow(table.Row{"Expires", formatExpiry(expiresAt, now)})
	} else {
		t.AppendRow(table.Row{"Expires", text.FgHiBlack.Sprint("Unknown")})
	}

	t.Render()
	return nil
}

// formatExpiry renders the time until (or since) expiry.
func formatExpiry(expiresAt, now time.Time) string {
	if remaining := expiresAt.Sub(now); remaining > 0 {
		return fmt.Sprintf("in %s (%s)", formatDuration(remaining), expiresAt.Local().Format(time.RFC3339))
	}
	return text.FgRed.Sprintf("expired %s ago", formatDuration(now.Sub(expiresAt)))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
