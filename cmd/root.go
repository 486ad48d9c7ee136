package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"authsession/pkg/auth"
	"authsession/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates no credential is available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the credential could not be refreshed.
	ExitCodeAuthFailed = 3
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	debug      bool
}

var version = "dev"

// rootCmd is the entry point when the application is called without any
// subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "authsession",
		Short: "Manage API credentials for scripts and tools",
		Long: `authsession keeps an access token, refresh token and expiry on disk,
attaches them to HTTP requests and refreshes them before they expire.
Several processes can share the same credential directory; a logout or
refresh in one of them is seen by the others.`,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logging.LevelWarn
			if opts.debug {
				level = logging.LevelDebug
			}
			logging.InitForCLI(level, cmd.ErrOrStderr())
		},
	}
	cmd.Version = version
	cmd.SetVersionTemplate(`{{printf "authsession version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default is $HOME/.config/authsession/config.yaml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newRefreshCmd(opts),
		newGetCmd(opts),
		newWatchCmd(opts),
	)
	return cmd
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return version
}

// Execute runs the root command and exits with a semantic exit code on
// failure. This function is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, errNotLoggedIn), auth.IsKind(err, auth.KindUnauthenticated):
		return ExitCodeAuthRequired
	case auth.IsKind(err, auth.KindRefreshFailed):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}
