package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"authsession/pkg/auth"
	"authsession/pkg/interactive"
	"authsession/pkg/logging"
)

type loginOptions struct {
	accessToken  string
	refreshToken string
	expiresIn    time.Duration
	interactive  bool
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	lo := &loginOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a credential",
		Long: `Store a credential for later requests.

Pass the token pair with --access-token (and optionally --refresh-token and
--expires-in), or use --interactive to open the configured authorize URL in
a browser. The login page must redirect back with access_token and,
optionally, refresh_token and expires_in parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}

			var pair auth.TokenPair
			if lo.interactive {
				pair, err = interactiveLogin(cmd.Context(), cmd, env)
				if err != nil {
					return err
				}
			} else {
				if lo.accessToken == "" {
					return errors.New("--access-token is required unless --interactive is set")
				}
				pair = auth.TokenPair{
					AccessToken:  lo.accessToken,
					RefreshToken: lo.refreshToken,
					ExpiresIn:    int(lo.expiresIn.Seconds()),
				}
			}

			if err := env.session.SetTokens(pair); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}
			logging.Audit(logging.AuditEvent{Action: "login", Outcome: "success", Target: env.storageDescription()})
			fmt.Fprintln(cmd.OutOrStdout(), "Credential stored.")
			return nil
		},
	}

	cmd.Flags().StringVar(&lo.accessToken, "access-token", "", "access token to store")
	cmd.Flags().StringVar(&lo.refreshToken, "refresh-token", "", "refresh token to store")
	cmd.Flags().DurationVar(&lo.expiresIn, "expires-in", 0, "access token lifetime, e.g. 1h")
	cmd.Flags().BoolVar(&lo.interactive, "interactive", false, "log in through the browser")
	return cmd
}

func interactiveLogin(ctx context.Context, cmd *cobra.Command, env *environment) (auth.TokenPair, error) {
	ic := env.cfg.Interactive
	if ic.AuthorizeURL == "" {
		return auth.TokenPair{}, errors.New("interactive.authorizeURL is not configured")
	}

	flow := &interactive.LoopbackFlow{
		Timeout: ic.Timeout.Duration,
		Logger:  logging.Logger("Login"),
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Opening %s in your browser...\n", ic.AuthorizeURL)
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Waiting for authorization..."
	s.Start()
	res, err := flow.Run(ctx, ic.AuthorizeURL, ic.ExpectedOrigin)
	s.Stop()
	if err != nil {
		return auth.TokenPair{}, err
	}

	switch res.Status {
	case interactive.StatusSuccess:
	case interactive.StatusError:
		return auth.TokenPair{}, fmt.Errorf("authorization failed: %s", res.Message)
	default:
		return auth.TokenPair{}, fmt.Errorf("authorization %s: %s", res.Status, res.Message)
	}

	pair := auth.TokenPair{
		AccessToken:  res.Data.Get("access_token"),
		RefreshToken: res.Data.Get("refresh_token"),
	}
	if pair.AccessToken == "" {
		return auth.TokenPair{}, errors.New("authorization callback carried no access_token")
	}
	if raw := res.Data.Get("expires_in"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return auth.TokenPair{}, fmt.Errorf("invalid expires_in %q: %w", raw, err)
		}
		pair.ExpiresIn = seconds
	}
	return pair, nil
}
