package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"authsession/pkg/authhttp"
)

func newGetCmd(opts *globalOptions) *cobra.Command {
	var headers []string

	cmd := &cobra.Command{
		Use:   "get <url>",
		Short: "Perform an authenticated GET request",
		Long: `Perform a GET request with the stored credential and print the response
body. A 401 response triggers one refresh and retry.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			if !env.session.IsAuthenticated() {
				return errNotLoggedIn
			}

			h := make(http.Header)
			for _, raw := range headers {
				name, value, ok := strings.Cut(raw, ":")
				if !ok {
					return fmt.Errorf("invalid header %q, expected 'Name: value'", raw)
				}
				h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
			}

			ctx := cmd.Context()
			resp, err := env.session.Do(ctx, args[0], authhttp.RequestOptions{Header: h})
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra request header, e.g. 'Accept: application/json'")
	return cmd
}
