package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lufe-digital/inbox-zero/pkg/oauth"
)

func connectCommand(opts *rootOptions) *cobra.Command {
	var (
		account string
		port    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "connect <integration>",
		Short: "Run the OAuth authorization flow for an integration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			integrationKey := args[0]

			callback, err := oauth.StartCallbackServer(port)
			if err != nil {
				return err
			}
			defer callback.Close()

			request, err := rt.manager.StartFlow(ctx, integrationKey, callback.RedirectURI(), "")
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Opening browser for authorization. If it does not open, visit:\n\n  %s\n\n", request.AuthorizationURL)
			if err := oauth.OpenBrowser(request.AuthorizationURL); err != nil {
				rt.log.Debug("could not open browser, continuing")
			}

			result, err := callback.Wait(ctx, timeout)
			if err != nil {
				return err
			}
			if result.State != request.State {
				return fmt.Errorf("state mismatch in OAuth callback, aborting")
			}

			tokens, err := rt.manager.Exchange(ctx, integrationKey, result.Code, request.CodeVerifier, callback.RedirectURI(), account)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Connected %s for account %s (token expires %s)\n",
				integrationKey, account, tokens.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&account, "account", "", "Email account ID to connect")
	flags.IntVar(&port, "port", 0, "Local port for the OAuth callback (0 picks a free port)")
	flags.DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the OAuth callback")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
