package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/lufe-digital/inbox-zero/pkg/oauth"
)

func tokenCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "token <integration>",
		Short: "Print a currently-valid credential for an integration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			token, err := rt.manager.GetAuthToken(cmd.Context(), args[0], account)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Email account ID")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func refreshCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "refresh <integration>",
		Short: "Ensure the stored access token is valid, refreshing it if needed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.manager.EnsureValid(cmd.Context(), args[0], account); err != nil {
				return err
			}
			cmd.Println("Token is valid.")
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Email account ID")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func setAPIKeyCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "set-api-key <integration> <key>",
		Short: "Store an API key for an api-token integration.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.manager.ConfigureAPIKey(cmd.Context(), args[0], account, args[1]); err != nil {
				return err
			}
			cmd.Println("API key stored.")
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Email account ID")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func statusCommand(opts *rootOptions) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "status <integration>",
		Short: "Show the connection status for an integration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			_, err = rt.manager.GetAuthToken(cmd.Context(), args[0], account)
			switch {
			case err == nil:
				cmd.Println("connected")
			case isNotConnected(err):
				cmd.Println("not connected")
			case isReconnectRequired(err):
				cmd.Println("reconnect required")
			default:
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "Email account ID")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func isNotConnected(err error) bool {
	var notConnected *oauth.NotConnectedError
	return errors.As(err, &notConnected)
}

func isReconnectRequired(err error) bool {
	var reconnect *oauth.ReconnectRequiredError
	return errors.As(err, &reconnect)
}
