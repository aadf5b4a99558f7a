package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func integrationsCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "List the integrations in the catalog.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			keys := rt.catalog.Keys()
			sort.Strings(keys)

			if asJSON {
				out, err := json.MarshalIndent(rt.catalog.Integrations, "", "  ")
				if err != nil {
					return err
				}
				cmd.Println(string(out))
				return nil
			}

			for _, key := range keys {
				integration := rt.catalog.Integrations[key]
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %-10s %s\n", key, integration.AuthType, integration.ServerURL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON.")
	return cmd
}
