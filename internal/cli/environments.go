package cli

import (
	"encoding/json"
	"fmt"

	"receipt-verification-api/pkg/appstore"

	"github.com/spf13/cobra"
)

// NewEnvironmentsCommand creates the environments command.
func NewEnvironmentsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "environments",
		Short:        "List the known verifyReceipt environments",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			envs := []appstore.Environment{appstore.Production, appstore.Development}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				list := make([]map[string]string, 0, len(envs))
				for _, env := range envs {
					list = append(list, map[string]string{"name": env.Name, "endpoint": env.Endpoint})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			for _, env := range envs {
				fmt.Fprintf(out, "%-12s %s\n", env.Name, env.Endpoint)
			}
			return nil
		},
	}
}
