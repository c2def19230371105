package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	feeder "github.com/viruscoding/log-feeder"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the available transports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := feeder.NewRegistry()
			for _, name := range registry.Kinds() {
				if registry.Verifiable(name) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(verifiable)\n", name)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
