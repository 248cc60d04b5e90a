package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is stamped at release time; the default marks development builds.
var version = "0.1.0-dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the ladle version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ladle %s\n", version)
			return nil
		},
	}
}
