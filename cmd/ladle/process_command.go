package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ladle/internal/apiclient"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "process <url>",
		Short: "Turn a recipe page or cooking video into a narrated recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				fmt.Fprintf(cmd.ErrOrStderr(), "Processing %s ...\n", args[0])
				recipe, err := client.Process(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, recipe)
				}
				printRecipe(cmd.OutOrStdout(), recipe)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the recipe as JSON")
	return cmd
}
