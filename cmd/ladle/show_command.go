package main

import (
	"github.com/spf13/cobra"

	"ladle/internal/apiclient"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <recipe-id>",
		Short: "Display one recipe in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				recipe, err := client.Get(cmd.Context(), args[0])
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
