package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ladle/internal/apiclient"
)

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <recipe-id>",
		Short: "Delete one of your recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				msg, err := client.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg.Message)
				return nil
			})
		},
	}
}

func newSaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "save <recipe-id>",
		Short: "Copy an existing recipe into your collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				recipe, err := client.Save(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %q as %s\n", recipe.Title, recipe.ID)
				return nil
			})
		},
	}
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <anonymous-id>",
		Short: "Claim recipes created under an anonymous id for your user",
		Long:  "Reassigns every recipe owned by the anonymous id to the user given with --user.\nRun this after signing up to keep recipes added before the account existed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Migrate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d recipe(s)\n", resp.Migrated)
				return nil
			})
		},
	}
}
