package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ladle/internal/apiclient"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var skip, limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your recipes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				list, err := client.List(cmd.Context(), skip, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, list)
				}
				if list.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recipes yet. Add one with `ladle process <url>`.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), recipeTable(list.Recipes, list.Total))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of recipes to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum recipes to return (server default 50)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var skip, limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search your recipes by title, description, or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				list, err := client.Search(cmd.Context(), args[0], skip, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, list)
				}
				if list.Total == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No recipes match %q.\n", args[0])
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), recipeTable(list.Recipes, list.Total))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "Number of matches to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum matches to return (server default 50)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}
