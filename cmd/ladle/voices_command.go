package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ladle/internal/apiclient"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the narration voice catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Voices(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				rows := make([][]string, 0, len(resp.Voices))
				for _, voice := range resp.Voices {
					rows = append(rows, []string{
						voice.ID,
						voice.Name,
						voice.Locale,
						voice.Gender,
						truncate(voice.Description, 52),
					})
				}
				out := renderTable(
					[]string{"ID", "NAME", "LOCALE", "GENDER", "DESCRIPTION"},
					rows,
					nil,
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newVoiceCommand(ctx *commandContext) *cobra.Command {
	voiceCmd := &cobra.Command{
		Use:   "voice",
		Short: "Show or change the voice your recipes are narrated with",
	}
	voiceCmd.AddCommand(newVoiceShowCommand(ctx))
	voiceCmd.AddCommand(newVoiceSetCommand(ctx))
	return voiceCmd
}

// voiceUser resolves the user whose preference is read or written. Voice
// preferences are stored per user id, so an anonymous caller must sign
// up (or pass --user) first.
func voiceUser(ctx *commandContext) (string, error) {
	userID, _, err := ctx.identity()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("voice preferences need a user id; pass --user")
	}
	return userID, nil
}

func newVoiceShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active narration voice",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := voiceUser(ctx)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.UserVoice(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Voice for %s: %s\n", resp.UserID, resp.VoiceID)
				return nil
			})
		},
	}
}

func newVoiceSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <voice-id>",
		Short: "Select the narration voice for future recipes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := voiceUser(ctx)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.SetUserVoice(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Voice for %s set to %s\n", resp.UserID, resp.VoiceID)
				return nil
			})
		},
	}
}
