package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// ProfileCmd creates the profile parent command.
func ProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Read or replace the stored profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current profile as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runProfileGet(api, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <file>",
		Short: "Replace the profile with the contents of a JSON file",
		Long:  "Uploads a profile document. The server invalidates cached answers and schedules an index rebuild.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runProfileSet(api, cmd.OutOrStdout(), args[0])
		},
	})

	return cmd
}

func runProfileGet(api *APIClient, w io.Writer) error {
	resp, err := api.Get("/profile")
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	var profile json.RawMessage
	if err := decodeData(resp, &profile); err != nil {
		return err
	}
	return printJSON(w, profile)
}

func runProfileSet(api *APIClient, w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("%s is not valid JSON", path)
	}

	if _, err := api.Put("/profile", json.RawMessage(data)); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	fmt.Fprintln(w, "Profile updated")
	return nil
}
