package client

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// Message is one conversation history entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse mirrors GET /history.
type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

// HistoryCmd creates the history command.
func HistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runHistory(api, cmd.OutOrStdout(), outputJSON)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runHistoryClear(api, cmd.OutOrStdout())
		},
	})

	return cmd
}

// CacheCmd creates the cache parent command.
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Invalidate every cached response",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runCacheClear(api, cmd.OutOrStdout())
		},
	})

	return cmd
}

func runHistory(api *APIClient, w io.Writer, outputJSON bool) error {
	resp, err := api.Get("/history")
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	var history HistoryResponse
	if err := decodeData(resp, &history); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(w, history)
	}

	if len(history.Messages) == 0 {
		fmt.Fprintln(w, "No messages.")
		return nil
	}
	for _, m := range history.Messages {
		fmt.Fprintf(w, "[%s] %s: %s\n", m.Timestamp.Local().Format(time.Kitchen), m.Role, m.Content)
	}
	return nil
}

func runHistoryClear(api *APIClient, w io.Writer) error {
	if _, err := api.Delete("/history"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Fprintln(w, "History cleared")
	return nil
}

func runCacheClear(api *APIClient, w io.Writer) error {
	if _, err := api.Post("/cache/invalidate", nil); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintln(w, "Cache cleared")
	return nil
}
