package client

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// StatsResponse mirrors GET /stats.
type StatsResponse struct {
	Index struct {
		TotalDocuments int    `json:"total_documents"`
		Dimension      int    `json:"dimension"`
		Model          string `json:"model"`
		Generation     string `json:"generation"`
	} `json:"index"`
	Cache struct {
		TotalEntries    int     `json:"total_entries"`
		TotalHits       int64   `json:"total_hits"`
		MostPopularType string  `json:"most_popular_query_type"`
		SizeMB          float64 `json:"cache_size_mb"`
		Hits            int64   `json:"hits"`
		Misses          int64   `json:"misses"`
	} `json:"cache"`
	HistoryLength int `json:"history_length"`
}

// RebuildResponse mirrors POST /index/rebuild.
type RebuildResponse struct {
	DocumentsAdded int `json:"documents_added"`
}

// StatsCmd creates the stats command.
func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index, cache and history statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runStats(api, cmd.OutOrStdout(), outputJSON)
		},
	}
}

// RebuildCmd creates the rebuild command.
func RebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the embedding index from the current profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runRebuild(api, cmd.OutOrStdout(), outputJSON)
		},
	}
}

func runStats(api *APIClient, w io.Writer, outputJSON bool) error {
	resp, err := api.Get("/stats")
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	var stats StatsResponse
	if err := decodeData(resp, &stats); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(w, stats)
	}

	fmt.Fprintln(w, "Index:")
	fmt.Fprintf(w, "  Documents: %d\n", stats.Index.TotalDocuments)
	fmt.Fprintf(w, "  Dimension: %d\n", stats.Index.Dimension)
	fmt.Fprintf(w, "  Model: %s\n", stats.Index.Model)
	if stats.Index.Generation != "" {
		fmt.Fprintf(w, "  Generation: %s\n", stats.Index.Generation)
	}
	fmt.Fprintln(w, "Cache:")
	fmt.Fprintf(w, "  Entries: %d (%.3f MB)\n", stats.Cache.TotalEntries, stats.Cache.SizeMB)
	fmt.Fprintf(w, "  Hits: %d  Misses: %d\n", stats.Cache.Hits, stats.Cache.Misses)
	if stats.Cache.MostPopularType != "" {
		fmt.Fprintf(w, "  Most popular: %s\n", stats.Cache.MostPopularType)
	}
	fmt.Fprintf(w, "History: %d messages\n", stats.HistoryLength)
	return nil
}

func runRebuild(api *APIClient, w io.Writer, outputJSON bool) error {
	resp, err := api.Post("/index/rebuild", nil)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	var result RebuildResponse
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(w, result)
	}

	fmt.Fprintf(w, "Indexed %d documents\n", result.DocumentsAdded)
	return nil
}
