package client

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// SearchHit is one similarity search result.
type SearchHit struct {
	Snippet  string            `json:"snippet"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query   string      `json:"query"`
	Results []SearchHit `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the embedding index",
		Long:  "Runs a similarity search over the indexed profile fragments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSearch(api, cmd.OutOrStdout(), args[0], limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of results")

	return cmd
}

func runSearch(api *APIClient, w io.Writer, query string, limit int, outputJSON bool) error {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("k", strconv.Itoa(limit))
	}

	resp, err := api.Get("/search?" + params.Encode())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := decodeData(resp, &searchResp); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(w, searchResp)
	}

	if len(searchResp.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "Found %d results:\n\n", len(searchResp.Results))
	for i, hit := range searchResp.Results {
		fmt.Fprintf(w, "%d. [%s] (%.2f)\n", i+1, hit.Metadata["type"], hit.Score)
		fmt.Fprintf(w, "   %s\n", hit.Snippet)
	}
	return nil
}
