package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResult mirrors the server's answer payload.
type AskResult struct {
	ID            string   `json:"id"`
	Success       bool     `json:"success"`
	Response      string   `json:"response"`
	Error         string   `json:"error,omitempty"`
	ErrorCode     string   `json:"error_code,omitempty"`
	Cached        bool     `json:"cached"`
	QueryType     string   `json:"query_type"`
	Level         string   `json:"level"`
	Plan          []string `json:"plan"`
	ContextUsed   int      `json:"context_used"`
	SearchHits    int      `json:"search_hits"`
	ExecutionTime string   `json:"execution_time"`
	Validation    struct {
		Quality       string   `json:"quality"`
		Score         float64  `json:"score"`
		Warnings      []string `json:"warnings"`
		MissingFields []string `json:"missing_fields"`
	} `json:"validation"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the profile",
		Long:  "Sends a question to the companion server and prints the answer.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runAsk(api, cmd.OutOrStdout(), strings.Join(args, " "), verbose, outputJSON)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show query type, context level and validation details")

	return cmd
}

func runAsk(api *APIClient, w io.Writer, question string, verbose, outputJSON bool) error {
	resp, err := api.Post("/ask", AskRequest{Question: question})
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var result AskResult
	if err := decodeData(resp, &result); err != nil {
		return err
	}

	if outputJSON {
		return printJSON(w, result)
	}

	if !result.Success {
		return fmt.Errorf("no answer (%s): %s", result.ErrorCode, result.Error)
	}

	fmt.Fprintln(w, result.Response)
	if verbose {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Type: %s  Level: %s  Cached: %t\n", result.QueryType, result.Level, result.Cached)
		fmt.Fprintf(w, "Context: %d chars  Search hits: %d  Time: %s\n", result.ContextUsed, result.SearchHits, result.ExecutionTime)
		fmt.Fprintf(w, "Quality: %s (%.2f)\n", result.Validation.Quality, result.Validation.Score)
		for _, warning := range result.Validation.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", warning)
		}
	}
	return nil
}
