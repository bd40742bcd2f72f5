package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/companion/internal/cli"
	"github.com/cloo-solutions/companion/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "companion",
		Short: "Companion CLI - ask questions about your profile",
		Long: `Companion CLI talks to a companiond server.

Environment variables:
  COMPANION_API_URL   API base URL (default: http://localhost:8080)
  COMPANION_API_KEY   API key, when the server requires one`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.StatsCmd())
	rootCmd.AddCommand(client.RebuildCmd())
	rootCmd.AddCommand(client.HistoryCmd())
	rootCmd.AddCommand(client.CacheCmd())
	rootCmd.AddCommand(client.ProfileCmd())
	rootCmd.AddCommand(client.AuthCmd())

	if handled, err := cli.CheckHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
