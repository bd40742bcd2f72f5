package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloo-solutions/companion/internal/config"
	"github.com/cloo-solutions/companion/internal/repository"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/vectorindex"
	"github.com/spf13/cobra"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the embedding index",
		Long:  "Rebuild or inspect the embedding index in the configured store",
	}

	cmd.AddCommand(IndexRebuildCmd())
	cmd.AddCommand(IndexStatsCmd())

	return cmd
}

func IndexRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from the profile file",
		Long:  "Embed every profile fragment and replace the stored index. Requires OpenAI credentials.",
		RunE:  runIndexRebuild,
	}

	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations")

	return cmd
}

func IndexStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show stored index statistics",
		RunE:  runIndexStats,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.HasOpenAI() {
		return fmt.Errorf("index rebuild requires COMPANION_OPENAI_API_KEY or COMPANION_OPENAI_BASE_URL")
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	store, closeStore, err := openStore(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer closeStore()

	profiles := service.NewProfileService(repository.NewProfileFileRepository(cfg.ProfilePath), nil, nil)
	n, err := rebuildIndex(ctx, profiles, newIndex(cfg, store))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents from %s\n", n, cfg.ProfilePath)
	return nil
}

// rebuildIndex embeds the current profile into idx, which persists the new
// snapshot to its store.
func rebuildIndex(ctx context.Context, profiles service.ProfileSource, idx *vectorindex.Index) (int, error) {
	n, err := service.NewIndexService(profiles, idx).Rebuild(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to rebuild index: %w", err)
	}
	return n, nil
}

func runIndexStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeStore()

	idx := vectorindex.New(nil, store, vectorindex.Config{Model: cfg.EmbeddingModel})
	if err := idx.Load(ctx); err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	return printIndexStats(cmd.OutOrStdout(), cfg.IndexBackend, idx.Stats(), outputFormat)
}

func printIndexStats(w io.Writer, backend string, stats vectorindex.Stats, outputFormat string) error {
	if outputFormat == "json" {
		output, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(w, string(output))
		return nil
	}

	fmt.Fprintf(w, "Backend:    %s\n", backend)
	fmt.Fprintf(w, "Documents:  %d\n", stats.TotalDocuments)
	fmt.Fprintf(w, "Dimension:  %d\n", stats.Dimension)
	fmt.Fprintf(w, "Model:      %s\n", stats.Model)
	if stats.Generation != "" {
		fmt.Fprintf(w, "Generation: %s\n", stats.Generation)
		fmt.Fprintf(w, "Updated:    %s\n", stats.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
