package admin

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/companion/internal/api/handlers"
	"github.com/cloo-solutions/companion/internal/api/middleware"
	"github.com/cloo-solutions/companion/internal/cache"
	"github.com/cloo-solutions/companion/internal/config"
	"github.com/cloo-solutions/companion/internal/jobs"
	"github.com/cloo-solutions/companion/internal/openai"
	"github.com/cloo-solutions/companion/internal/repository"
	"github.com/cloo-solutions/companion/internal/rules"
	"github.com/cloo-solutions/companion/internal/server"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/telemetry"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the companion API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	r, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	store, closeStore, err := openStore(ctx, cfg, !noMigrate)
	if err != nil {
		return err
	}
	defer closeStore()

	idx := newIndex(cfg, store)
	if err := idx.Load(ctx); err != nil {
		// The index starts empty; the worker below rebuilds it.
		log.Printf("index load failed: %v", err)
	}

	var llm service.LanguageModel
	if cfg.HasOpenAI() {
		llm = openai.NewChatClient(openAIConfig(cfg))
	}

	responses := cache.New(r, cache.Config{
		TTL:        cfg.CacheTTL,
		MaxEntries: cfg.CacheMaxEntries,
	})

	profileSvc := service.NewProfileService(repository.NewProfileFileRepository(cfg.ProfilePath), responses, nil)
	indexSvc := service.NewIndexService(profileSvc, idx)

	processor := jobs.NewIndexRebuildProcessor(indexSvc)
	profileSvc.SetRebuildRequester(processor)
	if idx.Len() == 0 && cfg.HasOpenAI() {
		processor.RequestRebuild()
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	rebuildWorker := jobs.NewNamedWorker("index-rebuild", processor, cfg.RebuildPollInterval)
	processor.OnRequest(rebuildWorker.Wake)
	go rebuildWorker.Start(workerCtx)
	log.Println("index rebuild worker started")

	assistant := service.NewAssistant(r, profileSvc, idx, responses, llm, service.AssistantConfig{
		TopK:             cfg.SearchTopK,
		HistorySize:      cfg.HistorySize,
		ModelTimeout:     cfg.ModelTimeout,
		EmbeddingTimeout: cfg.EmbeddingTimeout,
	})

	routerCfg := server.RouterConfig{
		AssistantHandler: handlers.NewAssistantHandler(assistant),
		ProfileHandler:   handlers.NewProfileHandler(profileSvc),
		IndexHandler:     handlers.NewIndexHandler(indexSvc, responses, assistant),
	}
	if cfg.APIKey != "" {
		routerCfg.AuthValidator = middleware.NewStaticKey(cfg.APIKey, "owner")
	} else {
		log.Println("COMPANION_API_KEY not set, API is unauthenticated")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.NewRouter(routerCfg),
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	rebuildWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}
