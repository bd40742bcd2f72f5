package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/companion/internal/config"
	"github.com/cloo-solutions/companion/internal/database"
	"github.com/cloo-solutions/companion/internal/openai"
	"github.com/cloo-solutions/companion/internal/repository"
	"github.com/cloo-solutions/companion/internal/service"
	"github.com/cloo-solutions/companion/internal/storage"
	"github.com/cloo-solutions/companion/internal/vectorindex"
)

// openStore builds the index store for cfg.IndexBackend. The returned close
// function releases any connection the store holds.
func openStore(ctx context.Context, cfg *config.Config, migrate bool) (vectorindex.Store, func(), error) {
	noop := func() {}

	switch cfg.IndexBackend {
	case config.IndexBackendMemory:
		return vectorindex.NewMemoryStore(), noop, nil

	case config.IndexBackendFile:
		return vectorindex.NewFileStore(cfg.IndexDir), noop, nil

	case config.IndexBackendS3:
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		return vectorindex.NewS3Store(s3Client, cfg.IndexS3Key), noop, nil

	case config.IndexBackendPostgres:
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Println("connected to database")

		if migrate {
			if err := database.RunMigrations(cfg.DatabaseURL, database.DefaultMigrationsURL); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store := service.NewDatabaseIndexStore(
			repository.NewTxRunner(pool),
			repository.NewEmbeddingRecordRepository(pool),
		)
		return store, pool.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
}

func openAIConfig(cfg *config.Config) openai.Config {
	return openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	}
}

// newIndex creates the vector index over store. Without OpenAI credentials
// the index has no embedder: loaded snapshots are served by Search but text
// queries and rebuilds fail with ErrEmbeddingUnavailable.
func newIndex(cfg *config.Config, store vectorindex.Store) *vectorindex.Index {
	var embedder vectorindex.Embedder
	if cfg.HasOpenAI() {
		embedder = openai.NewEmbeddingClient(openAIConfig(cfg))
	} else {
		log.Println("no OpenAI credentials configured, vector search disabled")
	}
	return vectorindex.New(embedder, store, vectorindex.Config{
		Model:    cfg.EmbeddingModel,
		MinScore: cfg.SearchMinScore,
	})
}
