package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/fabfab/psy-assistant/api"
	"github.com/fabfab/psy-assistant/chat"
	"github.com/fabfab/psy-assistant/config"
	"github.com/fabfab/psy-assistant/database"
	"github.com/fabfab/psy-assistant/embeddings"
	"github.com/fabfab/psy-assistant/ingestion"
	"github.com/fabfab/psy-assistant/knowledge"
	"github.com/fabfab/psy-assistant/llm"
)

// backendResources holds the store connections shared by the backend
// commands. Neo4j and Redis are nil when not configured.
type backendResources struct {
	pool   *pgxpool.Pool
	driver neo4j.DriverWithContext
	redis  *redis.Client
}

func openBackend(ctx context.Context, cfg config.Config) (*backendResources, error) {
	res := &backendResources{}

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres connection: %w", err)
	}
	res.pool = pool

	if cfg.Neo4j.Enabled() {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
		if err != nil {
			res.Close(ctx)
			return nil, fmt.Errorf("neo4j connection: %w", err)
		}
		res.driver = driver
	}

	if cfg.Redis.Enabled() {
		client, err := database.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			res.Close(ctx)
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		res.redis = client
	}

	return res, nil
}

func (r *backendResources) Close(ctx context.Context) {
	if r.redis != nil {
		_ = r.redis.Close()
	}
	if r.driver != nil {
		_ = r.driver.Close(ctx)
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *backendResources) history(cfg config.Config) chat.History {
	if r.redis != nil {
		return chat.NewRedisHistory(r.redis, cfg.Redis.HistoryKey, cfg.Backend.HistoryLimit)
	}
	return chat.NewMemoryHistory(cfg.Backend.HistoryLimit)
}

func (r *backendResources) ingestionService(cfg config.Config, embedder embeddings.Embedder) *ingestion.Service {
	return ingestion.NewService(r.pool, r.driver, embedder, slog.Default(),
		cfg.Embeddings.Dimension, cfg.Backend.ChunkSize, cfg.Backend.ChunkOverlap)
}

func newBackendCmd(cfg *config.Config) *cobra.Command {
	var (
		addr       string
		watch      bool
		skipIngest bool
	)
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the reference inference backend (POST /chatPsy)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Backend.Address
			}

			ctx, cancel := signalContext()
			defer cancel()

			res, err := openBackend(ctx, *cfg)
			if err != nil {
				return err
			}
			defer res.Close(context.Background())

			embedder, err := embeddings.NewEmbedder(*cfg)
			if err != nil {
				return fmt.Errorf("embedder setup: %w", err)
			}
			llmClient, err := llm.NewClient(*cfg)
			if err != nil {
				return fmt.Errorf("llm setup: %w", err)
			}

			ingester := res.ingestionService(*cfg, embedder)
			if !skipIngest {
				if _, err := ingester.IngestCatalog(ctx, cfg.Backend.DocumentsDir, cfg.Backend.Documents); err != nil {
					return fmt.Errorf("ingest catalog: %w", err)
				}
			} else if err := database.EnsureSchema(ctx, res.pool, cfg.Embeddings.Dimension); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}

			if watch {
				if err := watchCatalog(ctx, *cfg, ingester); err != nil {
					return err
				}
			}

			svc := chat.NewService(chat.NewPostgresVectorStore(res.pool), embedder, llmClient,
				res.history(*cfg), slog.Default(), cfg.Backend.TopK)
			return api.New(svc, slog.Default()).Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default backend.address)")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-ingest the catalog when a catalogued PDF changes")
	cmd.Flags().BoolVar(&skipIngest, "skip-ingest", false, "serve without ingesting the catalog at startup")
	return cmd
}

// watchCatalog re-ingests in the background until ctx is cancelled.
func watchCatalog(ctx context.Context, cfg config.Config, ingester *ingestion.Service) error {
	watcher, err := ingestion.NewWatcher(cfg.Backend.DocumentsDir, cfg.Backend.Documents, slog.Default())
	if err != nil {
		return err
	}
	events, err := watcher.Watch(ctx)
	if err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for path := range events {
			// Changes queued behind this one are covered by the same pass.
			for drained := false; !drained; {
				select {
				case _, ok := <-events:
					drained = !ok
				default:
					drained = true
				}
			}
			slog.Info("catalogued document changed, re-ingesting", "path", path)
			if _, err := ingester.IngestCatalog(ctx, cfg.Backend.DocumentsDir, cfg.Backend.Documents); err != nil {
				slog.Error("re-ingest failed", "error", err)
			}
		}
	}()
	return nil
}

func newIngestCmd(cfg *config.Config) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load the PDF catalog into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = cfg.Backend.DocumentsDir
			}

			ctx, cancel := signalContext()
			defer cancel()

			res, err := openBackend(ctx, *cfg)
			if err != nil {
				return err
			}
			defer res.Close(context.Background())

			embedder, err := embeddings.NewEmbedder(*cfg)
			if err != nil {
				return fmt.Errorf("embedder setup: %w", err)
			}

			slog.Info("ingesting catalog",
				"dir", dir,
				"documents", len(cfg.Backend.Documents),
				"embeddings", strings.ToUpper(cfg.Embeddings.Provider)+"/"+cfg.Embeddings.Model,
			)
			report, err := res.ingestionService(*cfg, embedder).IngestCatalog(ctx, dir, cfg.Backend.Documents)
			if err != nil {
				return fmt.Errorf("ingestion failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d, unchanged %d, skipped %d\n", report.Ingested, report.Unchanged, report.Skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding the catalogued PDFs (default backend.documents_dir)")
	return cmd
}

func newClearCmd(cfg *config.Config) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove ingested documents, the page graph and the conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear data without --confirm")
			}

			ctx, cancel := signalContext()
			defer cancel()

			res, err := openBackend(ctx, *cfg)
			if err != nil {
				return err
			}
			defer res.Close(context.Background())

			if err := database.Truncate(ctx, res.pool); err != nil {
				return err
			}
			slog.Info("cleared postgres psy_documents and psy_chunks")

			if res.driver != nil {
				if err := knowledge.Purge(ctx, res.driver); err != nil {
					return fmt.Errorf("clear neo4j: %w", err)
				}
				slog.Info("cleared neo4j page graph")
			}

			if res.redis != nil {
				if err := res.history(*cfg).Clear(ctx); err != nil {
					return fmt.Errorf("clear history: %w", err)
				}
				slog.Info("cleared conversation history", "key", cfg.Redis.HistoryKey)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm that all ingested data should be removed")
	return cmd
}
