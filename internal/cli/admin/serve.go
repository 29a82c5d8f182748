package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	goopenai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/wildguard-ai/wildguard/internal/api/handlers"
	"github.com/wildguard-ai/wildguard/internal/config"
	"github.com/wildguard-ai/wildguard/internal/database"
	"github.com/wildguard-ai/wildguard/internal/jobs"
	"github.com/wildguard-ai/wildguard/internal/knowledge"
	"github.com/wildguard-ai/wildguard/internal/openai"
	"github.com/wildguard-ai/wildguard/internal/repository"
	"github.com/wildguard-ai/wildguard/internal/server"
	"github.com/wildguard-ai/wildguard/internal/service"
	"github.com/wildguard-ai/wildguard/internal/storage"
	"github.com/wildguard-ai/wildguard/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		Long:  "Start the WildGuard chat server on the specified port",
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

	// Initialize Sentry with tracing if a DSN is configured
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

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	store, pool, chunkRepo := loadKnowledgeBase(ctx, cfg, noMigrate)
	if pool != nil {
		defer pool.Close()
	}
	if store.Empty() {
		log.Println("knowledge base is empty; chat will run without retrieval context")
	} else {
		log.Printf("knowledge base loaded: %d chunks", store.Count())
	}

	// Embedding + generation share one OpenAI-compatible backend. A local
	// llama.cpp / Ollama server is selected via OPENAI_BASE_URL.
	var backend *openai.Client
	var engine service.Engine
	if cfg.HasOpenAI() {
		backend = openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			BaseURL:             cfg.OpenAIBaseURL,
			EmbeddingModel:      goopenai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.LLMModel,
		})
		engine = &openAIEngine{
			client:    backend,
			model:     cfg.LLMModel,
			maxTokens: cfg.MaxTokens,
		}
		log.Printf("inference backend ready (model: %s)", cfg.LLMModel)
	} else {
		log.Println("no inference backend configured; chat will report the model as unavailable")
	}

	var embedder *service.Embedder
	if backend != nil {
		embedder = service.NewEmbedder(backend)
	} else {
		embedder = service.NewEmbedder(nil)
	}

	if embedder.Available() && !store.Empty() {
		if err := embedder.Precompute(ctx, store); err != nil {
			log.Printf("embedding precompute incomplete (retrieval degrades to keyword search): %v", err)
		}
		if chunkRepo != nil {
			persistEmbeddings(ctx, chunkRepo, store)
		}
	}

	retriever := service.NewRetriever(store, embedder)

	sessions := service.NewSessionManager(engine, service.SamplingParams{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
	})
	defer sessions.Close()

	runner := jobs.NewRunner()
	go runner.Start(ctx)

	conversation := service.NewConversation(service.ConversationConfig{
		Retriever:      retriever,
		Sessions:       sessions,
		Runner:         runner,
		TopK:           cfg.RetrieveTopK,
		EmbedderReady:  embedder.Available(),
		KnowledgeEmpty: store.Empty(),
	})
	conversation.Start()

	router := server.NewRouter(server.RouterConfig{
		ChatHandler: handlers.NewChatHandler(conversation),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
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

	runner.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// loadKnowledgeBase resolves the chunk source in priority order: Postgres
// when DATABASE_URL is set, otherwise a local JSON file, optionally pulled
// from S3 first. Every failure path degrades to an empty store so the chat
// surface stays up.
func loadKnowledgeBase(ctx context.Context, cfg *config.Config, noMigrate bool) (*knowledge.Store, *pgxpool.Pool, *repository.ChunkRepository) {
	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("failed to connect to database (falling back to file): %v", err)
			return loadKnowledgeFile(ctx, cfg), nil, nil
		}
		log.Println("connected to database")

		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				log.Printf("failed to run migrations: %v", err)
				pool.Close()
				return loadKnowledgeFile(ctx, cfg), nil, nil
			}
		}

		repo := repository.NewChunkRepository(pool)
		chunks, err := repo.LoadAll(ctx)
		if err != nil {
			log.Printf("failed to load chunks from database: %v", err)
			return knowledge.NewStore(nil), pool, repo
		}

		// Seed an empty database from the local file when one is present.
		if len(chunks) == 0 {
			seeded := loadKnowledgeFile(ctx, cfg)
			if !seeded.Empty() {
				if err := repo.ReplaceAll(ctx, seeded.Chunks()); err != nil {
					log.Printf("failed to seed database from %s: %v", cfg.KnowledgeBasePath, err)
				} else {
					log.Printf("seeded database with %d chunks from %s", seeded.Count(), cfg.KnowledgeBasePath)
				}
			}
			return seeded, pool, repo
		}

		return knowledge.NewStore(chunks), pool, repo
	}

	return loadKnowledgeFile(ctx, cfg), nil, nil
}

// loadKnowledgeFile loads the JSON knowledge base from disk, pulling it from
// S3 first when artifact storage is configured.
func loadKnowledgeFile(ctx context.Context, cfg *config.Config) *knowledge.Store {
	if cfg.HasS3() && cfg.S3KBKey != "" {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			log.Printf("failed to create S3 client (using local file only): %v", err)
		} else if downloaded, err := s3Client.EnsureLocal(ctx, cfg.S3KBKey, cfg.KnowledgeBasePath); err != nil {
			log.Printf("failed to fetch knowledge base from S3 (using local file only): %v", err)
		} else if downloaded {
			log.Printf("fetched knowledge base artifact s3://%s/%s", cfg.S3Bucket, cfg.S3KBKey)
		}
	}

	store, err := knowledge.LoadFile(cfg.KnowledgeBasePath)
	if err != nil {
		log.Printf("knowledge base unavailable: %v", err)
	}
	return store
}

// persistEmbeddings writes freshly computed embeddings back to the database
// so later startups skip the precompute pass.
func persistEmbeddings(ctx context.Context, repo *repository.ChunkRepository, store *knowledge.Store) {
	saved := 0
	for i, c := range store.Chunks() {
		if c.Embedding == nil {
			continue
		}
		if err := repo.UpdateEmbedding(ctx, i, c.Embedding); err != nil {
			log.Printf("failed to persist embedding for chunk %d: %v", i, err)
			return
		}
		saved++
	}
	if saved > 0 {
		log.Printf("persisted %d chunk embeddings", saved)
	}
}

// openAIEngine adapts the OpenAI-compatible client to the session-based
// engine boundary. HTTP backends are stateless, so a session is just the
// frozen sampling parameters for its turn.
type openAIEngine struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func (e *openAIEngine) NewSession(params service.SamplingParams) (service.Session, error) {
	return &openAISession{engine: e, params: params}, nil
}

type openAISession struct {
	engine *openAIEngine
	params service.SamplingParams
	closed bool
}

func (s *openAISession) Generate(ctx context.Context, prompt string) (string, error) {
	if s.closed {
		return "", fmt.Errorf("session is closed")
	}

	ctx, span := telemetry.StartSpan(ctx, "openAISession.Generate", telemetry.SpanAttributes{
		Operation: "inference",
		Model:     s.engine.model,
	})
	defer span.End()

	out, err := s.engine.client.Generate(ctx, openai.CompletionRequest{
		Prompt:      prompt,
		MaxTokens:   s.engine.maxTokens,
		Temperature: s.params.Temperature,
		TopP:        s.params.TopP,
		TopK:        s.params.TopK,
	})
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return out, nil
}

func (s *openAISession) Close() error {
	s.closed = true
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
