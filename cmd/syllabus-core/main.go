package main

// @title           Syllabus Core API
// @version         1.0
// @description     ISTQB syllabus question answering with retrieval, general-knowledge fallback and curated learning.

// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/ai"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/auth"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/language"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/pdf"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/redis"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driven/storage"
	"github.com/istqb-chatbot/syllabus-core/internal/adapters/driving/http"
	"github.com/istqb-chatbot/syllabus-core/internal/config"
	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
	"github.com/istqb-chatbot/syllabus-core/internal/core/services"
	"github.com/istqb-chatbot/syllabus-core/internal/logger"
	"github.com/istqb-chatbot/syllabus-core/internal/postprocessors"
	"github.com/istqb-chatbot/syllabus-core/internal/runtime"
	"github.com/istqb-chatbot/syllabus-core/internal/worker"
)

var version = "dev"

// app holds everything wired at startup
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *postgres.DB
	ai        *runtime.Services
	queue     driven.TaskQueue
	answers   driving.AnswerService
	chat      driving.ChatService
	review    driving.ReviewService
	auth      driving.AuthService
	ingestion driving.IngestionService
}

func main() {
	// Run mode comes from RUN_MODE or the first argument
	if len(os.Args) > 1 {
		_ = os.Setenv("RUN_MODE", os.Args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("syllabus-core starting",
		zap.String("version", version),
		zap.String("mode", cfg.RunMode),
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received, stopping")
		cancel()
	}()

	if cfg.RunMode == config.ModeCheck {
		if err := runCheck(ctx, cfg, log); err != nil {
			os.Exit(1)
		}
		return
	}

	a, cleanup, err := wire(ctx, cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer cleanup()

	switch cfg.RunMode {
	case config.ModeAPI:
		err = runAPI(ctx, a)

	case config.ModeWorker:
		err = runWorker(ctx, a)

	case config.ModeAll:
		go func() {
			if err := runWorker(ctx, a); err != nil {
				log.Error("worker failed", zap.Error(err))
			}
		}()
		err = runAPI(ctx, a)

	case config.ModeIngest:
		err = runIngest(ctx, a)

	case config.ModeAsk:
		err = runAsk(ctx, a, strings.Join(os.Args[2:], " "))
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting with error", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}

// wire connects infrastructure and builds the core services
func wire(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		closers = nil
	}

	// ===== PostgreSQL =====
	log.Info("connecting to PostgreSQL")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, func() { _ = db.Close() })

	if err := db.InitSchema(ctx); err != nil {
		return nil, cleanup, err
	}
	log.Info("PostgreSQL connected and schema initialized")

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, cleanup, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		log.Info("Redis connected")
	}

	// ===== Coordination: lock, queue and chat history =====
	var (
		lock    driven.DistributedLock
		queue   driven.TaskQueue
		history driven.ConversationStore
	)
	backend := "postgres"
	if redisClient != nil {
		backend = "redis"
		lock = redisadapter.NewLock(redisClient)
		history = redisadapter.NewConversationStore(redisClient, cfg.Redis.ChatHistoryTTL)
		q, err := redisqueue.NewQueue(redisClient, fmt.Sprintf("worker-%d", os.Getpid()), log.Named("queue"))
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to create task queue: %w", err)
		}
		queue = q
	} else {
		lock = postgres.NewAdvisoryLock(db)
		history = postgres.NewConversationStore(db, cfg.Redis.ChatHistoryTTL)
		queue = postgresqueue.NewQueue(db.DB)
	}
	log.Info("coordination backend selected", zap.String("backend", backend))

	// ===== AI services =====
	aiServices := runtime.NewServices(domain.NewRuntimeConfig(backend))
	closers = append(closers, func() { _ = aiServices.Close() })
	factory := ai.NewFactory()
	settings := cfg.AI.Settings()

	embedder, err := factory.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create embedding service: %w", err)
	}
	aiServices.SetEmbeddingService(embedder)

	llm, err := factory.CreateLLMService(&settings.LLM)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to create LLM service: %w", err)
	}
	aiServices.SetLLMService(llm)

	log.Info("AI services configured",
		zap.String("embedding_model", aiServices.Embedding().Model()),
		zap.String("llm_model", aiServices.LLM().Model()),
		zap.Bool("can_answer", aiServices.Config().CanAnswer()),
	)

	// ===== Knowledge base =====
	distance, err := postgres.ParseDistance(cfg.Database.VectorDistance)
	if err != nil {
		return nil, cleanup, err
	}
	index := postgres.NewVectorIndex(db, aiServices.Embedding(), distance, log.Named("index"))
	store := postgres.NewKnowledgeStore(db)

	// ===== Core services =====
	opts, err := services.EngineOptionsFromConfig(cfg.Engine)
	if err != nil {
		return nil, cleanup, err
	}
	answers := services.NewEngine(
		index,
		services.NewGroundedGenerator(aiServices.LLM()),
		services.NewGeneralGenerator(aiServices.LLM()),
		log.Named("engine"),
		opts...,
	)

	chat := services.NewChatService(
		answers,
		language.NewDetector(),
		services.NewLLMTranslator(aiServices.LLM()),
		history,
		log.Named("chat"),
	)

	authAdapter := auth.NewAdapter(cfg.Admin.JWTSecret)
	var passwordHash string
	if cfg.Admin.Password != "" {
		passwordHash, err = authAdapter.HashPassword(cfg.Admin.Password)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else {
		log.Warn("ADMIN_PASSWORD not set, admin login is disabled")
	}

	ingestCfg := services.IngestionConfig{
		Lock:      lock,
		Pipeline:  postprocessors.NewSyllabusPipeline(chunkConfig(cfg), cfg.Ingestion.Deduplicate),
		Embedder:  aiServices.Embedding(),
		Store:     store,
		Queue:     queue,
		Logger:    log.Named("ingestion"),
		BatchSize: cfg.Ingestion.BatchSize,
	}
	source, err := newSyllabusSource(ctx, cfg)
	switch {
	case err == nil:
		ingestCfg.Source = source
		ingestCfg.Extractor = pdf.NewExtractor()
	case cfg.RunMode == config.ModeAPI:
		// The API only schedules ingestion; the worker reads the documents
		log.Warn("syllabus source unavailable", zap.Error(err))
	default:
		return nil, cleanup, fmt.Errorf("failed to open syllabus source: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    log,
		db:        db,
		ai:        aiServices,
		queue:     queue,
		answers:   answers,
		chat:      chat,
		review:    services.NewReviewService(store, log.Named("review")),
		auth:      services.NewAuthService(authAdapter, passwordHash),
		ingestion: services.NewIngestionService(ingestCfg),
	}, cleanup, nil
}

func chunkConfig(cfg *config.Config) postprocessors.ChunkConfig {
	cc := postprocessors.DefaultChunkConfig()
	cc.MaxChunkSize = cfg.Ingestion.ChunkSize
	cc.Overlap = cfg.Ingestion.ChunkOverlap
	return cc
}

// newSyllabusSource opens the configured document store
func newSyllabusSource(ctx context.Context, cfg *config.Config) (driven.SyllabusSource, error) {
	backend, err := storage.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return nil, err
	}
	if backend == storage.BackendS3 {
		return storage.NewS3Source(ctx, storage.S3Config{
			Bucket:    cfg.Storage.Bucket,
			Prefix:    cfg.Storage.Prefix,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
	}
	return storage.NewLocalSource(cfg.Ingestion.Dir)
}

func runAPI(ctx context.Context, a *app) error {
	server := http.NewServer(
		http.Config{
			Host:           a.cfg.Server.Host,
			Port:           a.cfg.Server.Port,
			Version:        version,
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
		},
		http.Services{
			Answer:    a.answers,
			Chat:      a.chat,
			Review:    a.review,
			Auth:      a.auth,
			Ingestion: a.ingestion,
		},
		a.db,
		a.ai,
		a.logger.Named("http"),
	)
	return server.Start(ctx)
}

// runWorker processes queued ingestion tasks until ctx is cancelled
func runWorker(ctx context.Context, a *app) error {
	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      a.queue,
		Ingestion:      a.ingestion,
		Logger:         a.logger.Named("worker"),
		Concurrency:    a.cfg.Worker.Concurrency,
		DequeueTimeout: a.cfg.Worker.DequeueTimeout,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	<-ctx.Done()
	w.Stop()
	return nil
}

// runIngest rebuilds the syllabus index in the foreground
func runIngest(ctx context.Context, a *app) error {
	result, err := a.ingestion.Ingest(ctx)
	if err != nil {
		return err
	}
	color.Green("Ingested %d documents (%d pages) into %d chunks, replaced %d, re-embedded %d learned, in %s",
		result.Documents, result.Pages, result.Chunks, result.Removed, result.Refreshed, result.Duration.Round(time.Millisecond))
	return nil
}

// runAsk answers one question the way the chat does and prints the sources
func runAsk(ctx context.Context, a *app, question string) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("usage: syllabus-core ask \"<question>\": %w", domain.ErrEmptyQuestion)
	}

	resp, err := a.chat.Ask(ctx, driving.ChatRequest{
		SessionID: "cli",
		Message:   question,
		Mode:      domain.ChatModeStaged,
	})
	if err != nil {
		return err
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Answer:")
	fmt.Println(resp.Answer)
	fmt.Println()

	printSources(resp.Groups)
	color.New(color.Faint).Printf("(path: %s, language: %s)\n", resp.Path, resp.Language)
	return nil
}

func printSources(groups []domain.SourceGroup) {
	if len(groups) == 0 {
		return
	}
	_, _ = color.New(color.Bold).Println("Sources:")

	name := color.New(color.FgCyan)
	pages := color.New(color.FgYellow)
	learned := color.New(color.FgMagenta)
	for _, g := range groups {
		_, _ = name.Printf("  - %s", g.Name)
		if len(g.Pages) > 0 {
			parts := make([]string, len(g.Pages))
			for i, p := range g.Pages {
				parts[i] = fmt.Sprint(p)
			}
			_, _ = pages.Printf(" (pages %s)", strings.Join(parts, ", "))
		}
		if g.Learned {
			_, _ = learned.Print(" [learned, pending review]")
		}
		fmt.Println()
	}
}

// runCheck verifies the configured LLM and embedding providers respond
func runCheck(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	factory := ai.NewFactory()
	ok := color.New(color.FgGreen).PrintfFunc()
	fail := color.New(color.FgRed).PrintfFunc()

	var failed bool

	llm, err := factory.CreateLLMService(cfg.AI.LLMSettings())
	if err == nil && llm == nil {
		err = domain.ErrServiceUnavailable
	}
	if err == nil {
		defer llm.Close()
		var reply string
		reply, err = llm.Complete(ctx, "", "Hello world")
		if err == nil {
			ok("LLM %s responded: %s\n", llm.Model(), strings.TrimSpace(reply))
		}
	}
	if err != nil {
		failed = true
		fail("LLM check failed: %v\n", err)
		log.Debug("llm check failed", zap.Error(err))
	}

	embedder, err := factory.CreateEmbeddingService(cfg.AI.EmbeddingSettings())
	if err == nil && embedder == nil {
		err = domain.ErrServiceUnavailable
	}
	if err == nil {
		defer embedder.Close()
		var vec []float32
		vec, err = embedder.EmbedQuery(ctx, "Hello world")
		if err == nil {
			ok("Embedding %s returned %d dimensions\n", embedder.Model(), len(vec))
		}
	}
	if err != nil {
		failed = true
		fail("Embedding check failed: %v\n", err)
		log.Debug("embedding check failed", zap.Error(err))
	}

	if failed {
		return errors.New("provider check failed")
	}
	return nil
}
