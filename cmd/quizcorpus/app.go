package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/ai"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/auth"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/filestore"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/postgres"
	memoryqueue "github.com/custodia-labs/quizcorpus/internal/adapters/driven/queue/memory"
	postgresqueue "github.com/custodia-labs/quizcorpus/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/quizcorpus/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/quizcorpus/internal/adapters/driven/redis"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driven/vectorindex"
	"github.com/custodia-labs/quizcorpus/internal/adapters/driving/http"
	"github.com/custodia-labs/quizcorpus/internal/config"
	"github.com/custodia-labs/quizcorpus/internal/core/domain"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driven"
	"github.com/custodia-labs/quizcorpus/internal/core/ports/driving"
	"github.com/custodia-labs/quizcorpus/internal/core/services"
	"github.com/custodia-labs/quizcorpus/internal/corpus"
	"github.com/custodia-labs/quizcorpus/internal/runtime"
	"github.com/custodia-labs/quizcorpus/internal/seed"
	"github.com/custodia-labs/quizcorpus/internal/textnorm"
)

const devJWTSecret = "development-secret-change-in-production"

// app holds every wired component of a quizcorpus process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	corpus      *corpus.Handle
	services    *runtime.Services
	taskQueue   driven.TaskQueue
	regenerator *services.Regenerator

	auth        driving.AuthService
	retrieval   driving.RetrievalService
	feedback    driving.FeedbackService
	corrections driving.CorrectionService
	moderation  driving.ModerationService

	readiness map[string]http.Pinger
	closers   []func() error
}

// newApp connects the configured backends and builds the services. The
// corpus is loaded from disk; callers decide whether to seed it.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		cfg:       cfg,
		logger:    logger,
		readiness: make(map[string]http.Pinger),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// ===== Connections =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.closers = append(a.closers, redisClient.Close)
		a.readiness["redis"] = redisPinger{redisClient}
		logger.Info("redis connected")
	}

	var db *postgres.DB
	if cfg.Postgres.URL != "" {
		pgCfg := postgres.DefaultConfig(cfg.Postgres.URL)
		pgCfg.MaxOpenConns = cfg.Postgres.MaxOpenConns
		pgCfg.MaxIdleConns = cfg.Postgres.MaxIdleConns
		pgCfg.ConnMaxLifetime = cfg.Postgres.ConnMaxLifetime
		pgCfg.ConnMaxIdleTime = cfg.Postgres.ConnMaxIdleTime
		db, err = postgres.Connect(ctx, pgCfg)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		a.readiness["postgres"] = db
		logger.Info("postgres connected and schema initialized")
	}

	// ===== Corpus =====
	store, err := filestore.New(cfg.CorpusDir(), logger)
	if err != nil {
		return nil, err
	}

	var lock driven.DistributedLock
	switch cfg.LockBackend() {
	case config.BackendRedis:
		lock = redisadapter.NewLock(redisClient)
	case config.BackendPostgres:
		lock = postgres.NewAdvisoryLock(db)
	}
	logger.Info("corpus writer lock", "backend", cfg.LockBackend())

	indexCfg := cfg.IndexConfig()
	a.corpus, err = corpus.NewHandle(corpus.Config{
		Store:    store,
		NewIndex: func() (driven.VectorIndex, error) { return vectorindex.New(indexCfg) },
		Lock:     lock,
		LockTTL:  cfg.Corpus.LockTTL,
		LockWait: cfg.Corpus.LockWait,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	if err := a.corpus.Load(ctx); err != nil {
		return nil, err
	}

	// ===== AI collaborators =====
	a.services = runtime.NewServices(cfg.Corpus.Dimensions)
	a.closers = append(a.closers, a.services.Close)
	if err := a.configureAI(ctx); err != nil {
		return nil, err
	}

	// ===== Moderation store =====
	var moderationStore driven.ModerationStore
	switch cfg.Moderation.Backend {
	case config.BackendRedis:
		moderationStore = redisadapter.NewModerationStore(redisClient)
	case config.BackendPostgres:
		moderationStore = postgres.NewModerationStore(db)
	default:
		sqliteStore, err := sqlite.NewStore(cfg.Corpus.DataDir)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, sqliteStore.Close)
		moderationStore = sqliteStore.ModerationStore()
		logger.Info("sqlite moderation store", "path", sqliteStore.Path())
	}
	a.readiness["moderation"] = moderationStore

	// ===== Task queue =====
	switch cfg.Queue.Backend {
	case config.BackendRedis:
		q, err := redisqueue.NewQueue(ctx, redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		a.taskQueue = q
	case config.BackendPostgres:
		a.taskQueue = postgresqueue.NewQueue(db.DB)
	default:
		a.taskQueue = memoryqueue.NewQueue()
	}
	a.closers = append(a.closers, a.taskQueue.Close)
	a.readiness["queue"] = a.taskQueue
	logger.Info("task queue", "backend", cfg.Queue.Backend)

	// ===== Services =====
	retryCfg := cfg.RetryPolicy()

	a.corrections = services.NewCorrectionService(services.CorrectionConfig{
		Corpus:     a.corpus,
		Services:   a.services,
		Normalizer: textnorm.DefaultPipeline(),
		Retry:      retryCfg,
		Logger:     logger,
	})
	a.retrieval = services.NewRetrievalService(services.RetrievalConfig{
		Corpus:   a.corpus,
		Services: a.services,
		Options:  cfg.RetrievalOptions(),
		Retry:    retryCfg,
		Logger:   logger,
	})
	a.moderation = services.NewModerationService(services.ModerationConfig{
		Store:       moderationStore,
		Corpus:      a.corpus,
		Corrections: a.corrections,
		Logger:      logger,
	})
	a.regenerator = services.NewRegenerator(a.services, a.corrections, retryCfg, logger)
	a.feedback = services.NewFeedbackService(services.FeedbackConfig{
		Services:    a.services,
		Regenerator: a.regenerator,
		Moderation:  a.moderation,
		Queue:       a.taskQueue,
		Policy:      cfg.DomainPolicy(),
		Levels:      domain.DefaultLevels(),
		Retry:       retryCfg,
		Logger:      logger,
	})

	accounts, err := auth.NewStaticAccounts(cfg.Auth.Accounts)
	if err != nil {
		return nil, err
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set, using the development secret")
		secret = devJWTSecret
	}
	a.auth = services.NewAuthService(accounts, auth.NewAdapter(secret), cfg.Auth.TokenTTL)

	return a, nil
}

// configureAI installs the embedder, assessor and rewriter. The embedder is
// required; the LLM collaborators fall back to unavailable when their
// provider cannot be reached so feedback is routed to review.
func (a *app) configureAI(ctx context.Context) error {
	factory := ai.NewFactory()

	embedder, err := factory.CreateEmbeddingService(a.cfg.EmbeddingSettings())
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if err := a.services.ValidateAndSetEmbedding(ctx, embedder); err != nil {
		return fmt.Errorf("validate embedding service: %w", err)
	}

	llm := a.cfg.LLMSettings()
	if assessor, err := factory.CreateBiasAssessor(llm); err != nil {
		a.logger.Warn("bias assessor not configured", "error", err)
	} else if err := a.services.ValidateAndSetBiasAssessor(ctx, assessor); err != nil {
		a.logger.Warn("bias assessor unavailable", "provider", llm.Provider, "error", err)
	}
	if rewriter, err := factory.CreateContentRewriter(llm); err != nil {
		a.logger.Warn("content rewriter not configured", "error", err)
	} else if err := a.services.ValidateAndSetContentRewriter(ctx, rewriter); err != nil {
		a.logger.Warn("content rewriter unavailable", "provider", llm.Provider, "error", err)
	}

	caps := a.services.Capabilities()
	a.logger.Info("ai collaborators",
		"embedding_model", caps.EmbeddingModel,
		"assessor", caps.BiasAssessor,
		"rewriter", caps.Rewriter,
		"dimensions", caps.Dimensions,
	)
	return nil
}

// seedCorpus inserts the starter lessons into empty slots.
func (a *app) seedCorpus(ctx context.Context) (*domain.SeedResult, error) {
	docs, err := seed.Load(a.cfg.Corpus.SeedFile)
	if err != nil {
		return nil, err
	}
	result, err := a.corrections.Seed(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("seed corpus: %w", err)
	}
	a.logger.Info("corpus seeded", "inserted", result.Inserted, "skipped", result.Skipped)
	return result, nil
}

func (a *app) httpServices() http.Services {
	return http.Services{
		Auth:        a.auth,
		Retrieval:   a.retrieval,
		Feedback:    a.feedback,
		Corrections: a.corrections,
		Moderation:  a.moderation,
	}
}

// Close releases connections in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
