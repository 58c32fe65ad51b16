package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/fieldsync/internal/remote"
	"github.com/noah-isme/fieldsync/internal/repository"
	"github.com/noah-isme/fieldsync/internal/schema"
	"github.com/noah-isme/fieldsync/internal/service"
	"github.com/noah-isme/fieldsync/pkg/cache"
	"github.com/noah-isme/fieldsync/pkg/config"
	"github.com/noah-isme/fieldsync/pkg/database"
	"github.com/noah-isme/fieldsync/pkg/jobs"
	"github.com/noah-isme/fieldsync/pkg/logger"
)

// app wires the agent's components from configuration.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *sqlx.DB
	remoteDB *sqlx.DB
	redis    *redis.Client

	outbox      *repository.MutationRepository
	surveys     *repository.SurveyRepository
	submissions *repository.SubmissionRepository
	lois        *repository.LocationOfInterestRepository

	schemas *schema.Provider
	store   remote.Store
	metrics *service.MetricsService

	mutationSvc *service.MutationService
	syncSvc     *service.SyncService
	surveySvc   *service.SurveyService

	queue *jobs.Queue
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := database.NewSQLite(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	a := &app{
		cfg:         cfg,
		logger:      logr,
		db:          db,
		outbox:      repository.NewMutationRepository(db),
		surveys:     repository.NewSurveyRepository(db),
		submissions: repository.NewSubmissionRepository(db),
		lois:        repository.NewLocationOfInterestRepository(db),
		metrics:     service.NewMetricsService(),
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The shared tier is an optimization; the agent runs without it.
		logr.Warn("redis unavailable, continuing without shared schema cache", zap.Error(err))
	}
	a.redis = redisClient

	providerOpts := []schema.ProviderOption{}
	if redisClient != nil {
		providerOpts = append(providerOpts, schema.WithSharedCache(repository.NewCacheRepository(redisClient, logr)))
	}
	a.schemas = schema.NewProvider(a.surveys, cfg.Schema.CacheTTL, logr, providerOpts...)

	switch cfg.Remote.Driver {
	case "postgres":
		remoteDB, err := database.NewPostgres(cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("open remote store: %w", err)
		}
		store := remote.NewPostgresStore(remoteDB)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.remoteDB = remoteDB
		a.store = store
	default:
		a.store = remote.NewMemoryStore()
	}

	a.syncSvc = service.NewSyncService(a.outbox, a.schemas, a.store, a.metrics, logr, cfg.Sync)
	a.surveySvc = service.NewSurveyService(a.surveys, a.schemas, logr)

	a.queue = jobs.NewQueue("sync", func(jobCtx context.Context, job jobs.Job) error {
		if job.SubmissionID == "" {
			return nil
		}
		return a.syncSvc.DrainSubmission(jobCtx, job.SubmissionID)
	}, jobs.QueueConfig{
		Workers:    cfg.Sync.QueueWorkers,
		BufferSize: cfg.Sync.QueueBuffer,
		Logger:     logr,
	})

	a.mutationSvc = service.NewMutationService(a.outbox, a.schemas, logr,
		service.WithSyncTrigger(service.SyncTriggerFunc(func(submissionID string) error {
			return a.queue.Enqueue(jobs.Job{Type: "submission-drain", SubmissionID: submissionID})
		})),
	)

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.remoteDB != nil {
		_ = a.remoteDB.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
	_ = a.logger.Sync()
}

func mustApp(ctx context.Context) *app {
	a, err := newApp(ctx)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	return a
}
