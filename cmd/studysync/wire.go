package main

import (
	"context"
	"database/sql"
	"fmt"

	"study_sync/internal/app/service"
	"study_sync/internal/app/worker"
	"study_sync/internal/common/security"
	"study_sync/internal/domain/repository"
	"study_sync/internal/platform/config"
	"study_sync/internal/platform/database"
	"study_sync/internal/platform/kv"
	"study_sync/internal/platform/leetcode"
	"study_sync/internal/platform/retry"
	"study_sync/internal/platform/studyapi"

	"github.com/redis/go-redis/v9"
)

// stores holds the process-wide connections. rdb is nil when runs are unguarded.
type stores struct {
	db  *sql.DB
	rdb *redis.Client
}

func openStores(ctx context.Context, withRedis bool) (*stores, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info().Str("event", "startup").Str("item", "postgres").Msg("database connected")

	s := &stores{db: db}
	if withRedis {
		rdb, err := kv.Connect(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return nil, err
		}
		s.rdb = rdb
		logger.Info().Str("event", "startup").Str("item", "redis").Msg("redis connected")
	}
	return s, nil
}

func (s *stores) Close() {
	if s.rdb != nil {
		s.rdb.Close()
	}
	s.db.Close()
}

func (s *stores) locker() worker.Locker {
	if s.rdb == nil {
		return nil
	}
	return kv.NewLocker(s.rdb, logger)
}

func (s *stores) highWaterMarks() service.HighWaterMarks {
	if s.rdb == nil {
		return nil
	}
	return kv.NewCursorStore(s.rdb)
}

func newCatalogIngest(s *stores) *service.CatalogIngestService {
	return service.NewCatalogIngestService(
		leetcode.NewClient(cfg.Leetcode),
		repository.NewPgProblemRepository(s.db),
		service.CatalogIngestOptions{
			Policy: retry.Policy{
				MaxAttempts:    cfg.Ingest.MaxAttempts,
				InitialBackoff: cfg.Ingest.InitialBackoff,
				MaxBackoff:     cfg.Ingest.MaxBackoff,
				Multiplier:     cfg.Ingest.Multiplier,
				Jitter:         cfg.Ingest.Jitter,
			},
			ItemDelay:    cfg.Ingest.ItemDelay,
			SkipPaidOnly: cfg.Ingest.SkipPaidOnly,
		},
		logger,
	)
}

func newSubmissionSync(s *stores) (*service.SubmissionSyncService, error) {
	client := studyapi.NewClient(cfg.Study, logger)

	var registrar service.Registrar
	switch cfg.Study.APIVersion {
	case config.APIVersionUnified:
		if cfg.Study.JWTSecret == "" {
			return nil, fmt.Errorf("study.jwt_secret is required for api_version %s", config.APIVersionUnified)
		}
		registrar = studyapi.NewUnifiedRegistrar(client, security.NewTokenIssuer(cfg.Study.JWTSecret, cfg.Study.TokenTTL))
	default:
		registrar = studyapi.NewLegacyRegistrar(client)
	}

	var users service.UserDirectory = client
	if cfg.Study.UserSource == config.UserSourceStore {
		users = repository.NewPgUserRepository(s.db)
	}

	return service.NewSubmissionSyncService(
		service.NewUserResolver(users, logger),
		leetcode.NewClient(cfg.Leetcode),
		registrar,
		repository.NewPgSubmissionRepository(s.db),
		s.highWaterMarks(),
		service.SubmissionSyncOptions{
			FetchLimit: cfg.Sync.FetchLimit,
			ItemDelay:  cfg.Sync.ItemDelay,
		},
		logger,
	), nil
}

func newJobs(s *stores, submissions worker.SubmissionRunner, catalog worker.CatalogRunner) *worker.Jobs {
	return worker.NewJobs(submissions, catalog, s.locker(), worker.JobsConfig{
		RemoteUsername: cfg.Sync.RemoteUsername,
		LocalUsername:  cfg.Sync.LocalUsername,
		SyncLockTTL:    cfg.Sync.LockTTL,
		IngestLockTTL:  cfg.Ingest.LockTTL,
	}, logger)
}
