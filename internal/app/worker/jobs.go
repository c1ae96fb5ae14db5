package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_sync/internal/app/service"
	"study_sync/internal/common"

	"github.com/rs/zerolog"
)

const (
	JobSubmissions = "submissions"
	JobCatalog     = "catalog"
)

// Locker serializes runs of the same job across processes.
type Locker interface {
	Acquire(ctx context.Context, job string, ttl time.Duration) (release func(), err error)
}

type SubmissionRunner interface {
	Run(ctx context.Context, remoteUsername, localUsername string) (*service.SyncSummary, error)
}

type CatalogRunner interface {
	Run(ctx context.Context) (*service.IngestSummary, error)
}

// Jobs runs each pipeline under its single-run lock. Both the periodic worker
// and the ops API trigger runs through here.
type Jobs struct {
	submissions    SubmissionRunner
	catalog        CatalogRunner
	locker         Locker
	remoteUsername string
	localUsername  string
	syncLockTTL    time.Duration
	ingestLockTTL  time.Duration
	log            zerolog.Logger
}

type JobsConfig struct {
	RemoteUsername string
	LocalUsername  string
	SyncLockTTL    time.Duration
	IngestLockTTL  time.Duration
}

// NewJobs builds the runner. locker may be nil for one-shot CLI runs without
// Redis; runs are then unguarded.
func NewJobs(submissions SubmissionRunner, catalog CatalogRunner, locker Locker, cfg JobsConfig, log zerolog.Logger) *Jobs {
	return &Jobs{
		submissions:    submissions,
		catalog:        catalog,
		locker:         locker,
		remoteUsername: cfg.RemoteUsername,
		localUsername:  cfg.LocalUsername,
		syncLockTTL:    cfg.SyncLockTTL,
		ingestLockTTL:  cfg.IngestLockTTL,
		log:            log.With().Str("component", "jobs").Logger(),
	}
}

// RunSubmissions syncs the configured account pair.
func (j *Jobs) RunSubmissions(ctx context.Context) (*service.SyncSummary, error) {
	return j.RunSubmissionsFor(ctx, j.remoteUsername, j.localUsername)
}

// RunSubmissionsFor syncs an explicit account pair. Empty names fall back to
// the configured ones.
func (j *Jobs) RunSubmissionsFor(ctx context.Context, remoteUsername, localUsername string) (*service.SyncSummary, error) {
	if remoteUsername == "" {
		remoteUsername = j.remoteUsername
	}
	if localUsername == "" {
		localUsername = j.localUsername
	}
	if remoteUsername == "" || localUsername == "" {
		return nil, fmt.Errorf("remote and local usernames are required: %w", common.ErrBadRequest)
	}
	if j.submissions == nil {
		return nil, fmt.Errorf("submission sync is not configured: %w", common.ErrServiceUnavailable)
	}
	release, err := j.acquire(ctx, JobSubmissions, j.syncLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()
	return j.submissions.Run(ctx, remoteUsername, localUsername)
}

func (j *Jobs) RunCatalog(ctx context.Context) (*service.IngestSummary, error) {
	if j.catalog == nil {
		return nil, fmt.Errorf("catalog ingestion is not configured: %w", common.ErrServiceUnavailable)
	}
	release, err := j.acquire(ctx, JobCatalog, j.ingestLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()
	return j.catalog.Run(ctx)
}

// StartCatalog takes the catalog lock and runs ingestion in the background,
// since a full pass can take hours. It returns once the lock is held; ctx must
// outlive the caller's request.
func (j *Jobs) StartCatalog(ctx context.Context) error {
	if j.catalog == nil {
		return fmt.Errorf("catalog ingestion is not configured: %w", common.ErrServiceUnavailable)
	}
	release, err := j.acquire(ctx, JobCatalog, j.ingestLockTTL)
	if err != nil {
		return err
	}
	go func() {
		defer release()
		if _, err := j.catalog.Run(ctx); err != nil {
			j.log.Error().Err(err).Str("event", "catalog_run").Str("outcome", "failed").Msg("background catalog ingestion failed")
		}
	}()
	return nil
}

func (j *Jobs) acquire(ctx context.Context, job string, ttl time.Duration) (func(), error) {
	if j.locker == nil {
		return func() {}, nil
	}
	release, err := j.locker.Acquire(ctx, job, ttl)
	if err != nil {
		if errors.Is(err, common.ErrLockHeld) {
			j.log.Info().Str("event", "lock").Str("item", job).Str("outcome", "held").Msg("another run is in progress")
		}
		return nil, err
	}
	j.log.Debug().Str("event", "lock").Str("item", job).Str("outcome", "acquired").Dur("ttl", ttl).Msg("run lock acquired")
	return release, nil
}
