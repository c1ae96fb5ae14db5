package worker

import (
	"context"
	"errors"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/platform/logging"

	"github.com/rs/zerolog"
)

// PeriodicJob runs one job right away and then on every tick until the
// supervisor stops it. A failing run is logged and the schedule continues.
type PeriodicJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	log      zerolog.Logger
}

func NewPeriodicJob(name string, interval time.Duration, run func(ctx context.Context) error, log zerolog.Logger) *PeriodicJob {
	return &PeriodicJob{
		name:     name,
		interval: interval,
		run:      run,
		log:      logging.Component(log, "periodic_job").With().Str("job", name).Logger(),
	}
}

// SubmissionSyncJob schedules jobs.RunSubmissions.
func SubmissionSyncJob(jobs *Jobs, interval time.Duration, log zerolog.Logger) *PeriodicJob {
	return NewPeriodicJob(JobSubmissions, interval, func(ctx context.Context) error {
		_, err := jobs.RunSubmissions(ctx)
		return err
	}, log)
}

// CatalogIngestJob schedules jobs.RunCatalog.
func CatalogIngestJob(jobs *Jobs, interval time.Duration, log zerolog.Logger) *PeriodicJob {
	return NewPeriodicJob(JobCatalog, interval, func(ctx context.Context) error {
		_, err := jobs.RunCatalog(ctx)
		return err
	}, log)
}

// Serve implements suture.Service.
func (p *PeriodicJob) Serve(ctx context.Context) error {
	p.log.Info().Dur("interval", p.interval).Msg("periodic job started")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("periodic job stopping")
			return ctx.Err()
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *PeriodicJob) runOnce(ctx context.Context) {
	err := p.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrLockHeld):
		p.log.Info().Str("event", "scheduled_run").Str("outcome", "skipped").Msg("previous run still holds the lock")
	case errors.Is(err, context.Canceled):
	default:
		p.log.Error().Err(err).Str("event", "scheduled_run").Str("outcome", "failed").Msg("scheduled run failed")
	}
}

func (p *PeriodicJob) String() string {
	return "periodic-" + p.name
}
