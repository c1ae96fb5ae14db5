package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
	"study_sync/internal/domain/repository"
	"study_sync/internal/platform/logging"
	"study_sync/internal/platform/metrics"
	"study_sync/internal/platform/retry"

	"github.com/rs/zerolog"
)

// CatalogSource is the remote problem catalog.
type CatalogSource interface {
	FetchCatalogList(ctx context.Context) ([]model.CatalogStub, int, error)
	FetchDetail(ctx context.Context, titleSlug string) (*model.Problem, error)
}

type CatalogIngestService struct {
	source       CatalogSource
	problemRepo  repository.ProblemRepository
	policy       retry.Policy
	pacer        *retry.Pacer
	skipPaidOnly bool
	log          zerolog.Logger
}

type CatalogIngestOptions struct {
	Policy       retry.Policy
	ItemDelay    time.Duration
	SkipPaidOnly bool
}

func NewCatalogIngestService(
	source CatalogSource,
	problemRepo repository.ProblemRepository,
	opts CatalogIngestOptions,
	log zerolog.Logger,
) *CatalogIngestService {
	return &CatalogIngestService{
		source:       source,
		problemRepo:  problemRepo,
		policy:       opts.Policy,
		pacer:        retry.NewPacer(opts.ItemDelay),
		skipPaidOnly: opts.SkipPaidOnly,
		log:          logging.Component(log, "catalog_ingest"),
	}
}

type IngestSummary struct {
	Listed   int           `json:"listed"`
	Rejected int           `json:"rejected"`
	Skipped  int           `json:"skipped"`
	Ingested int           `json:"ingested"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

const (
	outcomeIngested = "ingested"
	outcomeSkipped  = "skipped"
	outcomeFailed   = "failed"
)

// Run ingests every catalog entry not yet stored. Only an unreachable list
// endpoint or cancellation ends the run early; per-entry failures are logged
// and counted.
func (s *CatalogIngestService) Run(ctx context.Context) (*IngestSummary, error) {
	start := time.Now()
	summary := &IngestSummary{}

	stubs, rejected, err := s.source.FetchCatalogList(ctx)
	if err != nil {
		metrics.Runs.WithLabelValues("catalog", "error").Inc()
		return nil, fmt.Errorf("fetch catalog list: %w", err)
	}
	summary.Listed = len(stubs)
	summary.Rejected = rejected
	s.log.Info().Str("event", "catalog_list").Int("listed", len(stubs)).Int("rejected", rejected).Msg("catalog list fetched")

	for i, stub := range stubs {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			metrics.Runs.WithLabelValues("catalog", "cancelled").Inc()
			return summary, err
		}

		outcome, err := s.IngestOne(ctx, stub)
		metrics.CatalogItems.WithLabelValues(outcome).Inc()
		switch outcome {
		case outcomeIngested:
			summary.Ingested++
		case outcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				summary.Duration = time.Since(start)
				metrics.Runs.WithLabelValues("catalog", "cancelled").Inc()
				return summary, err
			}
		}
		if outcome != outcomeSkipped {
			s.log.Debug().Int("position", i+1).Int("total", len(stubs)).Str("item", stub.TitleSlug).Msg("catalog progress")
		}
	}

	summary.Duration = time.Since(start)
	metrics.Runs.WithLabelValues("catalog", "ok").Inc()
	metrics.RunDuration.WithLabelValues("catalog").Observe(summary.Duration.Seconds())
	s.log.Info().Str("event", "catalog_run").Str("outcome", "completed").
		Int("ingested", summary.Ingested).Int("skipped", summary.Skipped).Int("failed", summary.Failed).
		Dur("duration", summary.Duration).Msg("catalog ingestion finished")
	return summary, nil
}

// IngestOne processes a single stub and returns its outcome. Entries already
// stored are never refetched.
func (s *CatalogIngestService) IngestOne(ctx context.Context, stub model.CatalogStub) (string, error) {
	logger := s.log.With().Str("item", stub.TitleSlug).Int("remote_id", stub.RemoteID).Logger()

	if s.skipPaidOnly && stub.PaidOnly {
		logger.Debug().Str("event", "catalog_item").Str("outcome", outcomeSkipped).Str("reason", "paid_only").Msg("skipping paid-only entry")
		return outcomeSkipped, nil
	}

	exists, err := s.problemRepo.Exists(ctx, stub.RemoteID)
	if err != nil {
		logger.Error().Err(err).Str("event", "exists_check").Str("outcome", outcomeFailed).Msg("could not check local store")
		return outcomeFailed, err
	}
	if exists {
		logger.Debug().Str("event", "catalog_item").Str("outcome", outcomeSkipped).Str("reason", "exists").Msg("entry already stored")
		return outcomeSkipped, nil
	}

	problem, err := s.fetchDetail(ctx, stub.TitleSlug, logger)
	if err != nil {
		logger.Error().Err(err).Str("event", "detail_fetch").Str("outcome", "abandoned").Msg("giving up on entry")
		return outcomeFailed, err
	}
	if problem.ID != stub.RemoteID {
		logger.Warn().Int("detail_id", problem.ID).Str("event", "detail_fetch").Msg("detail id differs from list id")
	}
	normalizeProblem(problem)

	storedID, err := s.problemRepo.Upsert(ctx, nil, problem)
	if err != nil {
		logger.Error().Err(err).Str("event", "upsert").Str("outcome", outcomeFailed).Msg("could not store entry")
		return outcomeFailed, err
	}
	logger.Info().Str("event", "catalog_item").Str("outcome", outcomeIngested).Int("stored_id", storedID).Msg("entry stored")
	return outcomeIngested, nil
}

func retryableDetailError(err error) bool {
	return errors.Is(err, common.ErrTransient) || errors.Is(err, common.ErrIncomplete)
}

// fetchDetail paces every attempt, so consecutive remote calls are always at
// least the item delay apart, and retries with backoff on top.
func (s *CatalogIngestService) fetchDetail(ctx context.Context, titleSlug string, logger zerolog.Logger) (*model.Problem, error) {
	var problem *model.Problem
	err := retry.Do(ctx, s.policy, retryableDetailError, func(attempt int) error {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}
		p, err := s.source.FetchDetail(ctx, titleSlug)
		switch {
		case err == nil:
			metrics.DetailAttempts.WithLabelValues("ok").Inc()
		case errors.Is(err, common.ErrIncomplete):
			metrics.DetailAttempts.WithLabelValues("incomplete").Inc()
		default:
			metrics.DetailAttempts.WithLabelValues("transient").Inc()
		}
		if err != nil {
			return err
		}
		problem = p
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		logger.Warn().Err(err).Str("event", "detail_fetch").Str("outcome", "retry").
			Int("attempt", attempt).Dur("backoff", wait).Msg("detail fetch failed, retrying")
	})
	if err != nil {
		return nil, err
	}
	return problem, nil
}

// normalizeProblem makes optional remote fields safe to persist.
func normalizeProblem(p *model.Problem) {
	if p.TopicTags == nil {
		p.TopicTags = []model.TopicTag{}
	}
	if p.SimilarQuestions == nil {
		p.SimilarQuestions = []model.SimilarQuestion{}
	}
}
