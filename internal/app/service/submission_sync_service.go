package service

import (
	"context"
	"fmt"
	"time"

	"study_sync/internal/domain/model"
	"study_sync/internal/domain/repository"
	"study_sync/internal/platform/metrics"
	"study_sync/internal/platform/retry"

	"github.com/rs/zerolog"
)

// SubmissionSource is the remote record of accepted submissions.
type SubmissionSource interface {
	FetchRecentAccepted(ctx context.Context, username string, limit int) ([]model.RemoteSubmission, error)
}

// Registrar registers a submission with the study service and returns its
// schedule. An already registered submission is a successful report with
// OutcomeAlreadyRegistered, never an error.
type Registrar interface {
	Register(ctx context.Context, userID string, sub model.RemoteSubmission) (*model.ScheduleReport, error)
	Version() string
}

// HighWaterMarks remembers the newest reconciled submission per remote user.
type HighWaterMarks interface {
	HighWaterMark(ctx context.Context, remoteUsername string) (time.Time, error)
	Advance(ctx context.Context, remoteUsername string, t time.Time) error
}

type SubmissionSyncService struct {
	users          *UserResolver
	source         SubmissionSource
	registrar      Registrar
	submissionRepo repository.SubmissionRepository
	marks          HighWaterMarks
	pacer          *retry.Pacer
	limit          int
	log            zerolog.Logger
}

type SubmissionSyncOptions struct {
	FetchLimit int
	ItemDelay  time.Duration
}

// NewSubmissionSyncService wires the pipeline. marks may be nil, which turns
// off coverage-gap detection.
func NewSubmissionSyncService(
	users *UserResolver,
	source SubmissionSource,
	registrar Registrar,
	submissionRepo repository.SubmissionRepository,
	marks HighWaterMarks,
	opts SubmissionSyncOptions,
	log zerolog.Logger,
) *SubmissionSyncService {
	return &SubmissionSyncService{
		users:          users,
		source:         source,
		registrar:      registrar,
		submissionRepo: submissionRepo,
		marks:          marks,
		pacer:          retry.NewPacer(opts.ItemDelay),
		limit:          opts.FetchLimit,
		log:            log.With().Str("component", "submission_sync").Str("api_version", registrar.Version()).Logger(),
	}
}

type SyncSummary struct {
	UserID            string        `json:"user_id"`
	Fetched           int           `json:"fetched"`
	Duplicates        int           `json:"duplicates"`
	Registered        int           `json:"registered"`
	AlreadyRegistered int           `json:"already_registered"`
	Failed            int           `json:"failed"`
	CoverageGap       bool          `json:"coverage_gap"`
	Duration          time.Duration `json:"duration"`
}

// Run performs one incremental sync for a remote account. Failing to resolve
// the user or to fetch the list aborts the run; per-submission failures do
// not, and are picked up again by the next run because the fetch window
// always covers recent history.
func (s *SubmissionSyncService) Run(ctx context.Context, remoteUsername, localUsername string) (*SyncSummary, error) {
	start := time.Now()

	userID, err := s.users.GetOrCreate(ctx, remoteUsername, localUsername)
	if err != nil {
		metrics.Runs.WithLabelValues("submissions", "error").Inc()
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	summary := &SyncSummary{UserID: userID}

	subs, err := s.source.FetchRecentAccepted(ctx, remoteUsername, s.limit)
	if err != nil {
		metrics.Runs.WithLabelValues("submissions", "error").Inc()
		return nil, fmt.Errorf("fetch recent submissions: %w", err)
	}
	summary.Fetched = len(subs)
	s.log.Info().Str("event", "submission_list").Str("item", remoteUsername).Int("fetched", len(subs)).Msg("recent submissions fetched")

	summary.CoverageGap = s.detectCoverageGap(ctx, remoteUsername, subs)

	var newest time.Time
	seen := make(map[string]struct{}, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			metrics.Runs.WithLabelValues("submissions", "cancelled").Inc()
			return summary, err
		}
		logger := s.log.With().Str("item", sub.ID).Str("title_slug", sub.TitleSlug).Logger()

		if _, dup := seen[sub.ID]; dup {
			summary.Duplicates++
			metrics.SubmissionItems.WithLabelValues("duplicate").Inc()
			logger.Warn().Str("event", "reconcile").Str("outcome", "duplicate").Msg("duplicate submission id in fetched batch")
			continue
		}
		seen[sub.ID] = struct{}{}

		if err := s.pacer.Wait(ctx); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		report, err := s.Process(ctx, userID, sub)
		if err != nil {
			summary.Failed++
			metrics.SubmissionItems.WithLabelValues(string(model.OutcomeFailed)).Inc()
			logger.Error().Err(err).Str("event", "reconcile").Str("outcome", string(model.OutcomeFailed)).Msg("submission not reconciled, will retry next run")
			continue
		}

		metrics.SubmissionItems.WithLabelValues(string(report.Outcome)).Inc()
		if report.AlreadyProcessed() {
			summary.AlreadyRegistered++
		} else {
			summary.Registered++
		}
		if at := sub.SubmittedAt(); at.After(newest) {
			newest = at
		}

		event := logger.Info().Str("event", "reconcile").Str("outcome", string(report.Outcome)).Str("submission_id", report.SubmissionID)
		if report.NextReviewAt != nil {
			event = event.Time("next_review_at", *report.NextReviewAt)
		}
		if report.DaysUntilReview != nil {
			event = event.Int("days_until_review", *report.DaysUntilReview)
		}
		event.Msg("submission reconciled")
	}

	if s.marks != nil && !newest.IsZero() {
		if err := s.marks.Advance(ctx, remoteUsername, newest); err != nil {
			s.log.Warn().Err(err).Str("event", "high_water_mark").Str("item", remoteUsername).Msg("could not advance high-water mark")
		}
	}

	summary.Duration = time.Since(start)
	metrics.Runs.WithLabelValues("submissions", "ok").Inc()
	metrics.RunDuration.WithLabelValues("submissions").Observe(summary.Duration.Seconds())
	s.log.Info().Str("event", "submission_run").Str("outcome", "completed").
		Int("registered", summary.Registered).Int("already_registered", summary.AlreadyRegistered).
		Int("failed", summary.Failed).Int("duplicates", summary.Duplicates).Msg("submission sync finished")
	return summary, nil
}

// Process registers one submission and records it locally. The local row is
// written after the service accepted or already knew the submission, so a
// stored row always has a schedule behind it. A failed local write is
// returned with the report; the next run's conflict path writes it again.
func (s *SubmissionSyncService) Process(ctx context.Context, userID string, sub model.RemoteSubmission) (*model.ScheduleReport, error) {
	report, err := s.registrar.Register(ctx, userID, sub)
	if err != nil {
		return nil, fmt.Errorf("register submission %s: %w", sub.ID, err)
	}

	local := model.NewSubmission(userID, sub)
	if _, err := s.submissionRepo.Record(ctx, nil, local); err != nil {
		return report, fmt.Errorf("record submission %s: %w", sub.ID, err)
	}
	if report.SubmissionID == "" {
		report.SubmissionID = local.ID
	}
	return report, nil
}

// detectCoverageGap warns when the fetched window is full and every entry is
// newer than the last reconciled submission: older unseen submissions may have
// fallen outside the window.
func (s *SubmissionSyncService) detectCoverageGap(ctx context.Context, remoteUsername string, subs []model.RemoteSubmission) bool {
	if s.marks == nil || s.limit <= 0 || len(subs) < s.limit {
		return false
	}
	mark, err := s.marks.HighWaterMark(ctx, remoteUsername)
	if err != nil {
		s.log.Warn().Err(err).Str("event", "high_water_mark").Str("item", remoteUsername).Msg("could not read high-water mark")
		return false
	}
	if mark.IsZero() {
		return false
	}
	for _, sub := range subs {
		if !sub.SubmittedAt().After(mark) {
			return false
		}
	}
	metrics.CoverageGaps.Inc()
	s.log.Warn().Str("event", "coverage_gap").Str("item", remoteUsername).Int("limit", s.limit).
		Time("high_water_mark", mark).Msg("fetch window saturated; submissions older than the window may be missed")
	return true
}
