package studyapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/goccy/go-json"
)

// TokenMinter issues the bearer token the service uses to identify the user.
type TokenMinter interface {
	GenerateToken(userID, role string) (string, error)
}

type scheduleData struct {
	SubmissionID    string  `json:"submission_id"`
	NextReviewAt    *string `json:"next_review_at"`
	DaysUntilReview *int    `json:"days_until_review"`
	IsDue           *bool   `json:"is_due"`
}

func (d scheduleData) report(outcome model.RegistrationOutcome, fallbackID string) *model.ScheduleReport {
	r := &model.ScheduleReport{
		Outcome:         outcome,
		SubmissionID:    d.SubmissionID,
		NextReviewAt:    parseTime(d.NextReviewAt),
		DaysUntilReview: d.DaysUntilReview,
		IsDue:           d.IsDue,
	}
	if r.SubmissionID == "" {
		r.SubmissionID = fallbackID
	}
	return r
}

func alreadyRegistered(sub model.RemoteSubmission) *model.ScheduleReport {
	return &model.ScheduleReport{
		Outcome:      model.OutcomeAlreadyRegistered,
		SubmissionID: model.LocalSubmissionID(sub.ID),
	}
}

// UnifiedRegistrar uses the single process-submission endpoint, which creates
// the submission and computes its schedule in one call.
type UnifiedRegistrar struct {
	client *Client
	tokens TokenMinter
}

func NewUnifiedRegistrar(client *Client, tokens TokenMinter) *UnifiedRegistrar {
	return &UnifiedRegistrar{client: client, tokens: tokens}
}

type processSubmissionRequest struct {
	IsInternal           bool   `json:"is_internal"`
	LeetcodeSubmissionID string `json:"leetcode_submission_id"`
	Title                string `json:"title"`
	TitleSlug            string `json:"title_slug"`
	SubmittedAt          string `json:"submitted_at"`
}

func (r *UnifiedRegistrar) Version() string { return "v2" }

func (r *UnifiedRegistrar) Register(ctx context.Context, userID string, sub model.RemoteSubmission) (*model.ScheduleReport, error) {
	token, err := r.tokens.GenerateToken(userID, model.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("mint token for user %s: %w", userID, err)
	}

	resp, err := r.client.call(ctx, http.MethodPost, "/api/reviews/process-submission", processSubmissionRequest{
		IsInternal:           false,
		LeetcodeSubmissionID: sub.ID,
		Title:                sub.Title,
		TitleSlug:            sub.TitleSlug,
		SubmittedAt:          sub.SubmittedAt().Format(time.RFC3339),
	}, token)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.status == http.StatusOK || resp.status == http.StatusCreated:
	case isAlreadyExists(resp):
		return alreadyRegistered(sub), nil
	default:
		return nil, unexpectedStatus("process submission "+sub.ID, resp)
	}

	env, err := decodeEnvelope(resp.body)
	if err != nil {
		return nil, fmt.Errorf("process submission %s: decode: %v: %w", sub.ID, err, common.ErrRemoteService)
	}
	var data scheduleData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("process submission %s: decode data: %v: %w", sub.ID, err, common.ErrRemoteService)
		}
	}
	return data.report(model.OutcomeRegistered, model.LocalSubmissionID(sub.ID)), nil
}

// LegacyRegistrar drives the older two-step flow: create the submission, then
// ask the review endpoint to create or update its schedule.
type LegacyRegistrar struct {
	client *Client
	now    func() time.Time
}

func NewLegacyRegistrar(client *Client) *LegacyRegistrar {
	return &LegacyRegistrar{client: client, now: time.Now}
}

type legacySubmissionRequest struct {
	LeetcodeSubmissionID string `json:"leetcode_submission_id"`
	IsInternal           bool   `json:"is_internal"`
	UserID               string `json:"user_id"`
	Title                string `json:"title"`
	TitleSlug            string `json:"title_slug"`
	SubmittedAt          string `json:"submitted_at"`
	CreatedAt            string `json:"created_at"`
}

type legacyReviewRequest struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	TitleSlug   string `json:"title_slug"`
	SubmittedAt string `json:"submitted_at"`
	CreatedAt   string `json:"created_at"`
}

func (r *LegacyRegistrar) Version() string { return "v1" }

// Register treats a conflict on the first step as already processed and skips
// the review step. If the review step fails after the submission was created,
// later runs see the conflict and do not reschedule.
func (r *LegacyRegistrar) Register(ctx context.Context, userID string, sub model.RemoteSubmission) (*model.ScheduleReport, error) {
	now := r.now().UTC()
	submittedAt := sub.SubmittedAt().Format(time.RFC3339)
	createdAt := now.Format(time.RFC3339)

	resp, err := r.client.call(ctx, http.MethodPost, "/api/submissions", legacySubmissionRequest{
		LeetcodeSubmissionID: sub.ID,
		IsInternal:           false,
		UserID:               userID,
		Title:                sub.Title,
		TitleSlug:            sub.TitleSlug,
		SubmittedAt:          submittedAt,
		CreatedAt:            createdAt,
	}, "")
	if err != nil {
		return nil, err
	}
	switch {
	case resp.status == http.StatusOK || resp.status == http.StatusCreated:
	case isAlreadyExists(resp):
		return alreadyRegistered(sub), nil
	default:
		return nil, unexpectedStatus("create submission "+sub.ID, resp)
	}

	localID := model.LocalSubmissionID(sub.ID)
	resp, err = r.client.call(ctx, http.MethodPost, "/api/reviews/update-or-create", legacyReviewRequest{
		ID:          localID,
		UserID:      userID,
		Title:       sub.Title,
		TitleSlug:   sub.TitleSlug,
		SubmittedAt: submittedAt,
		CreatedAt:   createdAt,
	}, "")
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK && resp.status != http.StatusCreated {
		return nil, unexpectedStatus("update review "+localID, resp)
	}

	env, err := decodeEnvelope(resp.body)
	if err != nil {
		return nil, fmt.Errorf("update review %s: decode: %v: %w", localID, err, common.ErrRemoteService)
	}
	var data scheduleData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, fmt.Errorf("update review %s: decode data: %v: %w", localID, err, common.ErrRemoteService)
		}
	}
	report := data.report(model.OutcomeRegistered, localID)
	// The legacy endpoint has no due flag; derive it from the next review time.
	if report.IsDue == nil && report.NextReviewAt != nil {
		due := !report.NextReviewAt.After(now)
		report.IsDue = &due
	}
	return report, nil
}
