package model

import (
	"strconv"
	"time"
)

// RemoteSubmission is one accepted submission as reported by the remote source.
type RemoteSubmission struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	TitleSlug string `json:"title_slug"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// SubmittedAt converts the remote unix timestamp to a UTC instant.
func (s RemoteSubmission) SubmittedAt() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// LocalSubmissionID is the submission id used by the study service and the local store.
func LocalSubmissionID(remoteID string) string {
	return "leetcode-" + remoteID
}

type Submission struct {
	ID                   string    `json:"id"`
	LeetcodeSubmissionID string    `json:"leetcode_submission_id"`
	UserID               string    `json:"user_id"`
	Title                string    `json:"title"`
	TitleSlug            string    `json:"title_slug"`
	SubmittedAt          time.Time `json:"submitted_at"`
	CreatedAt            time.Time `json:"created_at"`
}

// NewSubmission builds the local row for a remote submission owned by userID.
func NewSubmission(userID string, s RemoteSubmission) *Submission {
	return &Submission{
		ID:                   LocalSubmissionID(s.ID),
		LeetcodeSubmissionID: s.ID,
		UserID:               userID,
		Title:                s.Title,
		TitleSlug:            s.TitleSlug,
		SubmittedAt:          s.SubmittedAt(),
	}
}

type RegistrationOutcome string

const (
	OutcomeRegistered        RegistrationOutcome = "registered"
	OutcomeAlreadyRegistered RegistrationOutcome = "already_registered"
	OutcomeFailed            RegistrationOutcome = "failed"
)

// ScheduleReport is what the study service tells us about a registered
// submission. Schedule fields are nil when the service returned none, which
// happens on an idempotent conflict.
type ScheduleReport struct {
	Outcome         RegistrationOutcome `json:"outcome"`
	SubmissionID    string              `json:"submission_id"`
	NextReviewAt    *time.Time          `json:"next_review_at,omitempty"`
	DaysUntilReview *int                `json:"days_until_review,omitempty"`
	IsDue           *bool               `json:"is_due,omitempty"`
}

// AlreadyProcessed reports whether the service had seen this submission before.
func (r *ScheduleReport) AlreadyProcessed() bool {
	return r != nil && r.Outcome == OutcomeAlreadyRegistered
}

func (r *ScheduleReport) String() string {
	if r == nil {
		return "<nil>"
	}
	s := string(r.Outcome) + " " + r.SubmissionID
	if r.NextReviewAt != nil {
		s += " next=" + r.NextReviewAt.Format(time.RFC3339)
	}
	if r.DaysUntilReview != nil {
		s += " days=" + strconv.Itoa(*r.DaysUntilReview)
	}
	return s
}
