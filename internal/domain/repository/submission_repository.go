package repository

import (
	"context"
	"database/sql"
	"fmt"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
)

type SubmissionRepository interface {
	// Record stores s unless its remote id is already stored. created is false
	// for the duplicate case, which is not an error.
	Record(ctx context.Context, tx *sql.Tx, s *model.Submission) (created bool, err error)
	CountByRemoteID(ctx context.Context, remoteID string) (int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func (r *pgSubmissionRepository) Record(ctx context.Context, tx *sql.Tx, s *model.Submission) (bool, error) {
	query := `INSERT INTO submissions (id, leetcode_submission_id, user_id, title, title_slug, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT DO NOTHING`
	args := []interface{}{s.ID, s.LeetcodeSubmissionID, s.UserID, s.Title, s.TitleSlug, s.SubmittedAt}

	var (
		res sql.Result
		err error
	)
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, args...)
	} else {
		res, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Record %s: %v: %w", s.LeetcodeSubmissionID, err, common.ErrLocalStore)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.Record rows: %v: %w", err, common.ErrLocalStore)
	}
	return n == 1, nil
}

func (r *pgSubmissionRepository) CountByRemoteID(ctx context.Context, remoteID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE leetcode_submission_id = $1`, remoteID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pgSubmissionRepository.CountByRemoteID: %w", err)
	}
	return n, nil
}

func (r *pgSubmissionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, leetcode_submission_id, user_id, title, title_slug, submitted_at, created_at
		FROM submissions
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListByUser: %w", err)
	}
	defer rows.Close()

	subs := []model.Submission{}
	for rows.Next() {
		var s model.Submission
		if err := rows.Scan(&s.ID, &s.LeetcodeSubmissionID, &s.UserID, &s.Title, &s.TitleSlug, &s.SubmittedAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListByUser scan: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
