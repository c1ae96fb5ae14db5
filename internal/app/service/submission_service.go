package service

import (
	"context"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
	"study_sync/internal/domain/repository"
)

// SubmissionService reads reconciled submissions from the local store.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	userRepo       repository.UserRepository
}

func NewSubmissionService(subRepo repository.SubmissionRepository, userRepo repository.UserRepository) *SubmissionService {
	return &SubmissionService{
		submissionRepo: subRepo,
		userRepo:       userRepo,
	}
}

// ListUserSubmissions returns the newest submissions of a local user. Users
// are looked up in the local users table, so only store-backed users resolve.
func (s *SubmissionService) ListUserSubmissions(ctx context.Context, username string, limit, offset int) ([]model.Submission, error) {
	if username == "" {
		return nil, common.Errorf("username is required: %w", common.ErrBadRequest)
	}
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	limit, offset = clampPage(limit, offset)
	return s.submissionRepo.ListByUser(ctx, user.ID, limit, offset)
}
