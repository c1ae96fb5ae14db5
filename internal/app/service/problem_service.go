package service

import (
	"context"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
	"study_sync/internal/domain/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProblemService serves the locally ingested catalog.
type ProblemService struct {
	problemRepo repository.ProblemRepository
}

func NewProblemService(problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: problemRepo}
}

func (s *ProblemService) GetProblem(ctx context.Context, problemSlug string) (*model.Problem, error) {
	if problemSlug == "" {
		return nil, common.Errorf("problem slug is required: %w", common.ErrBadRequest)
	}
	return s.problemRepo.FindBySlug(ctx, problemSlug)
}

// ListProblems returns one page of stored problems, optionally filtered by
// difficulty and topic slug, along with the total number of matches.
func (s *ProblemService) ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, topicSlug string) ([]model.Problem, int, error) {
	limit, offset = clampPage(limit, offset)
	if difficulty != "" && difficulty.Rank() == 0 {
		return nil, 0, common.Errorf("unknown difficulty %q: %w", difficulty, common.ErrBadRequest)
	}
	return s.problemRepo.ListProblems(ctx, limit, offset, difficulty, topicSlug)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
