package handler

import (
	"context"
	"net/http"
	"strconv"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type ProblemReader interface {
	GetProblem(ctx context.Context, slug string) (*model.Problem, error)
	ListProblems(ctx context.Context, limit, offset int, difficulty model.ProblemDifficulty, topicSlug string) ([]model.Problem, int, error)
}

type ProblemHandler struct {
	problems ProblemReader
}

func NewProblemHandler(problems ProblemReader) *ProblemHandler {
	return &ProblemHandler{problems: problems}
}

func (h *ProblemHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listProblems)            // GET /api/v1/problems?topic=array&limit=20
	r.Get("/{problemSlug}", h.getProblem) // GET /api/v1/problems/two-sum
}

type problemPage struct {
	Problems []model.Problem `json:"problems"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

func (h *ProblemHandler) listProblems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset, err := pageParams(q.Get("limit"), q.Get("offset"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	problems, total, err := h.problems.ListProblems(r.Context(), limit, offset,
		model.ProblemDifficulty(q.Get("difficulty")), q.Get("topic"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problemPage{
		Problems: problems,
		Total:    total,
		Limit:    limit,
		Offset:   offset,
	})
}

func (h *ProblemHandler) getProblem(w http.ResponseWriter, r *http.Request) {
	problem, err := h.problems.GetProblem(r.Context(), chi.URLParam(r, "problemSlug"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, problem)
}

// pageParams parses optional limit/offset query values; clamping is left to
// the services.
func pageParams(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error
	if limitStr != "" {
		if limit, err = strconv.Atoi(limitStr); err != nil {
			return 0, 0, common.Errorf("invalid limit %q: %w", limitStr, common.ErrBadRequest)
		}
	}
	if offsetStr != "" {
		if offset, err = strconv.Atoi(offsetStr); err != nil {
			return 0, 0, common.Errorf("invalid offset %q: %w", offsetStr, common.ErrBadRequest)
		}
	}
	return limit, offset, nil
}
