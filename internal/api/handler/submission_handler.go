package handler

import (
	"context"
	"net/http"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type SubmissionReader interface {
	ListUserSubmissions(ctx context.Context, username string, limit, offset int) ([]model.Submission, error)
}

type SubmissionHandler struct {
	submissions SubmissionReader
}

func NewSubmissionHandler(submissions SubmissionReader) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions}
}

// RegisterRoutes mounts under /users.
func (h *SubmissionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{username}/submissions", h.listUserSubmissions)
}

func (h *SubmissionHandler) listUserSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	subs, err := h.submissions.ListUserSubmissions(r.Context(), chi.URLParam(r, "username"), limit, offset)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}
