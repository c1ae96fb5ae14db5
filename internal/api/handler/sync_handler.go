package handler

import (
	"context"
	"net/http"
	"time"

	"study_sync/internal/api/middleware"
	"study_sync/internal/app/service"
	"study_sync/internal/common"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// SyncTrigger starts pipeline runs on demand.
type SyncTrigger interface {
	RunSubmissionsFor(ctx context.Context, remoteUsername, localUsername string) (*service.SyncSummary, error)
	StartCatalog(ctx context.Context) error
}

type SyncHandler struct {
	jobs       SyncTrigger
	rateLimit  int
	rateWindow time.Duration
	log        zerolog.Logger
}

func NewSyncHandler(jobs SyncTrigger, rateLimit int, rateWindow time.Duration, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		jobs:       jobs,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		log:        log.With().Str("component", "sync_handler").Logger(),
	}
}

// RegisterRoutes mounts the admin-only triggers under /sync.
func (h *SyncHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(admin chi.Router) {
		admin.Use(httprate.Limit(h.rateLimit, h.rateWindow, httprate.WithKeyFuncs(httprate.KeyByIP)))
		admin.Use(middleware.Authenticator)
		admin.Use(middleware.AdminOnly)
		admin.Post("/submissions", h.syncSubmissions) // POST /api/v1/sync/submissions
		admin.Post("/catalog", h.ingestCatalog)       // POST /api/v1/sync/catalog
	})
}

type syncSubmissionsRequest struct {
	RemoteUsername string `json:"remote_username" validate:"omitempty,min=1,max=64"`
	LocalUsername  string `json:"local_username" validate:"omitempty,min=1,max=64"`
}

func (h *SyncHandler) syncSubmissions(w http.ResponseWriter, r *http.Request) {
	var req syncSubmissionsRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(r.Context())
	h.log.Info().Str("event", "sync_trigger").Str("item", "submissions").Str("admin_id", adminID).Msg("manual submission sync requested")

	summary, err := h.jobs.RunSubmissionsFor(r.Context(), req.RemoteUsername, req.LocalUsername)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, summary)
}

func (h *SyncHandler) ingestCatalog(w http.ResponseWriter, r *http.Request) {
	adminID, _ := middleware.GetUserIDFromContext(r.Context())
	h.log.Info().Str("event", "sync_trigger").Str("item", "catalog").Str("admin_id", adminID).Msg("manual catalog ingestion requested")

	// The run outlives this request.
	if err := h.jobs.StartCatalog(context.WithoutCancel(r.Context())); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
