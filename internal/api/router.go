package api

import (
	"net/http"
	"time"

	"study_sync/internal/api/handler"
	apiMiddleware "study_sync/internal/api/middleware"
	"study_sync/internal/common/security"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	Tokens      *security.TokenIssuer
	Problems    handler.ProblemReader
	Submissions handler.SubmissionReader
	Jobs        handler.SyncTrigger
	RateLimit   int
	RateWindow  time.Duration
	Log         zerolog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(apiMiddleware.RequestLogger(deps.Log))
	r.Use(chiMiddleware.Recoverer)

	// Claims land in the context; routes that need them add Authenticator.
	r.Use(jwtauth.Verifier(deps.Tokens.Auth()))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Route("/problems", handler.NewProblemHandler(deps.Problems).RegisterRoutes)
		v1.Route("/users", handler.NewSubmissionHandler(deps.Submissions).RegisterRoutes)
		v1.Route("/sync", handler.NewSyncHandler(deps.Jobs, deps.RateLimit, deps.RateWindow, deps.Log).RegisterRoutes)
	})

	return r
}
