package main

import (
	"context"
	"errors"
	"net/http"

	"study_sync/internal/api"
	"study_sync/internal/app/service"
	"study_sync/internal/app/worker"
	"study_sync/internal/common/security"
	"study_sync/internal/domain/repository"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the periodic submission sync and the ops API",
	Long: `Runs the submission sync every sync.interval and serves the ops API
(health, metrics, stored problems and submissions, admin sync triggers) under
one supervisor. Catalog ingestion is started on demand via
POST /api/v1/sync/catalog.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("no-periodic", false, "Only serve the API; do not schedule submission syncs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	noPeriodic, _ := cmd.Flags().GetBool("no-periodic")

	// 1. Stores
	s, err := openStores(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()

	// 2. Pipelines
	submissions, err := newSubmissionSync(s)
	if err != nil {
		return err
	}
	jobs := newJobs(s, submissions, newCatalogIngest(s))

	// 3. Read services
	problemService := service.NewProblemService(repository.NewPgProblemRepository(s.db))
	submissionService := service.NewSubmissionService(
		repository.NewPgSubmissionRepository(s.db),
		repository.NewPgUserRepository(s.db),
	)

	// 4. Router & HTTP server
	router := api.NewRouter(api.RouterDeps{
		Tokens:      security.NewTokenIssuer(cfg.AdminKey(), cfg.Study.TokenTTL),
		Problems:    problemService,
		Submissions: submissionService,
		Jobs:        jobs,
		RateLimit:   cfg.Server.RateLimitReqs,
		RateWindow:  cfg.Server.RateLimitWindow,
		Log:         logger,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.APIPort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 5. Supervisor
	sup := worker.NewSupervisor(logger, cfg.Server.ShutdownTimeout)
	sup.Add(worker.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	if !noPeriodic {
		if err := cfg.RequireSyncUsers(); err != nil {
			return err
		}
		sup.Add(worker.SubmissionSyncJob(jobs, cfg.Sync.Interval, logger))
	}

	logger.Info().Str("event", "startup").Str("port", cfg.Server.APIPort).
		Str("api_version", cfg.Study.APIVersion).Bool("periodic", !noPeriodic).Msg("studysync serving")

	// 6. Run until signalled
	err = sup.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Str("event", "shutdown").Msg("studysync stopped")
	return nil
}
