package main

import (
	"fmt"
	"os"

	"study_sync/internal/platform/database"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the problems, topic, users and submissions tables if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.EnsureSchema(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info().Str("event", "schema").Str("outcome", "applied").Msg("schema is up to date")
		return nil
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest every catalog problem that is not stored yet",
	Long: `Fetches the catalog list and stores the detail of each problem missing from
the local database. Problems already stored are skipped, so an interrupted run
can simply be started again.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noLock, _ := cmd.Flags().GetBool("no-lock")
		s, err := openStores(cmd.Context(), !noLock)
		if err != nil {
			return err
		}
		defer s.Close()

		summary, err := newJobs(s, nil, newCatalogIngest(s)).RunCatalog(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Register recently accepted submissions with the study service",
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetString("remote")
		local, _ := cmd.Flags().GetString("local")
		noLock, _ := cmd.Flags().GetBool("no-lock")
		if (remote == "" && cfg.Sync.RemoteUsername == "") || (local == "" && cfg.Sync.LocalUsername == "") {
			return fmt.Errorf("set --remote and --local or sync.remote_username and sync.local_username")
		}

		s, err := openStores(cmd.Context(), !noLock)
		if err != nil {
			return err
		}
		defer s.Close()

		submissions, err := newSubmissionSync(s)
		if err != nil {
			return err
		}
		summary, err := newJobs(s, submissions, nil).RunSubmissionsFor(cmd.Context(), remote, local)
		if err != nil {
			return err
		}
		return printJSON(summary)
	},
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(b))
	return nil
}

func init() {
	ingestCmd.Flags().Bool("no-lock", false, "Run without the Redis single-run lock")

	syncCmd.Flags().String("remote", "", "LeetCode username (overrides sync.remote_username)")
	syncCmd.Flags().String("local", "", "Local username (overrides sync.local_username)")
	syncCmd.Flags().Bool("no-lock", false, "Run without the Redis lock and high-water mark")

	rootCmd.AddCommand(schemaCmd, ingestCmd, syncCmd)
}
