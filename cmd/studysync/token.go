package main

import (
	"fmt"
	"time"

	"study_sync/internal/common/security"
	"study_sync/internal/domain/model"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the ops API",
	Long: `Signs a token with server.admin_secret (or study.jwt_secret) that the ops
API accepts. Sync triggers require --role admin.

Example:
  studysync token --subject ops --role admin --ttl 1h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if role != model.RoleAdmin && role != model.RoleUser {
			return fmt.Errorf("role must be %q or %q", model.RoleAdmin, model.RoleUser)
		}
		if cfg.AdminKey() == "" {
			return fmt.Errorf("server.admin_secret or study.jwt_secret must be set")
		}

		token, err := security.NewTokenIssuer(cfg.AdminKey(), ttl).GenerateToken(subject, role)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("subject", "ops", "Value of the user_id claim")
	tokenCmd.Flags().String("role", model.RoleAdmin, "Role claim (admin or user)")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
