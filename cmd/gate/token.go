package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/httpapi"
)

// Tokens are signed out of band: there is no password store, so an admin
// mints tokens for applicants, reviewers, and other admins from the
// config's JWT secret and distributes them directly.
func newTokenCmd() *cobra.Command {
	var (
		configPath string
		email      string
		role       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configPath)
			if err != nil {
				return err
			}
			if cfg.HTTP.JWTSecret == "" {
				return fmt.Errorf("http.jwt_secret is not configured")
			}
			tok, err := httpapi.GenerateToken([]byte(cfg.HTTP.JWTSecret), email, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Gatehouse config file")
	cmd.Flags().StringVar(&email, "email", "", "subject email address")
	cmd.Flags().StringVar(&role, "role", httpapi.RoleApplicant, "role: applicant, reviewer, or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("email")
	return cmd
}
