package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"timed-quiz-service/internal/auth"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/infra/postgres"
)

// NewCreateAdminCmd bootstraps a superadmin account, which cannot be created over the API
// without one.
func NewCreateAdminCmd(configPath *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a superadmin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db := postgres.Open(cfg.Postgres.URL)
			defer db.Close()

			svc := auth.NewService(postgres.NewStore(db), auth.NewTokens(cfg.Auth.JWTSecret, tokenTTL(cfg)), logger)
			user, err := svc.Bootstrap(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			logger.Info("superadmin created", zap.Int64("user", user.ID), zap.String("username", user.Username))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "superadmin username")
	cmd.Flags().StringVar(&password, "password", "", "superadmin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
