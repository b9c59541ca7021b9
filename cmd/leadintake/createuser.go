package main

import (
	"fmt"

	"github.com/deppfellow/lead-intake/internal/config"
	"github.com/deppfellow/lead-intake/internal/database"
	"github.com/deppfellow/lead-intake/internal/logger"
	"github.com/deppfellow/lead-intake/internal/repository"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/service"
	"github.com/spf13/cobra"
)

func newCreateUserCommand() *cobra.Command {
	var username, emailAddress, password string

	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a staff user allowed to review leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.MustLoadConfig()

			loggerService := logger.NewLoggerService(cfg.Observability)
			defer loggerService.Shutdown()

			log := logger.NewLoggerWithService(cfg.Observability, loggerService)

			db, err := database.New(cfg, &log, loggerService)
			if err != nil {
				return err
			}
			defer db.Close()

			repos := repository.NewRepositories(&server.Server{Config: cfg, Logger: &log, DB: db})
			auth := service.NewAuthService(&log, repos.Users, repos.Tokens, cfg.Auth.MinPasswordLength)

			user, err := auth.CreateUser(cmd.Context(), username, emailAddress, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&emailAddress, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
