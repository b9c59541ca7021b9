package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deppfellow/lead-intake/internal/config"
	"github.com/deppfellow/lead-intake/internal/database"
	"github.com/deppfellow/lead-intake/internal/handler"
	"github.com/deppfellow/lead-intake/internal/lib/email"
	"github.com/deppfellow/lead-intake/internal/lib/job"
	"github.com/deppfellow/lead-intake/internal/lib/storage"
	"github.com/deppfellow/lead-intake/internal/logger"
	"github.com/deppfellow/lead-intake/internal/repository"
	"github.com/deppfellow/lead-intake/internal/router"
	"github.com/deppfellow/lead-intake/internal/server"
	"github.com/deppfellow/lead-intake/internal/service"
	"github.com/spf13/cobra"
)

// DefaultContextTimeout bounds the graceful shutdown.
const DefaultContextTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the job workers and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg := config.MustLoadConfig()

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	if cfg.Primary.Env != "local" {
		if err := database.Migrate(ctx, &log, cfg); err != nil {
			log.Error().Err(err).Msg("failed to migrate database")
			return err
		}
	}

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize server")
		return err
	}

	// Connections are open from here on; setup errors must release them.
	abort := func(err error) error {
		_ = srv.Shutdown(context.Background())
		return err
	}

	files, err := storage.NewLocalStorage(cfg.Leads.MediaRoot)
	if err != nil {
		return abort(fmt.Errorf("failed to initialize media storage: %w", err))
	}

	mailer, err := email.NewClient(cfg, &log)
	if err != nil {
		return abort(fmt.Errorf("failed to initialize email client: %w", err))
	}

	repos := repository.NewRepositories(srv)

	srv.Job.InitHandlers(job.Dependencies{
		Leads:   repos.Leads,
		Mailer:  mailer,
		Storage: files,
		Limiter: job.NewRedisLimiter(srv.Redis, job.RateLimitPerMinute),
	})
	if err := srv.Job.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start job service")
		return abort(err)
	}

	services := service.NewServices(srv, repos, files)
	handlers := handler.NewHandlers(srv, services)
	r := router.NewRouter(srv, handlers, services)

	srv.SetupHTTPServer(r)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	runErr := awaitServer(ctx, serveErr)
	if runErr != nil {
		log.Error().Err(runErr).Msg("failed to start server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return errors.Join(runErr, err)
	}
	if runErr != nil {
		return runErr
	}

	log.Info().Msg("server exited properly")
	return nil
}

// awaitServer blocks until ctx is done or the server stops, returning the
// error the server stopped with.
func awaitServer(ctx context.Context, serveErr <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
