package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/permit-dashboard-api/internal/api"
	"github.com/permit-dashboard-api/internal/config"
	"github.com/permit-dashboard-api/internal/database"
	"github.com/permit-dashboard-api/internal/repository"
	"github.com/permit-dashboard-api/internal/scheduler"
	"github.com/permit-dashboard-api/internal/service"
	"github.com/permit-dashboard-api/pkg/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "permit-dashboard",
	Short:         "Permit dashboard API: layouts, exports and admin console",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(false, func(app *app) error {
			return app.db.RunMigrations()
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(false, func(app *app) error {
			return app.db.MigrateDown()
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete exports older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(true, func(app *app) error {
			result, err := app.services.Cleanup.Run(cmd.Context(), service.SystemActor)
			if err != nil {
				return err
			}
			app.log.Info().
				Int("deleted", result.DeletedCount).
				Int("errors", len(result.Errors)).
				Msg("Cleanup finished")

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		})
	},
}

var etlCmd = &cobra.Command{
	Use:   "etl [file]",
	Short: "Import permits from a CSV file (defaults to PERMITS_SOURCE_PATH)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(true, func(app *app) error {
			path := app.cfg.Scheduler.PermitsSourcePath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no permits file given and PERMITS_SOURCE_PATH is not set")
			}

			result, err := app.services.ETL.ImportFile(cmd.Context(), path)
			if err != nil {
				return err
			}
			app.log.Info().
				Str("source", result.Source).
				Int("total", result.Total).
				Int("imported", result.Imported).
				Int("failed", result.Failed).
				Int64("duration_ms", result.DurationMs).
				Msg("Permits imported")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(etlCmd)
}

// app holds the dependencies shared by every command
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       *database.DB
	repos    *repository.Repositories
	services *service.Services
}

// withDatabase loads configuration, connects to the database and runs fn.
// When migrate is set the schema is brought up to date first.
func withDatabase(migrate bool, fn func(app *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to database")
		return err
	}
	defer db.Close()

	if migrate {
		if err := db.RunMigrations(); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return err
		}
	}

	repos := repository.New(db)
	err = fn(&app{
		cfg:      cfg,
		log:      log,
		db:       db,
		repos:    repos,
		services: service.NewServices(repos, cfg, log),
	})
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
	}
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	return withDatabase(true, func(app *app) error {
		cfg, log := app.cfg, app.log
		log.Info().Msg("Starting Permit Dashboard API server...")

		if err := os.MkdirAll(cfg.Export.Root, 0o750); err != nil {
			return fmt.Errorf("failed to create export root: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Return jobs a previous process left processing to the queue
		if _, err := app.services.Job.RequeueInterrupted(ctx); err != nil {
			return err
		}

		// Start background job processor
		go app.services.Job.StartProcessor(ctx)
		log.Info().Msg("Background job processor started")

		var sched *scheduler.Scheduler
		if cfg.Scheduler.Enabled {
			sched = scheduler.New(cfg.Scheduler, app.services, app.repos.Audit, log)
			sched.Start(ctx)
		}

		// Initialize router
		router := api.NewRouter(app.services, cfg, log)

		// Create HTTP server
		srv := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.ReadTimeout,
		}

		// Start server in goroutine
		serveErr := make(chan error, 1)
		go func() {
			log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-serveErr:
			log.Error().Err(err).Msg("Server failed")
			return err
		}
		log.Info().Msg("Shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		// Stop background work before the database closes
		if sched != nil {
			sched.Stop()
		}
		app.services.Job.StopProcessor()
		cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}

		log.Info().Msg("Server exited gracefully")
		return nil
	})
}
