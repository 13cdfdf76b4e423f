package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"careline/internal/adapters/storage/postgres"
	"careline/internal/config"
	"careline/internal/platform/logger"
	"careline/internal/router"

	"github.com/spf13/cobra"
)

// @title Careline API
// @version 1.0
// @description API para equipos de cuidadores: pacientes, pautas de medicación, adherencia, caídas y auditoría.
// @BasePath /
func main() {
	root := &cobra.Command{
		Use:           "careline",
		Short:         "Seguimiento de medicación para equipos de cuidadores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log := logger.New(logger.Options{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				App:    cfg.AppName,
			})

			opts := router.Options{Cfg: cfg, Log: log}

			if cfg.DBDSN != "" {
				db, err := postgres.Open(cfg.DBDSN)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer db.Close()

				if err := postgres.Migrate(cmd.Context(), db); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				opts.DB = db
				log.Info().Msg("using postgres storage")
			} else {
				log.Warn().Msg("DATABASE_URL not set, using in-memory storage")
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           router.NewRouter(opts),
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       15 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("api listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Administra el esquema de la base de datos",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Aplica las migraciones pendientes",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openFromConfig()
				if err != nil {
					return err
				}
				defer db.Close()

				return postgres.Migrate(cmd.Context(), db)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Muestra migraciones aplicadas y pendientes",
			RunE: func(cmd *cobra.Command, args []string) error {
				db, err := openFromConfig()
				if err != nil {
					return err
				}
				defer db.Close()

				applied, pending, err := postgres.Status(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, a := range applied {
					fmt.Printf("applied  %d_%s (%s)\n", a.Version, a.Name, a.AppliedAt.Format(time.RFC3339))
				}
				for _, p := range pending {
					fmt.Printf("pending  %s\n", p)
				}
				if len(applied) == 0 && len(pending) == 0 {
					fmt.Println("no migrations defined")
				}
				return nil
			},
		},
	)
	return cmd
}

func openFromConfig() (*sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.DBDSN == "" {
		return nil, errors.New("DATABASE_URL is required for migrations")
	}
	return postgres.Open(cfg.DBDSN)
}
