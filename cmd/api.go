package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/planbridge/config"
	"example.com/planbridge/internal/api"
	"example.com/planbridge/internal/database"
	"example.com/planbridge/internal/models"
	"example.com/planbridge/internal/store"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server that exchanges planning documents with the planner`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, closeDB, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	server := api.NewServer(cfg, st)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get DB instance")
	}
	if err := models.SetupModels(gormDB); err != nil {
		return nil, nil, errors.Wrap(err, "failed to run migrations")
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
	return store.NewGorm(gormDB), closeDB, nil
}
