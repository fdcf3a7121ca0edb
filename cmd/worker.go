package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/planbridge/config"
	"example.com/planbridge/internal/export"
	"example.com/planbridge/internal/store"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker that periodically stages a snapshot of
the planning document, so a full export does not hit the database at
request time`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

	var reader store.Reader
	if cfg.Source.URL != "" {
		// Snapshots can read from a remote replica of the store.
		reader = store.NewRemote(cfg.Source.URL, cfg.Source.Token)
	} else {
		st, closeDB, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		reader = st
	}
	exporter := export.New(reader, log.Logger)

	g.Go(func() error {
		log.Info().Dur("interval", cfg.Worker.SnapshotInterval).Msg("Starting snapshot scheduler")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.SnapshotInterval),
			gocron.NewTask(func() {
				if err := writeSnapshot(ctx, cfg, exporter); err != nil {
					log.Error().Err(err).Msg("Failed to stage planning snapshot")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

// writeSnapshot stages one infrequent-data export in the spool
// directory. The file is written under a temporary name and renamed,
// so readers never see a half-written snapshot.
func writeSnapshot(ctx context.Context, cfg config.Config, exporter *export.Exporter) error {
	if err := os.MkdirAll(cfg.Export.SpoolDir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(cfg.Export.SpoolDir, "snapshot-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	err = exporter.Run(ctx, f, export.Options{
		Company:  cfg.Export.Company,
		Mode:     export.ModeInfrequent,
		Timezone: cfg.Export.Timezone,
		Language: cfg.Export.Language,
		Delta:    cfg.Export.Delta,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	target := filepath.Join(cfg.Export.SpoolDir, "snapshot.xml")
	if err := os.Rename(f.Name(), target); err != nil {
		return err
	}
	log.Info().Str("file", target).Msg("Staged planning snapshot")
	return nil
}
