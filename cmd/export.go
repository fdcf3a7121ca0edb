package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/planbridge/config"
	"example.com/planbridge/internal/export"
	"example.com/planbridge/internal/store"
)

var exportFlags struct {
	company  string
	mode     int
	timezone string
	delta    float64
	output   string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Generate a planning document",
	Long:  `Generate one planning document and write it to stdout or a file`,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.company, "company", "", "company to export (defaults to the configured one)")
	exportCmd.Flags().IntVar(&exportFlags.mode, "mode", export.ModeFull, "export mode: 0 connection test, 1 full, 2 infrequent data")
	exportCmd.Flags().StringVar(&exportFlags.timezone, "timezone", "", "timezone for dates in the document")
	exportCmd.Flags().Float64Var(&exportFlags.delta, "delta", 0, "lookback window in days for sales order changes")
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	var reader store.Reader
	if cfg.Source.URL != "" {
		reader = store.NewRemote(cfg.Source.URL, cfg.Source.Token)
	} else {
		st, closeDB, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeDB()
		reader = st
	}

	opts := export.Options{
		Company:  cfg.Export.Company,
		Mode:     exportFlags.mode,
		Timezone: cfg.Export.Timezone,
		Language: cfg.Export.Language,
		Delta:    cfg.Export.Delta,
	}
	if exportFlags.company != "" {
		opts.Company = exportFlags.company
	}
	if exportFlags.timezone != "" {
		opts.Timezone = exportFlags.timezone
	}
	if exportFlags.delta > 0 {
		opts.Delta = exportFlags.delta
	}

	out := os.Stdout
	if exportFlags.output != "" {
		f, err := os.Create(exportFlags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	return export.New(reader, log.Logger).Run(context.Background(), out, opts)
}
