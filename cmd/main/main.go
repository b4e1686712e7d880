package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"ymlfeed/exporter/internal/config"
	"ymlfeed/exporter/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ymlexport",
	Short: "Export a YML/XML product feed to a flat CSV file",
	Long: `ymlexport downloads a Yandex Market style YML catalog and writes one row
per offer, with the offer's category name resolved from the catalog's
category list and one column for every offer field seen in the feed.

Example Usage:
  ymlexport --url https://shop.example.com/market.yml --output items.csv
  ymlexport --config ./config.yaml --format xlsx --output items.xlsx`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ymlexport %s (%s)\n", version, runtime.Version())
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "path to a YAML config file (default ./config.yaml if present)")
	flags.String("url", "", "feed URL")
	flags.StringP("output", "o", "items.csv", "output file path")
	flags.String("format", "", "output format: csv or xlsx (default from the output extension)")
	flags.String("delimiter", ";", "CSV field delimiter")
	flags.Int("timeout", 60, "request timeout in seconds")
	flags.Bool("collect-pictures", false, "fill the pictures column from <picture> elements")
	flags.Bool("strip-html", false, "reduce HTML in field values to plain text")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging(cfg.Logging)
	log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer app.Close()

	summary, err := app.Run(ctx)
	if err != nil {
		return err
	}

	if summary.Skipped {
		log.Infof("Feed unchanged, %s left as is", summary.OutputPath)
		return nil
	}

	log.WithFields(log.Fields{
		"run_id":     summary.RunID,
		"offers":     summary.Offers,
		"categories": summary.Categories,
		"columns":    len(summary.Columns),
		"bytes":      summary.BytesRead,
	}).Infof("🎉 Export finished in %s", summary.Duration.Round(time.Millisecond))

	return nil
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}
