package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"pdfdesk/internal/config"
	"pdfdesk/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "pdfdesk",
		Usage: "merge, split and convert PDF documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config",
				Value: "config.yml",
			},
			&cli.StringFlag{
				Name:  "env",
				Usage: "dotenv file with PDFDESK_* overrides",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP service",
				Action: serveAction,
			},
			{
				Name:      "merge",
				Usage:     "merge PDF files in the given order",
				ArgsUsage: "file.pdf [file.pdf...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output name without extension"},
					&cli.IntSliceFlag{Name: "separator", Usage: "start a new group after file i (0-based)"},
					&cli.BoolFlag{Name: "separate", Usage: "write one file per group"},
					&cli.StringFlag{Name: "dir", Usage: "destination directory", Value: "."},
				},
				Action: mergeAction,
			},
			{
				Name:      "split",
				Usage:     "split a PDF before the given pages",
				ArgsUsage: "file.pdf",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Usage: "base name of the parts"},
					&cli.IntSliceFlag{Name: "at", Usage: "1-based page that starts a new part"},
					&cli.StringFlag{Name: "dir", Usage: "destination directory", Value: "."},
				},
				Action: splitAction,
			},
			{
				Name:      "render",
				Usage:     "convert PDF pages to images",
				ArgsUsage: "file.pdf",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "from", Usage: "first page", Value: 1},
					&cli.IntFlag{Name: "to", Usage: "last page, 0 for the end"},
					&cli.StringFlag{Name: "quality", Usage: "medium, high or ultra", Value: "medium"},
					&cli.StringFlag{Name: "format", Usage: "png or jpg", Value: "png"},
					&cli.BoolFlag{Name: "folder", Usage: "bundle the images as a zip folder"},
					&cli.StringFlag{Name: "dir", Usage: "destination directory", Value: "."},
				},
				Action: renderAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("pdfdesk failed")
	}
}

// bootstrap loads .env, the config file and sets up the global logger.
func bootstrap(cmd *cli.Command) (config.Config, error) {
	if envFile := cmd.String("env"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	err = logger.Init(logger.Options{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return cfg, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
