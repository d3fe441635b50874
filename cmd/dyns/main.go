package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/database64128/dyns-go/service"
	"github.com/database64128/dyns-go/tslog"
)

var (
	logNoColor bool
	logNoTime  bool
	logLevel   slog.Level
	confPath   string
)

func init() {
	flag.BoolVar(&logNoColor, "logNoColor", false, "Disable colors in log output")
	flag.BoolVar(&logNoTime, "logNoTime", false, "Disable timestamps in log output")
	flag.TextVar(&logLevel, "logLevel", slog.LevelInfo, "Log level")
	flag.StringVar(&confPath, "confPath", "/etc/dyns.toml", "Path to the configuration file (.toml, .json, .yaml)")
	flag.StringVar(&confPath, "c", "/etc/dyns.toml", "Alias for -confPath")
	flag.StringVar(&confPath, "config", "/etc/dyns.toml", "Alias for -confPath")
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logOpts := tslog.Options{
		Level:   logLevel,
		NoColor: logNoColor,
		NoTime:  logNoTime,
	}
	logger := tslog.New(logOpts)

	cfg, err := service.Load(confPath)
	if err != nil {
		logger.Error("Failed to load configuration",
			slog.String("path", confPath),
			tslog.Err(err),
		)
		os.Exit(1)
	}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			logger.Error("Failed to open log file",
				slog.String("path", cfg.LogFile),
				tslog.Err(err),
			)
			os.Exit(1)
		}

		logOpts.ErrorSink = f
		logger = tslog.New(logOpts)
	}

	if err := cfg.Run(ctx, logger); err != nil {
		logger.Error("Service stopped with error", tslog.Err(err))
		os.Exit(1)
	}
}
