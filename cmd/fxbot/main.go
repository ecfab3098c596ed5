package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/fxbot/config"
	"github.com/alejandrodnm/fxbot/internal/adapters/notify"
	"github.com/alejandrodnm/fxbot/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one tick per account and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug and print signal reasons")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	report := flag.Bool("report", false, "print stored portfolios and daily summaries and exit")
	days := flag.Int("days", 7, "days of history shown by -report")
	serve := flag.Bool("serve", false, "run the HTTP API alongside the trading loops")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("fxbot starting",
		"config", *configPath,
		"accounts", len(cfg.Accounts),
		"interval", cfg.TickInterval(),
		"strategy", cfg.Trading.Strategy,
		"once", *once,
		"serve", *serve,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(*verbose)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		if err := runReport(ctx, store, notifier, *days); err != nil {
			slog.Error("report failed", "err", err)
			os.Exit(1)
		}
		return
	}

	bot, err := newBot(ctx, cfg, store, notifier)
	if err != nil {
		slog.Error("failed to build bot", "err", err)
		os.Exit(1)
	}

	if *once {
		bot.tickOnce(ctx)
	} else if err := bot.run(ctx, *serve); err != nil {
		slog.Error("fxbot exited with error", "err", err)
		notifier.PrintSnapshots(bot.snapshots())
		os.Exit(1)
	}

	notifier.PrintSnapshots(bot.snapshots())
	slog.Info("fxbot stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
