// Command budget-agent runs the daily budget tracking loop: it ingests bank
// statement emails into the budget spreadsheet, refreshes the dashboard and
// sends spending alerts over Telegram.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/jwojci/budget-agent/pkg/alert/telegram"
	"github.com/jwojci/budget-agent/pkg/archive"
	"github.com/jwojci/budget-agent/pkg/client"
	"github.com/jwojci/budget-agent/pkg/config"
	"github.com/jwojci/budget-agent/pkg/dashboard"
	"github.com/jwojci/budget-agent/pkg/logging"
	"github.com/jwojci/budget-agent/pkg/orchestrator"
	"github.com/jwojci/budget-agent/pkg/parser"
	"github.com/jwojci/budget-agent/pkg/parser/mbank"
	gmailsource "github.com/jwojci/budget-agent/pkg/source/gmail"
	sheetsstore "github.com/jwojci/budget-agent/pkg/store/sheets"
)

func main() {
	if err := run(); err != nil {
		slog.Error("budget-agent failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	logger := logging.Setup(logging.FromEnv())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	httpClient, err := client.New(
		cfg.CredentialsFile,
		client.DefaultTokenFile,
		gmail.GmailReadonlyScope,
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return fmt.Errorf("creating google client: %w", err)
	}

	store, err := sheetsstore.New(httpClient, sheetsstore.Config{
		SpreadsheetID:    cfg.SpreadsheetID,
		IncomeNamedRange: cfg.IncomeNamedRange,
	}, logger.With("component", "sheets_store"))
	if err != nil {
		return fmt.Errorf("creating sheets store: %w", err)
	}

	source, err := gmailsource.New(httpClient, logger.With("component", "gmail_source"))
	if err != nil {
		return fmt.Errorf("creating gmail source: %w", err)
	}

	sink, err := telegram.New(cfg.TelegramBotToken, cfg.TelegramChatID, logger.With("component", "telegram_sink"))
	if err != nil {
		return fmt.Errorf("creating telegram sink: %w", err)
	}

	agent := orchestrator.New(
		cfg,
		store,
		source,
		sink,
		parser.NewRegistry(mbank.New()),
		dashboard.NewUpdater(store, cfg.BudgetSheet, logger.With("component", "dashboard")),
		archive.New(store, cfg.HistorySheet, logger.With("component", "archiver")),
		loc,
		logger.With("component", "orchestrator"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting budget-agent", "run_interval", cfg.RunInterval)

	runOnce := func() {
		if err := agent.RunDaily(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("daily run failed", "error", err)
			if sendErr := sink.Send(ctx, "Critical error: the daily budget run failed. Check the logs."); sendErr != nil {
				logger.Error("failed to send failure alert", "error", sendErr)
			}
		}
	}

	runOnce()

	ticker := time.NewTicker(cfg.RunInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("budget-agent stopped")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

func loadConfig() (config.Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return config.Config{}, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := config.Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return config.Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
