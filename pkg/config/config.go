// Package config holds the application configuration loaded from
// environment variables.
package config

import (
	"time"

	"github.com/pkg/errors"
)

// Config is populated from environment variables via koanf.
type Config struct {
	// SpreadsheetID is the budget spreadsheet.
	// Environment variable: SPREADSHEET_ID
	SpreadsheetID string `koanf:"SPREADSHEET_ID"`

	// Sheet names within the spreadsheet.
	ExpensesSheet   string `koanf:"EXPENSES_SHEET"`
	CategoriesSheet string `koanf:"CATEGORIES_SHEET"`
	BudgetSheet     string `koanf:"BUDGET_SHEET"`
	HistorySheet    string `koanf:"HISTORY_SHEET"`

	// IncomeNamedRange is the named range carrying the monthly disposable
	// income.
	IncomeNamedRange string `koanf:"INCOME_NAMED_RANGE"`

	// EmailSender selects the statement parser.
	EmailSender string `koanf:"EMAIL_SENDER"`

	// CredentialsFile is the Google OAuth client secret JSON.
	CredentialsFile string `koanf:"CREDENTIALS_FILE"`

	TelegramBotToken string `koanf:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `koanf:"TELEGRAM_CHAT_ID"`

	// Timezone fixes all calendar math to one deployment time zone.
	Timezone string `koanf:"TIMEZONE"`

	// Anomaly detection thresholds.
	AnomalyMultiplier float64 `koanf:"ANOMALY_THRESHOLD"`
	MinSpendAlert     float64 `koanf:"MIN_SPEND_ALERT"`
	MinWeeksData      int     `koanf:"MIN_WEEKS_DATA"`

	// ArchiveDays is the first-N-days-of-month window during which the
	// previous month's summary may be archived.
	ArchiveDays int `koanf:"ARCHIVE_DAYS"`

	// RunInterval is the delay between scheduled daily runs.
	RunInterval time.Duration `koanf:"RUN_INTERVAL"`
}

// Default returns the configuration defaults; environment variables
// override them.
func Default() Config {
	return Config{
		ExpensesSheet:     "Sheet1",
		CategoriesSheet:   "Categories",
		BudgetSheet:       "Budget",
		HistorySheet:      "History",
		IncomeNamedRange:  "MonthlyIncome",
		EmailSender:       "mBank",
		CredentialsFile:   "credentials.json",
		Timezone:          "Europe/Warsaw",
		AnomalyMultiplier: 2.0,
		MinSpendAlert:     50.0,
		MinWeeksData:      4,
		ArchiveDays:       4,
		RunInterval:       24 * time.Hour,
	}
}

// Validate checks the required settings.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return errors.New("SPREADSHEET_ID is required")
	}
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required")
	}
	if c.EmailSender == "" {
		return errors.New("EMAIL_SENDER is required")
	}
	return nil
}
