// Package orchestrator sequences the daily budget run: statement ingestion,
// monthly archiving, anomaly alerts and the dashboard update.
package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/archive"
	"github.com/jwojci/budget-agent/pkg/classifier"
	"github.com/jwojci/budget-agent/pkg/config"
	"github.com/jwojci/budget-agent/pkg/dataset"
	"github.com/jwojci/budget-agent/pkg/metrics"
	"github.com/jwojci/budget-agent/pkg/parser"
)

// Store is the spreadsheet surface the orchestrator works against.
type Store interface {
	api.TransactionStore
	EnsureHeader(ctx context.Context, sheet string, header []string) error
	MonthlyIncome(ctx context.Context) (float64, error)
}

// DashboardUpdater renders the dashboard sheet from a budget snapshot.
type DashboardUpdater interface {
	Update(ctx context.Context, snap *metrics.Snapshot, rules []api.CategoryRule, txs []api.Transaction, now time.Time) error
}

// Archiver archives the previous month's summary.
type Archiver interface {
	Run(ctx context.Context, txs []api.Transaction, monthlyIncome float64, rules []api.CategoryRule, now time.Time) (*archive.Summary, error)
}

// Agent wires the collaborators around the core pipeline. Each run fetches a
// snapshot, invokes the pure core functions and persists the result; the
// agent holds no state between runs.
type Agent struct {
	cfg       config.Config
	store     Store
	source    api.StatementSource
	sink      api.AlertSink
	registry  *parser.Registry
	dashboard DashboardUpdater
	archiver  Archiver
	loc       *time.Location
	logger    *slog.Logger
}

// New creates the daily run orchestrator.
func New(cfg config.Config, store Store, source api.StatementSource, sink api.AlertSink, registry *parser.Registry, dash DashboardUpdater, archiver Archiver, loc *time.Location, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		cfg:       cfg,
		store:     store,
		source:    source,
		sink:      sink,
		registry:  registry,
		dashboard: dash,
		archiver:  archiver,
		loc:       loc,
		logger:    logger,
	}
}

// RunDaily executes one scheduled run.
func (a *Agent) RunDaily(ctx context.Context) error {
	now := time.Now().In(a.loc)
	a.logger.Info("starting daily run", "date", now.Format(api.DateFormat))

	if err := a.store.EnsureHeader(ctx, a.cfg.ExpensesSheet, api.ExpenseHeader); err != nil {
		return fmt.Errorf("checking expenses header: %w", err)
	}

	if err := a.runMonthlyArchive(ctx, now); err != nil {
		// Archiving failure should not block statement ingestion.
		a.logger.Error("monthly archive failed", "error", err)
	}

	if err := a.ProcessStatements(ctx, now); err != nil {
		return fmt.Errorf("processing statements: %w", err)
	}

	if err := a.UpdateDashboard(ctx, now); err != nil {
		return fmt.Errorf("updating dashboard: %w", err)
	}

	a.logger.Info("daily run finished")
	return nil
}

// ProcessStatements fetches this month's statement emails, classifies their
// transactions and appends new rows and unseen keywords to the store.
func (a *Agent) ProcessStatements(ctx context.Context, now time.Time) error {
	stmtParser, err := a.registry.Resolve(a.cfg.EmailSender)
	if err != nil {
		// Configuration gap: notify and carry on with the rest of the run.
		a.logger.Error("no parser for configured sender", "sender", a.cfg.EmailSender)
		a.notify(ctx, fmt.Sprintf("Parser error: no parser found for sender %q.", a.cfg.EmailSender))
		return nil
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	ids, err := a.source.ListMessageIDs(ctx, a.cfg.EmailSender, monthStart)
	if err != nil {
		return fmt.Errorf("listing statement emails: %w", err)
	}

	dateValues, err := a.store.GetColumnValues(ctx, a.cfg.ExpensesSheet, api.DateColumn)
	if err != nil {
		return fmt.Errorf("reading processed dates: %w", err)
	}
	existingDates := make(map[string]struct{}, len(dateValues))
	if len(dateValues) > 1 {
		for _, d := range dateValues[1:] { // skip the header cell
			existingDates[d] = struct{}{}
		}
	}

	ruleRecords, err := a.store.GetAllRecords(ctx, a.cfg.CategoriesSheet)
	if err != nil {
		return fmt.Errorf("reading category rules: %w", err)
	}
	rules := dataset.RulesFromRecords(ruleRecords)
	knownKeywords := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		knownKeywords[strings.ToLower(rule.Keyword)] = struct{}{}
	}

	var newRows []api.Transaction
	var newKeywords []string

	// Oldest first, so rows land in chronological order.
	for i := len(ids) - 1; i >= 0; i-- {
		statement, err := a.source.FetchStatement(ctx, ids[i])
		if err != nil {
			a.logger.Error("failed to fetch statement", "message_id", ids[i], "error", err)
			continue
		}
		if statement == nil {
			continue
		}

		records, err := stmtParser.Parse(bytes.NewReader(statement.HTML))
		if err != nil {
			a.logger.Error("malformed statement", "date_key", statement.DateKey, "error", err)
			continue
		}

		rows, keywords, err := classifier.Classify(records, statement.DateKey, existingDates, rules)
		if err != nil {
			a.logger.Error("failed to classify statement", "date_key", statement.DateKey, "error", err)
			continue
		}

		// A date key is processed at most once, also within this batch.
		existingDates[statement.DateKey] = struct{}{}
		newRows = append(newRows, rows...)
		newKeywords = append(newKeywords, keywords...)
	}

	if len(newRows) > 0 {
		rows := make([][]any, 0, len(newRows))
		for _, t := range newRows {
			rows = append(rows, t.Row())
		}
		if err := a.store.AppendRows(ctx, a.cfg.ExpensesSheet, rows); err != nil {
			return fmt.Errorf("appending transactions: %w", err)
		}
		a.notify(ctx, fmt.Sprintf("%d new transactions saved.", len(newRows)))
	}

	var trulyNew []string
	seen := make(map[string]struct{})
	for _, kw := range newKeywords {
		lower := strings.ToLower(kw)
		if _, known := knownKeywords[lower]; known {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		trulyNew = append(trulyNew, kw)
	}
	if len(trulyNew) > 0 {
		rows := make([][]any, 0, len(trulyNew))
		for _, kw := range trulyNew {
			rows = append(rows, []any{kw, "", ""})
		}
		if err := a.store.AppendRows(ctx, a.cfg.CategoriesSheet, rows); err != nil {
			return fmt.Errorf("appending new keywords: %w", err)
		}
		a.notify(ctx, "New keywords found, please categorize:\n- "+strings.Join(trulyNew, "\n- "))
	}

	a.logger.Info("statement processing complete", "new_rows", len(newRows), "new_keywords", len(trulyNew))
	return nil
}

// UpdateDashboard recomputes the budget snapshot, sends anomaly alerts and
// rewrites the dashboard sheet.
func (a *Agent) UpdateDashboard(ctx context.Context, now time.Time) error {
	records, err := a.store.GetAllRecords(ctx, a.cfg.ExpensesSheet)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	txs := dataset.FromRecords(records)
	if len(txs) == 0 {
		a.logger.Warn("no transactions, skipping dashboard update")
		return nil
	}

	alerts := metrics.DetectAnomalies(txs, now, metrics.Thresholds{
		MinWeeks:   a.cfg.MinWeeksData,
		MinSpend:   a.cfg.MinSpendAlert,
		Multiplier: a.cfg.AnomalyMultiplier,
	})
	for _, alert := range alerts {
		a.logger.Warn("spending anomaly detected",
			"category", alert.Category,
			"current", alert.CurrentSpend,
			"average", alert.AverageSpend,
		)
		text := fmt.Sprintf(
			"*Spending Alert*\nYour spending in the *%s* category this week is `%.2f PLN`.\nThis is significantly higher than your weekly average of `%.2f PLN`.",
			alert.Category, alert.CurrentSpend, alert.AverageSpend,
		)
		if err := a.sink.SendMarkdown(ctx, text); err != nil {
			a.logger.Error("failed to send anomaly alert", "error", err)
		}
	}

	income, err := a.store.MonthlyIncome(ctx)
	if err != nil {
		return fmt.Errorf("reading monthly income: %w", err)
	}

	snap, err := metrics.Compute(txs, income, now)
	if errors.Is(err, metrics.ErrIncomeNotSet) {
		a.logger.Warn("monthly income not configured, skipping dashboard update")
		a.notify(ctx, "Monthly income is not set. Enter it in the budget sheet to enable the dashboard.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("computing budget metrics: %w", err)
	}

	ruleRecords, err := a.store.GetAllRecords(ctx, a.cfg.CategoriesSheet)
	if err != nil {
		return fmt.Errorf("reading category rules: %w", err)
	}
	rules := dataset.RulesFromRecords(ruleRecords)

	if err := a.dashboard.Update(ctx, snap, rules, txs, now); err != nil {
		return err
	}

	summary := fmt.Sprintf(
		"*Dashboard updated.*\n\nWeekly remaining: *%.2f PLN*\nSafe to spend today: *%.2f PLN*",
		snap.RemainingWeeklyTarget, snap.SafeToSpendToday,
	)
	if err := a.sink.SendMarkdown(ctx, summary); err != nil {
		a.logger.Error("failed to send run summary", "error", err)
	}

	return nil
}

// runMonthlyArchive archives the previous month during the first days of a
// new month.
func (a *Agent) runMonthlyArchive(ctx context.Context, now time.Time) error {
	if now.Day() > a.cfg.ArchiveDays {
		return nil
	}

	records, err := a.store.GetAllRecords(ctx, a.cfg.ExpensesSheet)
	if err != nil {
		return fmt.Errorf("loading transactions: %w", err)
	}
	txs := dataset.FromRecords(records)
	if len(txs) == 0 {
		return nil
	}

	income, err := a.store.MonthlyIncome(ctx)
	if err != nil {
		return fmt.Errorf("reading monthly income: %w", err)
	}

	ruleRecords, err := a.store.GetAllRecords(ctx, a.cfg.CategoriesSheet)
	if err != nil {
		return fmt.Errorf("reading category rules: %w", err)
	}

	summary, err := a.archiver.Run(ctx, txs, income, dataset.RulesFromRecords(ruleRecords), now)
	if err != nil {
		return err
	}
	if summary == nil {
		return nil
	}

	text := fmt.Sprintf(
		"*Monthly Summary: %s*\nTotal spent: `%.2f PLN`\nSavings: `%.2f PLN`\nNeeds: %.0f%%  Wants: %.0f%%",
		summary.Month, summary.TotalSpent, summary.BonusSavings,
		summary.NeedsPercent*100, summary.WantsPercent*100,
	)
	if err := a.sink.SendMarkdown(ctx, text); err != nil {
		a.logger.Error("failed to send monthly summary", "error", err)
	}
	return nil
}

// notify sends a plain message, logging delivery failures instead of
// failing the run.
func (a *Agent) notify(ctx context.Context, text string) {
	if err := a.sink.Send(ctx, text); err != nil {
		a.logger.Error("failed to send notification", "error", err)
	}
}
