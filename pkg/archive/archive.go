// Package archive writes the previous month's spending summary to the
// history sheet once per month.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/dataset"
)

// monthFormat keys archived months in the history sheet.
const monthFormat = "2006-01"

// Store is the subset of the spreadsheet store the archiver uses.
type Store interface {
	GetColumnValues(ctx context.Context, sheet string, col int) ([]string, error)
	AppendRows(ctx context.Context, sheet string, rows [][]any) error
}

// Summary is one archived month.
type Summary struct {
	Month        string
	TotalSpent   float64
	BonusSavings float64
	NeedsPercent float64
	WantsPercent float64
}

// Row returns the summary in the history sheet column order.
func (s Summary) Row() []any {
	return []any{s.Month, s.TotalSpent, s.BonusSavings, s.NeedsPercent, s.WantsPercent}
}

// Archiver appends monthly summaries to the history sheet.
type Archiver struct {
	store  Store
	sheet  string
	logger *slog.Logger
}

// New creates an archiver writing to the given history sheet.
func New(store Store, sheet string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, sheet: sheet, logger: logger}
}

// Run archives the previous month's summary if it is not archived yet.
// Returns nil when the month is already archived or has no transactions.
func (a *Archiver) Run(ctx context.Context, txs []api.Transaction, monthlyIncome float64, rules []api.CategoryRule, now time.Time) (*Summary, error) {
	previous := now.AddDate(0, 0, -now.Day()) // last day of the previous month
	month := previous.Format(monthFormat)

	archived, err := a.store.GetColumnValues(ctx, a.sheet, 1)
	if err != nil {
		return nil, fmt.Errorf("reading archived months: %w", err)
	}
	for _, m := range archived {
		if m == month {
			a.logger.Info("month already archived", "month", month)
			return nil, nil
		}
	}

	var monthTxs []api.Transaction
	for _, t := range txs {
		if t.Date.Year() == previous.Year() && t.Date.Month() == previous.Month() {
			monthTxs = append(monthTxs, t)
		}
	}
	if len(monthTxs) == 0 {
		a.logger.Info("no transactions to archive", "month", month)
		return nil, nil
	}

	totalSpent := dataset.SumExpense(monthTxs)
	needsPercent, wantsPercent := needsWantsSplit(monthTxs, rules)

	summary := &Summary{
		Month:        month,
		TotalSpent:   totalSpent,
		BonusSavings: monthlyIncome - totalSpent,
		NeedsPercent: needsPercent,
		WantsPercent: wantsPercent,
	}

	if err := a.store.AppendRows(ctx, a.sheet, [][]any{summary.Row()}); err != nil {
		return nil, fmt.Errorf("archiving month %s: %w", month, err)
	}

	a.logger.Info("archived monthly summary", "month", month, "total_spent", totalSpent)
	return summary, nil
}

// needsWantsSplit returns the Need and Want shares of a month's spend, with
// transaction types remapped through the current rules.
func needsWantsSplit(txs []api.Transaction, rules []api.CategoryRule) (needsPercent, wantsPercent float64) {
	categoryType := make(map[string]string)
	for _, rule := range rules {
		if rule.Type != "" {
			categoryType[rule.Category] = rule.Type
		}
	}

	needs, wants := 0.0, 0.0
	for _, t := range txs {
		switch categoryType[t.Category] {
		case api.TypeNeed:
			needs += t.Expense
		case api.TypeWant:
			wants += t.Expense
		}
	}
	if total := needs + wants; total > 0 {
		return needs / total, wants / total
	}
	return 0, 0
}
