// Package dashboard builds the budget dashboard tables and writes them to
// the spreadsheet.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
	"github.com/jwojci/budget-agent/pkg/dataset"
	"github.com/jwojci/budget-agent/pkg/metrics"
)

// topMerchantCount limits the merchants table.
const topMerchantCount = 5

// Store is the subset of the spreadsheet store the updater writes through.
type Store interface {
	ClearSheet(ctx context.Context, sheet string) error
	UpdateCells(ctx context.Context, sheet, startCell string, values [][]any) error
}

// Updater renders the dashboard sheet from a budget snapshot.
type Updater struct {
	store  Store
	sheet  string
	logger *slog.Logger
}

// NewUpdater creates a dashboard updater writing to the given sheet.
func NewUpdater(store Store, sheet string, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{store: store, sheet: sheet, logger: logger}
}

// Update clears the dashboard sheet and writes the summary, daily breakdown,
// category, Needs/Wants and top merchants tables.
func (u *Updater) Update(ctx context.Context, snap *metrics.Snapshot, rules []api.CategoryRule, txs []api.Transaction, now time.Time) error {
	if err := u.store.ClearSheet(ctx, u.sheet); err != nil {
		return err
	}

	main := append(Summary(snap), DailyBreakdown(snap, now)...)
	if err := u.store.UpdateCells(ctx, u.sheet, "A1", main); err != nil {
		return err
	}

	categoryTable, needsWantsTable := CategoryBreakdown(snap.MonthToDate, rules)
	if err := u.store.UpdateCells(ctx, u.sheet, "E1", categoryTable); err != nil {
		return err
	}

	needsWantsRow := len(categoryTable) + 2
	if err := u.store.UpdateCells(ctx, u.sheet, fmt.Sprintf("E%d", needsWantsRow), needsWantsTable); err != nil {
		return err
	}

	merchantsRow := needsWantsRow + len(needsWantsTable) + 2
	if err := u.store.UpdateCells(ctx, u.sheet, fmt.Sprintf("E%d", merchantsRow), TopMerchantsTable(txs, topMerchantCount)); err != nil {
		return err
	}

	if latest := latestDate(txs); !latest.IsZero() {
		signature := "Last Updated from Data as of: " + latest.Format(api.DateFormat)
		if err := u.store.UpdateCells(ctx, u.sheet, "A20", [][]any{{signature}}); err != nil {
			return err
		}
	}

	u.logger.Info("dashboard updated", "sheet", u.sheet)
	return nil
}

// Summary builds the main Item/Value table of the dashboard.
func Summary(snap *metrics.Snapshot) [][]any {
	if snap == nil {
		return nil
	}
	return [][]any{
		{"Item", "Value"},
		{"Monthly Disposable Income", snap.MonthlyIncome},
		{"Target Weekly Budget", snap.TargetWeeklySpend},
		{"-", "-"},
		{"Spent This Week", snap.WeekToDateSpend},
		{"Remaining This Week (Target)", snap.RemainingWeeklyTarget},
		{"Average Daily Spending (This Week)", snap.AvgDailySpendThisWeek},
		{"Yesterday's Spending", snap.YesterdaySpend},
		{"On-Pace Savings This Month", snap.BonusSavings},
	}
}

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DailyBreakdown builds the per-day spending table for the current week.
// Past days show "-" in the safe-to-spend column; today and later show the
// current safe-to-spend figure.
func DailyBreakdown(snap *metrics.Snapshot, now time.Time) [][]any {
	if snap == nil {
		return nil
	}

	table := [][]any{{"Day", "Date", "Spent", "Safe to Spend Daily"}}
	weekStart := metrics.WeekStart(now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		spent := 0.0
		for _, t := range snap.WeekToDate {
			if t.Date.Year() == day.Year() && t.Date.YearDay() == day.YearDay() {
				spent += t.Expense
			}
		}
		safeDisplay := "-"
		if !day.Before(today) {
			safeDisplay = fmt.Sprintf("%.2f", snap.SafeToSpendToday)
		}
		table = append(table, []any{dayNames[i], day.Format(api.DateFormat), spent, safeDisplay})
	}

	return table
}

// CategoryBreakdown builds the per-category and Needs/Wants spending tables
// for the month to date. Each transaction's type is remapped through the
// current rules so later recategorizations take effect without rewriting
// stored rows.
func CategoryBreakdown(monthToDate []api.Transaction, rules []api.CategoryRule) (categoryTable, needsWantsTable [][]any) {
	categoryTable = [][]any{{"Category", "Spent", "%"}}
	needsWantsTable = [][]any{{"Needs vs. Wants", "Spent", "%"}}
	if len(monthToDate) == 0 {
		return categoryTable, needsWantsTable
	}

	categoryType := make(map[string]string)
	for _, rule := range rules {
		if rule.Type != "" {
			categoryType[rule.Category] = rule.Type
		}
	}

	total := dataset.SumExpense(monthToDate)
	for _, g := range dataset.GroupSumExpense(monthToDate, func(t api.Transaction) string { return t.Category }) {
		pct := 0.0
		if total > 0 {
			pct = g.Total / total
		}
		categoryTable = append(categoryTable, []any{g.Key, g.Total, pct})
	}

	needs, wants := 0.0, 0.0
	for _, t := range monthToDate {
		typ, ok := categoryType[t.Category]
		if !ok {
			typ = api.TypeUnclassified
		}
		switch typ {
		case api.TypeNeed:
			needs += t.Expense
		case api.TypeWant:
			wants += t.Expense
		}
	}
	if needsWants := needs + wants; needsWants > 0 {
		needsWantsTable = append(needsWantsTable,
			[]any{"Needs", needs, needs / needsWants},
			[]any{"Wants", wants, wants / needsWants},
		)
	}

	return categoryTable, needsWantsTable
}

// TopMerchantsTable builds the top merchants by spending table.
func TopMerchantsTable(txs []api.Transaction, n int) [][]any {
	table := [][]any{{"Top Merchants by Spending", "Spent", "Visits"}}
	for _, g := range dataset.TopMerchants(txs, n) {
		table = append(table, []any{g.Key, g.Total, g.Count})
	}
	return table
}

func latestDate(txs []api.Transaction) time.Time {
	var latest time.Time
	for _, t := range txs {
		if t.Date.After(latest) {
			latest = t.Date
		}
	}
	return latest
}
