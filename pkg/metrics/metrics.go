// Package metrics computes the proactive budget snapshot and weekly
// spending anomaly baselines from a transaction dataset.
package metrics

import (
	"errors"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
)

// ErrIncomeNotSet signals that the monthly disposable income is not
// configured. It is a user-action condition, not a system fault: callers
// should prompt for configuration instead of failing the run.
var ErrIncomeNotSet = errors.New("monthly disposable income is not set")

// Snapshot is the derived budget state for one instant. It is recomputed on
// every request and never stored.
type Snapshot struct {
	MonthlyIncome     float64
	DailyRate         float64
	TargetWeeklySpend float64

	MonthToDateSpend       float64
	WeekToDateSpend        float64
	RemainingMonthlyBudget float64
	RemainingWeeklyTarget  float64
	AvgDailySpendThisWeek  float64
	YesterdaySpend         float64
	BonusSavings           float64
	SafeToSpendToday       float64

	// Filtered sub-datasets reused by the dashboard table builders.
	MonthToDate []api.Transaction
	WeekToDate  []api.Transaction
}

// Compute derives the budget snapshot for the given instant. All calendar
// math runs in now's location; callers fix the deployment time zone once by
// passing now already converted.
//
// Returns ErrIncomeNotSet when monthlyIncome is zero — the system never
// divides by a zero income.
func Compute(txs []api.Transaction, monthlyIncome float64, now time.Time) (*Snapshot, error) {
	if monthlyIncome == 0 {
		return nil, ErrIncomeNotSet
	}

	daysInMonth := daysIn(now)
	dayOfMonth := now.Day()
	daysRemaining := daysInMonth - dayOfMonth + 1

	dailyRate := monthlyIncome / float64(daysInMonth)
	targetWeeklySpend := dailyRate * 7

	// Month-to-date deliberately spans the whole calendar month, including
	// future-dated rows: the category breakdown tables rely on it.
	var monthToDate []api.Transaction
	monthToDateSpend := 0.0
	for _, t := range txs {
		if t.Date.Year() == now.Year() && t.Date.Month() == now.Month() {
			monthToDate = append(monthToDate, t)
			monthToDateSpend += t.Expense
		}
	}

	weekStart := WeekStart(now)
	var weekToDate []api.Transaction
	weekToDateSpend := 0.0
	for _, t := range txs {
		if !t.Date.Before(weekStart) && !t.Date.After(now) {
			weekToDate = append(weekToDate, t)
			weekToDateSpend += t.Expense
		}
	}

	remainingMonthly := monthlyIncome - monthToDateSpend
	safeToSpendToday := 0.0
	if daysRemaining > 0 {
		safeToSpendToday = remainingMonthly / float64(daysRemaining)
	}

	avgDaily := 0.0
	if days := weekdayIndex(now) + 1; days > 0 {
		avgDaily = weekToDateSpend / float64(days)
	}

	yesterday := now.AddDate(0, 0, -1)
	yesterdaySpend := 0.0
	for _, t := range txs {
		if sameDay(t.Date, yesterday) {
			yesterdaySpend += t.Expense
		}
	}

	return &Snapshot{
		MonthlyIncome:          monthlyIncome,
		DailyRate:              dailyRate,
		TargetWeeklySpend:      targetWeeklySpend,
		MonthToDateSpend:       monthToDateSpend,
		WeekToDateSpend:        weekToDateSpend,
		RemainingMonthlyBudget: remainingMonthly,
		RemainingWeeklyTarget:  targetWeeklySpend - weekToDateSpend,
		AvgDailySpendThisWeek:  avgDaily,
		YesterdaySpend:         yesterdaySpend,
		// Pacing surplus against the flat daily rate. This intentionally
		// differs from the safe-to-spend pacing model.
		BonusSavings:     dailyRate*float64(dayOfMonth) - monthToDateSpend,
		SafeToSpendToday: safeToSpendToday,
		MonthToDate:      monthToDate,
		WeekToDate:       weekToDate,
	}, nil
}

// WeekStart returns Monday 00:00:00 of now's ISO week, in now's location.
func WeekStart(now time.Time) time.Time {
	monday := now.AddDate(0, 0, -weekdayIndex(now))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
}

// weekdayIndex maps Monday to 0 and Sunday to 6.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
