package metrics

import (
	"sort"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
)

// Thresholds gates anomaly alerting. The floor and the multiplier must both
// be exceeded: a category with a near-zero historical average would trigger
// on any spend under multiplier-only logic.
type Thresholds struct {
	// MinWeeks is the number of historical weeks with data a category
	// needs before it can alert.
	MinWeeks int
	// MinSpend is the absolute floor the current week's spend must exceed.
	MinSpend float64
	// Multiplier scales the historical weekly average into the alert bound.
	Multiplier float64
}

// Alert reports a category whose current-week spend exceeds its historical
// weekly baseline.
type Alert struct {
	Category     string
	CurrentSpend float64
	AverageSpend float64
}

type weekKey struct {
	year     int
	week     int
	category string
}

// DetectAnomalies flags categories whose current ISO week spend exceeds both
// the absolute floor and a multiple of the category's historical weekly
// average. The baseline excludes the current week. Alerts are returned
// sorted by category; the order carries no meaning.
func DetectAnomalies(txs []api.Transaction, now time.Time, th Thresholds) []Alert {
	weeklyTotals := make(map[weekKey]float64)
	for _, t := range txs {
		if t.Expense <= 0 {
			continue
		}
		year, week := t.Date.ISOWeek()
		weeklyTotals[weekKey{year, week, t.Category}] += t.Expense
	}
	if len(weeklyTotals) == 0 {
		return nil
	}

	currentYear, currentWeek := now.ISOWeek()

	type stats struct {
		total float64
		weeks int
	}
	historical := make(map[string]stats)
	currentTotals := make(map[string]float64)

	for key, total := range weeklyTotals {
		if key.year == currentYear && key.week == currentWeek {
			currentTotals[key.category] = total
			continue
		}
		s := historical[key.category]
		s.total += total
		s.weeks++
		historical[key.category] = s
	}

	categories := make([]string, 0, len(currentTotals))
	for category := range currentTotals {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var alerts []Alert
	for _, category := range categories {
		s, ok := historical[category]
		if !ok || s.weeks < th.MinWeeks {
			continue
		}
		average := s.total / float64(s.weeks)
		current := currentTotals[category]
		if current > th.MinSpend && current > average*th.Multiplier {
			alerts = append(alerts, Alert{
				Category:     category,
				CurrentSpend: current,
				AverageSpend: average,
			})
		}
	}

	return alerts
}
