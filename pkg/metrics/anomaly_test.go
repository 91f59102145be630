package metrics

import (
	"testing"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
)

var defaultThresholds = Thresholds{MinWeeks: 4, MinSpend: 50, Multiplier: 2}

func categoryExpense(date, category string, amount float64) api.Transaction {
	d, err := time.Parse(api.DateFormat, date)
	if err != nil {
		panic(err)
	}
	return api.Transaction{Expense: amount, Date: d, Category: category}
}

// groceriesHistory covers the four ISO weeks preceding the week of
// 2025-06-18, averaging 87.50 per week.
func groceriesHistory() []api.Transaction {
	return []api.Transaction{
		categoryExpense("2025-05-19", "Groceries", 80),
		categoryExpense("2025-05-26", "Groceries", 90),
		categoryExpense("2025-06-02", "Groceries", 85),
		categoryExpense("2025-06-09", "Groceries", 95),
	}
}

func TestDetectAnomalies_Alerts(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	txs := append(groceriesHistory(), categoryExpense("2025-06-16", "Groceries", 200))

	alerts := DetectAnomalies(txs, now, defaultThresholds)

	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d: %v", len(alerts), alerts)
	}
	alert := alerts[0]
	if alert.Category != "Groceries" {
		t.Errorf("category: got %q, want Groceries", alert.Category)
	}
	if alert.CurrentSpend != 200 {
		t.Errorf("current spend: got %v, want 200", alert.CurrentSpend)
	}
	if alert.AverageSpend != 87.5 {
		t.Errorf("average spend: got %v, want 87.5", alert.AverageSpend)
	}
}

func TestDetectAnomalies_BelowMultiplier(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	// 170 < 87.5 * 2, so no alert even though the floor is cleared.
	txs := append(groceriesHistory(), categoryExpense("2025-06-16", "Groceries", 170))

	if alerts := DetectAnomalies(txs, now, defaultThresholds); len(alerts) != 0 {
		t.Errorf("expected no alerts, got %v", alerts)
	}
}

func TestDetectAnomalies_MinSpendFloor(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	// Average of 5 per week; 20 is four times that but under the 50 floor.
	txs := []api.Transaction{
		categoryExpense("2025-05-19", "Snacks", 5),
		categoryExpense("2025-05-26", "Snacks", 5),
		categoryExpense("2025-06-02", "Snacks", 5),
		categoryExpense("2025-06-09", "Snacks", 5),
		categoryExpense("2025-06-16", "Snacks", 20),
	}

	if alerts := DetectAnomalies(txs, now, defaultThresholds); len(alerts) != 0 {
		t.Errorf("expected no alerts below the spend floor, got %v", alerts)
	}
}

func TestDetectAnomalies_NotEnoughHistory(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	// Only three historical weeks with the default four-week minimum.
	txs := []api.Transaction{
		categoryExpense("2025-05-26", "Groceries", 80),
		categoryExpense("2025-06-02", "Groceries", 90),
		categoryExpense("2025-06-09", "Groceries", 85),
		categoryExpense("2025-06-16", "Groceries", 500),
	}

	if alerts := DetectAnomalies(txs, now, defaultThresholds); len(alerts) != 0 {
		t.Errorf("expected no alerts without enough history, got %v", alerts)
	}
}

func TestDetectAnomalies_CurrentWeekExcludedFromBaseline(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	// Two current-week rows sum into the current total, not the baseline.
	txs := append(groceriesHistory(),
		categoryExpense("2025-06-16", "Groceries", 120),
		categoryExpense("2025-06-18", "Groceries", 80),
	)

	alerts := DetectAnomalies(txs, now, defaultThresholds)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].CurrentSpend != 200 {
		t.Errorf("current spend: got %v, want 200", alerts[0].CurrentSpend)
	}
	if alerts[0].AverageSpend != 87.5 {
		t.Errorf("average spend: got %v, want 87.5", alerts[0].AverageSpend)
	}
}

func TestDetectAnomalies_IncomeRowsIgnored(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	txs := append(groceriesHistory(),
		categoryExpense("2025-06-16", "Groceries", 200),
		api.Transaction{Income: 5000, Date: time.Date(2025, time.June, 16, 0, 0, 0, 0, time.UTC), Category: "Groceries"},
	)

	alerts := DetectAnomalies(txs, now, defaultThresholds)
	if len(alerts) != 1 || alerts[0].CurrentSpend != 200 {
		t.Errorf("income row leaked into totals: %v", alerts)
	}
}

func TestDetectAnomalies_Empty(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	if alerts := DetectAnomalies(nil, now, defaultThresholds); alerts != nil {
		t.Errorf("expected nil for empty input, got %v", alerts)
	}
}

func TestDetectAnomalies_SortedByCategory(t *testing.T) {
	now := time.Date(2025, time.June, 18, 12, 0, 0, 0, time.UTC)
	history := func(category string) []api.Transaction {
		return []api.Transaction{
			categoryExpense("2025-05-19", category, 30),
			categoryExpense("2025-05-26", category, 30),
			categoryExpense("2025-06-02", category, 30),
			categoryExpense("2025-06-09", category, 30),
		}
	}
	var txs []api.Transaction
	txs = append(txs, history("Transport")...)
	txs = append(txs, history("Dining")...)
	txs = append(txs, categoryExpense("2025-06-17", "Transport", 150))
	txs = append(txs, categoryExpense("2025-06-17", "Dining", 150))

	alerts := DetectAnomalies(txs, now, defaultThresholds)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %v", len(alerts), alerts)
	}
	if alerts[0].Category != "Dining" || alerts[1].Category != "Transport" {
		t.Errorf("alerts not sorted by category: %v", alerts)
	}
}
