package classifier

import (
	"testing"

	"github.com/jwojci/budget-agent/pkg/api"
)

const dateKey = "2025-06-18"

func classifyOne(t *testing.T, desc string, rules []api.CategoryRule) ([]api.Transaction, []string) {
	t.Helper()
	records := []api.RawRecord{{Time: "12:30:45", Description: desc}}
	rows, keywords, err := Classify(records, dateKey, map[string]struct{}{}, rules)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	return rows, keywords
}

func TestClassify_CardAuthorization(t *testing.T) {
	desc := "mBank: Autoryzacja karty nr 1234:SuperMart. Kwota: 45,50 PLN. Dostepne: 120,00 PLN"

	rows, keywords := classifyOne(t, desc, nil)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	tx := rows[0]
	if tx.Expense != 45.50 {
		t.Errorf("expense: got %v, want 45.50", tx.Expense)
	}
	if tx.Income != 0 {
		t.Errorf("income: got %v, want 0", tx.Income)
	}
	if tx.Balance != 120.00 {
		t.Errorf("balance: got %v, want 120.00", tx.Balance)
	}
	if tx.Category != api.CategoryOther {
		t.Errorf("category: got %q, want %q", tx.Category, api.CategoryOther)
	}
	if tx.Type != api.TypeUnclassified {
		t.Errorf("type: got %q, want %q", tx.Type, api.TypeUnclassified)
	}
	if tx.Date.Format(api.DateFormat) != dateKey {
		t.Errorf("date: got %s, want %s", tx.Date.Format(api.DateFormat), dateKey)
	}
	if len(keywords) != 1 || keywords[0] != "SuperMart" {
		t.Errorf("new keywords: got %v, want [SuperMart]", keywords)
	}
}

func TestClassify_IncomingTransfer(t *testing.T) {
	desc := "mBank: Przelew przychodzacy z rach. 12 od JAN KOWALSKI; kwota 2500,00 PLN; Dostepne: 3000,00 PLN"

	rows, _ := classifyOne(t, desc, nil)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	tx := rows[0]
	if tx.Income != 2500.00 {
		t.Errorf("income: got %v, want 2500.00", tx.Income)
	}
	if tx.Expense != 0 {
		t.Errorf("expense: got %v, want 0", tx.Expense)
	}
	if tx.Description != "Income: JAN KOWALSKI" {
		t.Errorf("description: got %q, want %q", tx.Description, "Income: JAN KOWALSKI")
	}
	if tx.Balance != 3000.00 {
		t.Errorf("balance: got %v, want 3000.00", tx.Balance)
	}
}

func TestClassify_OutgoingTransfer(t *testing.T) {
	desc := "mBank: Przelew wychodzacy na rach. 99; tytulem:CZYNSZ MIESZKANIE; kwota 1200,00 PLN; Dost. 1800,00"
	rules := []api.CategoryRule{{Keyword: "CZYNSZ MIESZKANIE", Category: "Housing", Type: api.TypeNeed}}

	rows, keywords := classifyOne(t, desc, rules)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	tx := rows[0]
	if tx.Expense != 1200.00 {
		t.Errorf("expense: got %v, want 1200.00", tx.Expense)
	}
	if tx.Balance != 1800.00 {
		t.Errorf("balance: got %v, want 1800.00", tx.Balance)
	}
	if tx.Category != "Housing" || tx.Type != api.TypeNeed {
		t.Errorf("category/type: got %q/%q, want Housing/Need", tx.Category, tx.Type)
	}
	if len(keywords) != 0 {
		t.Errorf("expected no new keywords, got %v", keywords)
	}
}

func TestClassify_SettlementRecordDropped(t *testing.T) {
	desc := "mBank: Obciazenie rach. 1234. Kwota: 45,50 PLN. Dostepne: 120,00 PLN"

	rows, keywords := classifyOne(t, desc, nil)

	if len(rows) != 0 {
		t.Errorf("settlement record emitted rows: %v", rows)
	}
	if len(keywords) != 0 {
		t.Errorf("settlement record emitted keywords: %v", keywords)
	}
}

func TestClassify_NoiseRecordDiscarded(t *testing.T) {
	rows, keywords := classifyOne(t, "mBank: Zmiana limitu karty zostala wykonana", nil)

	if len(rows) != 0 || len(keywords) != 0 {
		t.Errorf("noise record not discarded: rows=%v keywords=%v", rows, keywords)
	}
}

func TestClassify_Idempotence(t *testing.T) {
	records := []api.RawRecord{
		{Time: "12:00:00", Description: "mBank: Autoryzacja karty nr 1:SHOP. Kwota: 10,00 PLN"},
	}
	existing := map[string]struct{}{dateKey: {}}

	for i := 0; i < 2; i++ {
		rows, keywords, err := Classify(records, dateKey, existing, nil)
		if err != nil {
			t.Fatalf("Classify returned error: %v", err)
		}
		if len(rows) != 0 || len(keywords) != 0 {
			t.Errorf("run %d: already-processed statement produced output: rows=%v keywords=%v", i, rows, keywords)
		}
	}
}

func TestClassify_ExactMatchIsCaseInsensitive(t *testing.T) {
	desc := "mBank: Autoryzacja karty nr 1234:BIEDRONKA. Kwota: 22,10 PLN"
	rules := []api.CategoryRule{
		{Keyword: "zabka", Category: "Snacks", Type: api.TypeWant},
		{Keyword: "biedronka", Category: "Groceries", Type: api.TypeNeed},
	}

	rows, keywords := classifyOne(t, desc, rules)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Category != "Groceries" || rows[0].Type != api.TypeNeed {
		t.Errorf("got %q/%q, want Groceries/Need", rows[0].Category, rows[0].Type)
	}
	if len(keywords) != 0 {
		t.Errorf("expected no new keywords, got %v", keywords)
	}
}

func TestClassify_SubstringFallback(t *testing.T) {
	tests := []struct {
		name  string
		desc  string
		rules []api.CategoryRule
		want  string
	}{
		{
			name:  "rule keyword inside extracted keyword",
			desc:  "mBank: Autoryzacja karty nr 1:SUPERMARKET LIDL 123. Kwota: 80,00 PLN",
			rules: []api.CategoryRule{{Keyword: "lidl", Category: "Groceries", Type: api.TypeNeed}},
			want:  "Groceries",
		},
		{
			name:  "rule keyword inside raw description",
			desc:  "mBank: Przelew wychodzacy; tytulem:rachunek za prad; kwota 150,00 PLN",
			rules: []api.CategoryRule{{Keyword: "prad", Category: "Utilities", Type: api.TypeNeed}},
			want:  "Utilities",
		},
		{
			name: "first rule in input order wins",
			desc: "mBank: Autoryzacja karty nr 1:LIDLMARKET. Kwota: 80,00 PLN",
			rules: []api.CategoryRule{
				{Keyword: "lidl", Category: "Groceries", Type: api.TypeNeed},
				{Keyword: "market", Category: "Shopping", Type: api.TypeWant},
			},
			want: "Groceries",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rows, _ := classifyOne(t, tc.desc, tc.rules)
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			if rows[0].Category != tc.want {
				t.Errorf("category: got %q, want %q", rows[0].Category, tc.want)
			}
		})
	}
}

func TestClassify_ExpenseIncomeExclusive(t *testing.T) {
	records := []api.RawRecord{
		{Time: "08:00:00", Description: "mBank: Autoryzacja karty nr 1:SHOP A. Kwota: 10,00 PLN"},
		{Time: "09:00:00", Description: "mBank: Przelew przychodzacy od FIRMA; kwota 5000,00 PLN;"},
		{Time: "10:00:00", Description: "mBank: Przelew wychodzacy; tytulem:OPLATA; kwota 99,99 PLN"},
		{Time: "11:00:00", Description: "mBank: powiadomienie bez kwoty"},
	}

	rows, _, err := Classify(records, dateKey, map[string]struct{}{}, nil)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for _, tx := range rows {
		expensePositive := tx.Expense > 0
		incomePositive := tx.Income > 0
		if expensePositive == incomePositive {
			t.Errorf("row %q violates expense XOR income: expense=%v income=%v", tx.Description, tx.Expense, tx.Income)
		}
	}
}

func TestClassify_InvalidDateKey(t *testing.T) {
	records := []api.RawRecord{{Time: "08:00:00", Description: "whatever"}}
	if _, _, err := Classify(records, "not-a-date", map[string]struct{}{}, nil); err == nil {
		t.Fatal("expected error for invalid date key")
	}
}

func TestExtractKeyword_Cleaning(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"mBank: Autoryzacja karty nr 1:PAYPAL /5676575/. Kwota: 10,00 PLN", "PAYPAL"},
		{"mBank: Autoryzacja karty nr 1:ZABKA K.1 245. Kwota: 10,00 PLN", "ZABKA"},
		{"mBank: Autoryzacja karty nr 1:- BIEDRONKA. Kwota: 10,00 PLN", "BIEDRONKA"},
		{"mBank: Autoryzacja karty nr 1:ALLEGRO... . Kwota: 10,00 PLN", "ALLEGRO"},
		{"mBank: Przelew wychodzacy; tytulem:CZYNSZ; kwota 10,00 PLN", "CZYNSZ"},
	}

	for _, tc := range tests {
		if got := extractKeyword(tc.desc); got != tc.want {
			t.Errorf("extractKeyword(%q): got %q, want %q", tc.desc, got, tc.want)
		}
	}
}

func TestClassify_DeterministicKeywordOrder(t *testing.T) {
	records := []api.RawRecord{
		{Time: "08:00:00", Description: "mBank: Autoryzacja karty nr 1:ZULU SHOP. Kwota: 10,00 PLN"},
		{Time: "09:00:00", Description: "mBank: Autoryzacja karty nr 1:ALPHA MART. Kwota: 20,00 PLN"},
	}

	_, keywords, err := Classify(records, dateKey, map[string]struct{}{}, nil)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if len(keywords) != 2 || keywords[0] != "ALPHA MART" || keywords[1] != "ZULU SHOP" {
		t.Errorf("keywords not sorted: %v", keywords)
	}
}
