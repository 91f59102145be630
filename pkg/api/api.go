// Package api defines the core domain types and collaborator interfaces for budget-agent.
package api

import (
	"context"
	"time"
)

// DateFormat is the wire format for transaction dates and statement date keys.
const DateFormat = "2006-01-02"

// Spending type classifications attached to a category.
const (
	TypeNeed         = "Need"
	TypeWant         = "Want"
	TypeUnclassified = "Unclassified"
)

// CategoryOther is the fallback category for keywords matching no rule.
const CategoryOther = "Other"

// ExpenseHeader is the expenses sheet header. Column order is load-bearing:
// the Date column index is used for the idempotence check and the row layout
// must match Transaction.Row.
var ExpenseHeader = []string{"Time", "Description", "Expense", "Income", "Balance", "Date", "Category", "Type"}

// CategoryHeader is the category rules sheet header.
var CategoryHeader = []string{"Keyword", "Category", "Type"}

// DateColumn is the 1-based index of the Date column in the expenses sheet.
const DateColumn = 6

// RawRecord is one (time, description) pair extracted from a bank statement.
type RawRecord struct {
	Time        string
	Description string
}

// Transaction is one structured row of the expenses sheet.
// Exactly one of Expense/Income is nonzero for every emitted transaction.
type Transaction struct {
	Time        string
	Description string
	Expense     float64
	Income      float64
	Balance     float64
	Date        time.Time
	Category    string
	Type        string
}

// Row returns the transaction in the expenses sheet column order.
func (t Transaction) Row() []any {
	return []any{
		t.Time,
		t.Description,
		t.Expense,
		t.Income,
		t.Balance,
		t.Date.Format(DateFormat),
		t.Category,
		t.Type,
	}
}

// CategoryRule maps a merchant keyword to its category and spending type.
// Keywords are matched case-insensitively.
type CategoryRule struct {
	Keyword  string
	Category string
	Type     string
}

// Pending reports whether the rule is awaiting human categorization.
func (r CategoryRule) Pending() bool {
	return r.Keyword != "" && r.Category == ""
}

// Statement is one raw bank statement attachment. DateKey is derived from the
// attachment filename and is the dedup unit for statement processing.
type Statement struct {
	DateKey string
	HTML    []byte
}

// TransactionStore is the spreadsheet collaborator holding transactions,
// category rules and dashboard sheets.
type TransactionStore interface {
	GetAllRecords(ctx context.Context, sheet string) ([]map[string]string, error)
	GetColumnValues(ctx context.Context, sheet string, col int) ([]string, error)
	AppendRows(ctx context.Context, sheet string, rows [][]any) error
}

// StatementSource is the email collaborator providing raw statements.
type StatementSource interface {
	ListMessageIDs(ctx context.Context, sender string, since time.Time) ([]string, error)
	// FetchStatement returns the statement attachment of a message, or nil
	// when the message carries no statement.
	FetchStatement(ctx context.Context, messageID string) (*Statement, error)
}

// AlertSink is the messaging collaborator. The formatting of Markdown sends
// is the sink's concern; callers produce the text.
type AlertSink interface {
	Send(ctx context.Context, text string) error
	SendMarkdown(ctx context.Context, text string) error
}
