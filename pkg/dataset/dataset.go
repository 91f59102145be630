// Package dataset decodes spreadsheet records into transactions and provides
// the structured filter/group/sort operations used for ad-hoc querying.
package dataset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
)

// FromRecords decodes expenses sheet records into transactions. Field values
// that fail to parse coerce to their zero value, mirroring how the sheet
// tolerates hand-edited cells; rows are never dropped here.
func FromRecords(records []map[string]string) []api.Transaction {
	txs := make([]api.Transaction, 0, len(records))
	for _, rec := range records {
		txs = append(txs, api.Transaction{
			Time:        rec["Time"],
			Description: rec["Description"],
			Expense:     ParseAmount(rec["Expense"]),
			Income:      ParseAmount(rec["Income"]),
			Balance:     ParseAmount(rec["Balance"]),
			Date:        parseDate(rec["Date"]),
			Category:    rec["Category"],
			Type:        rec["Type"],
		})
	}
	return txs
}

// RulesFromRecords decodes category sheet records into rules, preserving
// sheet order. Rows without a keyword are skipped.
func RulesFromRecords(records []map[string]string) []api.CategoryRule {
	rules := make([]api.CategoryRule, 0, len(records))
	for _, rec := range records {
		if rec["Keyword"] == "" {
			continue
		}
		rules = append(rules, api.CategoryRule{
			Keyword:  rec["Keyword"],
			Category: rec["Category"],
			Type:     rec["Type"],
		})
	}
	return rules
}

// ParseAmount converts a sheet cell to a float, accepting a decimal comma.
// Unparseable cells coerce to zero.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseDate(s string) time.Time {
	t, err := time.Parse(api.DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Op is a filter comparison operator.
type Op string

// The fixed operator set of the query contract. Free-form expressions are
// deliberately not supported.
const (
	OpEq    Op = "=="
	OpNeq   Op = "!="
	OpGt    Op = ">"
	OpLt    Op = "<"
	OpGte   Op = ">="
	OpLte   Op = "<="
	OpIn    Op = "isin"
	OpNotIn Op = "notin"
)

// Filter returns the transactions satisfying (column, op, value). Numeric
// columns compare as floats, Date compares as a day, everything else as a
// string. OpIn/OpNotIn take a []string value and apply to string columns
// only.
func Filter(txs []api.Transaction, column string, op Op, value any) ([]api.Transaction, error) {
	pred, err := predicate(column, op, value)
	if err != nil {
		return nil, err
	}
	var out []api.Transaction
	for _, t := range txs {
		if pred(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func predicate(column string, op Op, value any) (func(api.Transaction) bool, error) {
	switch column {
	case "Expense", "Income", "Balance":
		want, err := toFloat(value)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		return func(t api.Transaction) bool {
			return compareFloat(numericField(t, column), want, op)
		}, nil
	case "Date":
		want, err := toDate(value)
		if err != nil {
			return nil, fmt.Errorf("column Date: %w", err)
		}
		return func(t api.Transaction) bool {
			return compareDate(t.Date, want, op)
		}, nil
	case "Time", "Description", "Category", "Type":
		return stringPredicate(column, op, value)
	default:
		return nil, fmt.Errorf("unknown column %q", column)
	}
}

func stringPredicate(column string, op Op, value any) (func(api.Transaction) bool, error) {
	field := func(t api.Transaction) string {
		switch column {
		case "Time":
			return t.Time
		case "Description":
			return t.Description
		case "Category":
			return t.Category
		default:
			return t.Type
		}
	}

	switch op {
	case OpIn, OpNotIn:
		values, ok := value.([]string)
		if !ok {
			return nil, fmt.Errorf("operator %s needs a []string value", op)
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		return func(t api.Transaction) bool {
			_, in := set[field(t)]
			return in == (op == OpIn)
		}, nil
	case OpEq, OpNeq:
		want, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("operator %s needs a string value for column %s", op, column)
		}
		return func(t api.Transaction) bool {
			return (field(t) == want) == (op == OpEq)
		}, nil
	default:
		return nil, fmt.Errorf("operator %s is not supported for column %s", op, column)
	}
}

func numericField(t api.Transaction, column string) float64 {
	switch column {
	case "Expense":
		return t.Expense
	case "Income":
		return t.Income
	default:
		return t.Balance
	}
}

func compareFloat(got, want float64, op Op) bool {
	switch op {
	case OpEq:
		return got == want
	case OpNeq:
		return got != want
	case OpGt:
		return got > want
	case OpLt:
		return got < want
	case OpGte:
		return got >= want
	case OpLte:
		return got <= want
	default:
		return false
	}
}

func compareDate(got, want time.Time, op Op) bool {
	switch op {
	case OpEq:
		return got.Equal(want)
	case OpNeq:
		return !got.Equal(want)
	case OpGt:
		return got.After(want)
	case OpLt:
		return got.Before(want)
	case OpGte:
		return !got.Before(want)
	case OpLte:
		return !got.After(want)
	default:
		return false
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not numeric", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value %v is not numeric", value)
	}
}

func toDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse(api.DateFormat, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("value %q is not a %s date", v, api.DateFormat)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("value %v is not a date", value)
	}
}

// SortBy orders transactions by a column. The sort is stable so equal keys
// keep their input order.
func SortBy(txs []api.Transaction, column string, ascending bool) ([]api.Transaction, error) {
	less, err := lessFunc(column)
	if err != nil {
		return nil, err
	}
	out := make([]api.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out, nil
}

func lessFunc(column string) (func(a, b api.Transaction) bool, error) {
	switch column {
	case "Expense", "Income", "Balance":
		return func(a, b api.Transaction) bool {
			return numericField(a, column) < numericField(b, column)
		}, nil
	case "Date":
		return func(a, b api.Transaction) bool { return a.Date.Before(b.Date) }, nil
	case "Time":
		return func(a, b api.Transaction) bool { return a.Time < b.Time }, nil
	case "Description":
		return func(a, b api.Transaction) bool { return a.Description < b.Description }, nil
	case "Category":
		return func(a, b api.Transaction) bool { return a.Category < b.Category }, nil
	case "Type":
		return func(a, b api.Transaction) bool { return a.Type < b.Type }, nil
	default:
		return nil, fmt.Errorf("unknown column %q", column)
	}
}

// GroupTotal is one aggregated group.
type GroupTotal struct {
	Key   string
	Total float64
	Count int
}

// GroupSumExpense sums expenses per key, sorted by total descending (ties by
// key ascending, for stable output).
func GroupSumExpense(txs []api.Transaction, key func(api.Transaction) string) []GroupTotal {
	totals := make(map[string]*GroupTotal)
	for _, t := range txs {
		k := key(t)
		g, ok := totals[k]
		if !ok {
			g = &GroupTotal{Key: k}
			totals[k] = g
		}
		g.Total += t.Expense
		g.Count++
	}

	out := make([]GroupTotal, 0, len(totals))
	for _, g := range totals {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// TopMerchants returns the n merchants with the highest total spend,
// counting only expense rows.
func TopMerchants(txs []api.Transaction, n int) []GroupTotal {
	var expenses []api.Transaction
	for _, t := range txs {
		if t.Expense > 0 {
			expenses = append(expenses, t)
		}
	}
	groups := GroupSumExpense(expenses, func(t api.Transaction) string { return t.Description })
	if len(groups) > n {
		groups = groups[:n]
	}
	return groups
}

// SumExpense totals the Expense column.
func SumExpense(txs []api.Transaction) float64 {
	total := 0.0
	for _, t := range txs {
		total += t.Expense
	}
	return total
}
