// Package classifier turns raw statement records into structured
// transactions and resolves their category and spending type.
package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jwojci/budget-agent/pkg/api"
)

// settlementMarker tags mBank's duplicate ledger entries. These double-count
// a transaction already captured elsewhere in the same statement and are
// dropped before any extraction.
const settlementMarker = "Obciazenie rach."

// Keyword extractors, tried in priority order: the card authorization
// pattern first, then the generic transfer title pattern. Records matching
// neither use the full description as the keyword.
var keywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Autoryzacja karty.*?:(.*?)\.\s*Kwota:`),
	regexp.MustCompile(`tytulem:(.*?);`),
}

var (
	// keywordNoise strips slash suffixes, card sequence suffixes
	// ("K.<digit>...") and dashes left over from statement formatting.
	keywordNoise = regexp.MustCompile(`\s*(?:/.*|K\.\d.*|-\s*)`)

	incomingAmount = regexp.MustCompile(`Przelew przych.*?kwota ([\d,.]+) PLN`)
	incomingPayer  = regexp.MustCompile(`od (.*?);`)
	outgoingAmount = regexp.MustCompile(`Kwota: ([\d,.]+) PLN|Przelew wych.*?kwota ([\d,.]+) PLN|na kwote ([\d,.]+) PLN`)
	balanceMarker  = regexp.MustCompile(`Dostepne: ([\d,.]+) PLN|Dost\. ([\d,.]+)`)
)

// Classify converts raw statement records into transaction rows and collects
// keywords that match no existing category rule.
//
// The dateKey (derived from the statement filename) is the dedup unit: if it
// is already present in existingDates the whole statement has been processed
// before and the result is empty. Given identical inputs, including rule
// order, the output is deterministic.
func Classify(records []api.RawRecord, dateKey string, existingDates map[string]struct{}, rules []api.CategoryRule) ([]api.Transaction, []string, error) {
	if len(records) == 0 {
		return nil, nil, nil
	}
	if _, done := existingDates[dateKey]; done {
		return nil, nil, nil
	}

	date, err := time.Parse(api.DateFormat, dateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid statement date key %q: %w", dateKey, err)
	}

	byKeyword := make(map[string]api.CategoryRule, len(rules))
	for _, rule := range rules {
		if rule.Keyword == "" {
			continue
		}
		byKeyword[strings.ToLower(rule.Keyword)] = rule
	}

	var rows []api.Transaction
	newKeywords := make(map[string]struct{})

	for _, record := range records {
		desc := record.Description
		if strings.Contains(desc, settlementMarker) {
			continue
		}

		keyword := extractKeyword(desc)

		expense, income, balance := 0.0, 0.0, 0.0
		display := desc

		if m := incomingAmount.FindStringSubmatch(desc); m != nil {
			income = parseAmount(m[1])
			payer := "Unknown"
			if pm := incomingPayer.FindStringSubmatch(desc); pm != nil {
				payer = strings.TrimSpace(pm[1])
			}
			display = "Income: " + payer
		} else if m := outgoingAmount.FindStringSubmatch(desc); m != nil {
			expense = parseAmount(firstGroup(m))
			display = displayBeforeAmount(desc)
		} else {
			// No recognizable amount: non-transactional noise, not an error.
			continue
		}

		if m := balanceMarker.FindStringSubmatch(desc); m != nil {
			balance = parseAmount(firstGroup(m))
		}

		category, typ := api.CategoryOther, api.TypeUnclassified
		if rule, ok := byKeyword[strings.ToLower(keyword)]; ok {
			category, typ = rule.Category, rule.Type
		} else {
			matched := false
			lowerKeyword := strings.ToLower(keyword)
			lowerDesc := strings.ToLower(desc)
			for _, rule := range rules {
				k := strings.ToLower(rule.Keyword)
				if k == "" {
					continue
				}
				if strings.Contains(lowerKeyword, k) || strings.Contains(lowerDesc, k) {
					category, typ = rule.Category, rule.Type
					matched = true
					break
				}
			}
			if !matched && keyword != "" {
				newKeywords[keyword] = struct{}{}
			}
		}

		if expense > 0 || income > 0 {
			rows = append(rows, api.Transaction{
				Time:        record.Time,
				Description: display,
				Expense:     expense,
				Income:      income,
				Balance:     balance,
				Date:        date,
				Category:    category,
				Type:        typ,
			})
		}
	}

	keywords := make([]string, 0, len(newKeywords))
	for kw := range newKeywords {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	return rows, keywords, nil
}

// extractKeyword pulls the merchant/payee token out of a description and
// cleans statement formatting noise from it.
func extractKeyword(desc string) string {
	keyword := desc
	for _, pattern := range keywordPatterns {
		if m := pattern.FindStringSubmatch(desc); m != nil {
			keyword = strings.TrimSpace(m[1])
			break
		}
	}
	keyword = strings.ReplaceAll(keyword, "...", "")
	return strings.TrimSpace(keywordNoise.ReplaceAllString(keyword, ""))
}

// displayBeforeAmount rewrites an outgoing transaction description to the
// text preceding the amount marker, minus the leading record label.
func displayBeforeAmount(desc string) string {
	display := desc
	if i := strings.Index(display, "Kwota:"); i >= 0 {
		display = display[:i]
	}
	if j := strings.Index(display, ":"); j >= 0 {
		display = display[j+1:]
	}
	return strings.TrimSpace(display)
}

// firstGroup returns the first non-empty capture group of a match.
func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// parseAmount converts a Polish-formatted amount ("45,50") to a float.
// Unparseable amounts coerce to zero.
func parseAmount(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0
	}
	return v
}
