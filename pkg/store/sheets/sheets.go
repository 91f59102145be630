// Package sheets implements the spreadsheet store on the Google Sheets API.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/jwojci/budget-agent/pkg/dataset"
)

// Retry settings for rate-limited append calls.
const (
	retryAttempts = 3
	retryDelay    = 60 * time.Second
)

// Config holds the spreadsheet coordinates.
type Config struct {
	// SpreadsheetID identifies the spreadsheet holding all sheets.
	SpreadsheetID string
	// IncomeNamedRange is the named range carrying the monthly disposable
	// income (e.g. "MonthlyIncome").
	IncomeNamedRange string
}

// Store reads and writes the budget spreadsheet.
type Store struct {
	svc    *sheets.Service
	cfg    Config
	logger *slog.Logger
}

// New creates a sheets store using the given authenticated HTTP client.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	svc, err := sheets.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &Store{svc: svc, cfg: cfg, logger: logger}, nil
}

// GetAllRecords returns all data rows of a sheet as header-keyed maps.
// The first row is the header; missing trailing cells read as "".
func (s *Store) GetAllRecords(ctx context.Context, sheet string) ([]map[string]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, sheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	if len(resp.Values) < 2 {
		return nil, nil
	}

	header := make([]string, len(resp.Values[0]))
	for i, cell := range resp.Values[0] {
		header[i] = fmt.Sprint(cell)
	}

	records := make([]map[string]string, 0, len(resp.Values)-1)
	for _, row := range resp.Values[1:] {
		rec := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				rec[key] = fmt.Sprint(row[i])
			} else {
				rec[key] = ""
			}
		}
		records = append(records, rec)
	}

	s.logger.Debug("fetched records", "sheet", sheet, "count", len(records))
	return records, nil
}

// GetColumnValues returns all values of a 1-based column, including the
// header cell.
func (s *Store) GetColumnValues(ctx context.Context, sheet string, col int) ([]string, error) {
	letter := columnLetter(col)
	readRange := fmt.Sprintf("%s!%s:%s", sheet, letter, letter)
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading column %s of sheet %q: %w", letter, sheet, err)
	}

	values := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) > 0 {
			values = append(values, fmt.Sprint(row[0]))
		} else {
			values = append(values, "")
		}
	}
	return values, nil
}

// AppendRows appends rows to a sheet in a single call, retrying on rate
// limits. One logical batch maps to one append so concurrent writers never
// interleave within a batch.
func (s *Store) AppendRows(ctx context.Context, sheet string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	req := sheets.ValueRange{Values: rows}
	err := retry.Do(
		func() error {
			_, err := s.svc.Spreadsheets.Values.Append(s.cfg.SpreadsheetID, sheet+"!A1", &req).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "sheet", sheet, "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("appending %d rows to sheet %q: %w", len(rows), sheet, err)
	}

	s.logger.Info("appended rows", "sheet", sheet, "count", len(rows))
	return nil
}

// UpdateCells writes a block of values starting at an A1-style cell.
func (s *Store) UpdateCells(ctx context.Context, sheet, startCell string, values [][]any) error {
	if len(values) == 0 {
		return nil
	}
	writeRange := fmt.Sprintf("%s!%s", sheet, startCell)
	req := sheets.ValueRange{Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, writeRange, &req).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating range %q: %w", writeRange, err)
	}
	return nil
}

// ClearSheet removes all values from a sheet.
func (s *Store) ClearSheet(ctx context.Context, sheet string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.cfg.SpreadsheetID, sheet, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clearing sheet %q: %w", sheet, err)
	}
	return nil
}

// EnsureHeader verifies the first row of a sheet and rewrites the sheet with
// the expected header when it does not match.
func (s *Store) EnsureHeader(ctx context.Context, sheet string, header []string) error {
	readRange := fmt.Sprintf("%s!1:1", sheet)
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading header of sheet %q: %w", sheet, err)
	}

	if len(resp.Values) > 0 && headerMatches(resp.Values[0], header) {
		return nil
	}

	s.logger.Warn("sheet header is incorrect, rewriting", "sheet", sheet)
	if err := s.ClearSheet(ctx, sheet); err != nil {
		return err
	}
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	return s.UpdateCells(ctx, sheet, "A1", [][]any{row})
}

func headerMatches(got []any, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, cell := range got {
		if fmt.Sprint(cell) != want[i] {
			return false
		}
	}
	return true
}

// MonthlyIncome reads the monthly disposable income from the configured
// named range. An empty or missing value is reported as zero, not an error:
// income-not-set is a user-action condition decided by the caller.
func (s *Store) MonthlyIncome(ctx context.Context) (float64, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, s.cfg.IncomeNamedRange).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading named range %q: %w", s.cfg.IncomeNamedRange, err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.logger.Warn("monthly income named range is empty", "range", s.cfg.IncomeNamedRange)
		return 0, nil
	}
	return ParseIncome(fmt.Sprint(resp.Values[0][0])), nil
}

var nonAmount = regexp.MustCompile(`[^\d,.]`)

// ParseIncome cleans a human-entered income cell. When both separators are
// present the comma is a thousands separator ("1,000.00"); otherwise the
// comma is the decimal separator ("123,45").
func ParseIncome(raw string) float64 {
	cleaned := nonAmount.ReplaceAllString(raw, "")
	if strings.Contains(cleaned, ",") && strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}
	return dataset.ParseAmount(cleaned)
}

// columnLetter converts a 1-based column index to its A1 letter form.
func columnLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return letters
}
