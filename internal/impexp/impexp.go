// Package impexp parses trade-history CSV uploads into ledger rows. The
// format is header-driven: columns are matched by name after trimming and
// lowercasing, so column order and extra columns do not matter. Bad rows
// are dropped with a row-numbered reason rather than failing the upload.
package impexp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
)

// ErrMissingColumns is returned when the header lacks a required column.
var ErrMissingColumns = errors.New("impexp: missing required columns")

var requiredColumns = []string{"timestamp", "ticker", "action", "shares", "price"}

// timestampLayouts are the accepted timestamp formats, tried in order.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Result is the outcome of parsing one CSV upload.
type Result struct {
	Trades   []model.Trade
	Rejected []RowError
}

// RowError describes one dropped CSV row. Row numbers count data rows
// starting at 1, header excluded.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Parse reads a CSV upload and coerces its rows into trades owned by
// participant. The returned error is structural (unreadable CSV, missing
// columns); per-row problems land in Result.Rejected.
func Parse(r io.Reader, participant string) (*Result, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("impexp: read header: %w", err)
	}
	cols, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Rejected = append(result.Rejected, RowError{Row: row, Reason: err.Error()})
			continue
		}

		trade, reason := coerceRow(record, cols)
		if reason != "" {
			result.Rejected = append(result.Rejected, RowError{Row: row, Reason: reason})
			continue
		}
		trade.Participant = participant
		result.Trades = append(result.Trades, trade)
	}
	return result, nil
}

// indexColumns maps required column names to their positions in the header.
func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func coerceRow(record []string, cols map[string]int) (model.Trade, string) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var trade model.Trade

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return trade, err.Error()
	}
	trade.Timestamp = ts

	trade.Ticker = strings.ToUpper(field("ticker"))
	if !model.ValidTicker(trade.Ticker) {
		return trade, fmt.Sprintf("invalid ticker %q", field("ticker"))
	}

	// Title-case so "buy"/"BUY" import cleanly.
	action := field("action")
	if action != "" {
		action = strings.ToUpper(action[:1]) + strings.ToLower(action[1:])
	}
	trade.Action = model.Action(action)
	if !trade.Action.Valid() {
		return trade, fmt.Sprintf("action must be Buy or Sell, got %q", field("action"))
	}

	trade.Shares, err = parsePositive(field("shares"), "shares")
	if err != nil {
		return trade, err.Error()
	}
	trade.Price, err = parsePositive(field("price"), "price")
	if err != nil {
		return trade, err.Error()
	}
	return trade, ""
}

// parseTimestamp accepts an empty value: undated rows are legal in the
// ledger and excluded from dating logic downstream.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

func parsePositive(s, name string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable %s %q", name, s)
	}
	if v.LessThanOrEqual(decimal.Zero) {
		return decimal.Decimal{}, fmt.Errorf("%s must be positive, got %s", name, v)
	}
	return v, nil
}
