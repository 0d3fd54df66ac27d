package impexp

import (
	"errors"
	"strings"
	"testing"

	"github.com/paperbull/portfolio-engine/internal/model"
)

func TestParse_ValidRows(t *testing.T) {
	csv := `timestamp,ticker,action,shares,price
2026-08-03T14:30:00Z,sndl,buy,100,1.85
2026-08-04 10:00:00,NOK,Sell,40,3.90
`
	result, err := Parse(strings.NewReader(csv), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rejected) != 0 {
		t.Fatalf("expected no rejections, got %+v", result.Rejected)
	}
	if len(result.Trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(result.Trades))
	}

	first := result.Trades[0]
	if first.Participant != "alice" {
		t.Errorf("importer must be stamped as participant, got %q", first.Participant)
	}
	if first.Ticker != "SNDL" {
		t.Errorf("ticker must be upper-cased, got %q", first.Ticker)
	}
	if first.Action != model.ActionBuy {
		t.Errorf("action must be title-cased to Buy, got %q", first.Action)
	}
	if first.Timestamp.IsZero() {
		t.Error("expected parsed timestamp")
	}
	if result.Trades[1].Action != model.ActionSell {
		t.Errorf("expected Sell, got %q", result.Trades[1].Action)
	}
}

func TestParse_HeaderOrderAndExtrasIgnored(t *testing.T) {
	csv := `Price, Action ,notes,TICKER,shares,timestamp
1.85,BUY,whatever,SNDL,100,2026-08-03
`
	result, err := Parse(strings.NewReader(csv), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d (rejected: %+v)", len(result.Trades), result.Rejected)
	}
}

func TestParse_MissingColumns(t *testing.T) {
	csv := `timestamp,ticker,shares
2026-08-03,SNDL,100
`
	_, err := Parse(strings.NewReader(csv), "alice")
	if !errors.Is(err, ErrMissingColumns) {
		t.Errorf("expected ErrMissingColumns, got %v", err)
	}
}

func TestParse_BadRowsRejectedWithRowNumbers(t *testing.T) {
	csv := `timestamp,ticker,action,shares,price
2026-08-03,SNDL,buy,100,1.85
2026-08-03,SNDL,hold,10,1.85
not-a-date,SNDL,buy,10,1.85
2026-08-03,SNDL,buy,-5,1.85
2026-08-03,SNDL,buy,10,zero
2026-08-03,lower!case,buy,10,1.85
2026-08-04,NOK,sell,40,3.90
`
	result, err := Parse(strings.NewReader(csv), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Trades) != 2 {
		t.Errorf("expected 2 good trades, got %d", len(result.Trades))
	}
	if len(result.Rejected) != 5 {
		t.Fatalf("expected 5 rejections, got %+v", result.Rejected)
	}

	wantRows := []int{2, 3, 4, 5, 6}
	for i, re := range result.Rejected {
		if re.Row != wantRows[i] {
			t.Errorf("rejection %d: expected row %d, got %d (%s)", i, wantRows[i], re.Row, re.Reason)
		}
		if re.Reason == "" {
			t.Errorf("rejection %d: expected a reason", i)
		}
	}
}

func TestParse_EmptyTimestampMeansUndated(t *testing.T) {
	csv := `timestamp,ticker,action,shares,price
,SNDL,buy,100,1.85
`
	result, err := Parse(strings.NewReader(csv), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d (rejected: %+v)", len(result.Trades), result.Rejected)
	}
	if result.Trades[0].Dated() {
		t.Error("empty timestamp must import as undated")
	}
}

func TestParse_EmptyBody(t *testing.T) {
	if _, err := Parse(strings.NewReader(""), "alice"); err == nil {
		t.Error("expected error for empty input")
	}
}
