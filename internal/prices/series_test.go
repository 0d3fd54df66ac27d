package prices

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func bar(y int, m time.Month, dd int, close float64) Bar {
	c := d(close)
	return Bar{Day: day(y, m, dd), Open: c, High: c, Low: c, Close: c}
}

func TestSeries_CloseAsOf_ExactDay(t *testing.T) {
	s := NewSeries([]Bar{
		bar(2026, 8, 3, 2.00),
		bar(2026, 8, 4, 2.10),
		bar(2026, 8, 5, 2.20),
	})

	px, ok := s.CloseAsOf(day(2026, 8, 4))
	if !ok {
		t.Fatal("expected a close")
	}
	if !px.Equal(d(2.10)) {
		t.Errorf("expected 2.10, got %s", px)
	}
}

func TestSeries_CloseAsOf_WeekendFallsBack(t *testing.T) {
	// Friday close only; Saturday and Sunday must read Friday's price.
	s := NewSeries([]Bar{bar(2026, 8, 7, 3.00)})

	for _, dd := range []time.Time{day(2026, 8, 8), day(2026, 8, 9)} {
		px, ok := s.CloseAsOf(dd)
		if !ok {
			t.Fatalf("%s: expected as-of close", dd)
		}
		if !px.Equal(d(3.00)) {
			t.Errorf("%s: expected 3.00, got %s", dd, px)
		}
	}
}

func TestSeries_CloseAsOf_BeforeFirstBar(t *testing.T) {
	s := NewSeries([]Bar{bar(2026, 8, 7, 3.00)})

	if _, ok := s.CloseAsOf(day(2026, 8, 6)); ok {
		t.Error("no bar at or before the day: expected ok=false")
	}
}

func TestSeries_CloseAsOf_Empty(t *testing.T) {
	var s Series
	if _, ok := s.CloseAsOf(day(2026, 8, 7)); ok {
		t.Error("empty series must report no close")
	}
}

func TestSeries_SortsUnorderedBars(t *testing.T) {
	s := NewSeries([]Bar{
		bar(2026, 8, 5, 2.20),
		bar(2026, 8, 3, 2.00),
		bar(2026, 8, 4, 2.10),
	})

	px, _ := s.LastClose()
	if !px.Equal(d(2.20)) {
		t.Errorf("expected last close 2.20, got %s", px)
	}
	bars := s.Bars()
	for i := 1; i < len(bars); i++ {
		if bars[i].Day.Before(bars[i-1].Day) {
			t.Fatal("bars must be chronological")
		}
	}
}

func TestSeries_LastClose_Empty(t *testing.T) {
	var s Series
	if _, ok := s.LastClose(); ok {
		t.Error("empty series must report no last close")
	}
}

func TestDayOf(t *testing.T) {
	got := DayOf(time.Date(2026, 8, 3, 23, 59, 1, 0, time.UTC))
	if !got.Equal(day(2026, 8, 3)) {
		t.Errorf("expected midnight UTC, got %s", got)
	}
}

func TestStatic_MissingTickersAbsent(t *testing.T) {
	src := NewStatic(
		map[string]decimal.Decimal{"SNDL": d(2.00)},
		map[string]Series{"SNDL": NewSeries([]Bar{bar(2026, 8, 3, 2.00)})},
	)

	spot, err := src.Spot(context.Background(), []string{"SNDL", "MISSING"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spot) != 1 || !spot["SNDL"].Equal(d(2.00)) {
		t.Errorf("unexpected spot map: %v", spot)
	}

	hist, err := src.History(context.Background(), []string{"SNDL", "MISSING"}, day(2026, 8, 1), day(2026, 8, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hist) != 1 {
		t.Errorf("expected only SNDL history, got %v", hist)
	}
}

func TestFlatSeries_CoversRange(t *testing.T) {
	s := FlatSeries(d(2.00), day(2026, 8, 3), day(2026, 8, 7))
	if s.Len() != 5 {
		t.Errorf("expected 5 bars, got %d", s.Len())
	}
}
