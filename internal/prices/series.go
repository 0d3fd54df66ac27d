package prices

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one daily price bar. Day is the bar's calendar day at midnight UTC.
type Bar struct {
	Day   time.Time       `json:"day"`
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// Series is a chronologically sorted run of daily bars for one ticker.
// The zero value is an empty series.
type Series struct {
	bars []Bar
}

// NewSeries builds a series from bars given in any order.
func NewSeries(bars []Bar) Series {
	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	slices.SortFunc(sorted, func(a, b Bar) int {
		return a.Day.Compare(b.Day)
	})
	return Series{bars: sorted}
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.bars)
}

// Bars returns a copy of the series' bars in chronological order.
func (s Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// CloseAsOf returns the closing price for day, falling back to the most
// recent prior close when day itself has no bar (weekends, holidays).
// ok is false when the series has no bar at or before day.
func (s Series) CloseAsOf(day time.Time) (decimal.Decimal, bool) {
	i, found := slices.BinarySearchFunc(s.bars, day, func(b Bar, t time.Time) int {
		return b.Day.Compare(t)
	})
	if found {
		return s.bars[i].Close, true
	}
	if i == 0 {
		return decimal.Decimal{}, false
	}
	return s.bars[i-1].Close, true
}

// LastClose returns the most recent closing price in the series.
func (s Series) LastClose() (decimal.Decimal, bool) {
	if len(s.bars) == 0 {
		return decimal.Decimal{}, false
	}
	return s.bars[len(s.bars)-1].Close, true
}

// DayOf truncates t to the start of its UTC calendar day.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
