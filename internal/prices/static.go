package prices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Static is a fixed in-memory Source for tests and seeded demos. Spot
// quotes and histories are served straight from the maps it was built
// with; tickers absent from the maps behave like symbols with no data.
type Static struct {
	Quotes map[string]decimal.Decimal
	Charts map[string]Series
}

// NewStatic creates a static source. Either map may be nil.
func NewStatic(quotes map[string]decimal.Decimal, charts map[string]Series) *Static {
	return &Static{Quotes: quotes, Charts: charts}
}

func (s *Static) Spot(_ context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		if px, ok := s.Quotes[t]; ok {
			out[t] = px
		}
	}
	return out, nil
}

func (s *Static) History(_ context.Context, tickers []string, _, _ time.Time) (map[string]Series, error) {
	out := make(map[string]Series, len(tickers))
	for _, t := range tickers {
		if series, ok := s.Charts[t]; ok && series.Len() > 0 {
			out[t] = series
		}
	}
	return out, nil
}

// FlatSeries builds a series holding the same close for every day in
// [from, to]. Convenient for seeding deterministic histories in tests.
func FlatSeries(close decimal.Decimal, from, to time.Time) Series {
	var bars []Bar
	for d := DayOf(from); !d.After(DayOf(to)); d = d.Add(24 * time.Hour) {
		bars = append(bars, Bar{Day: d, Open: close, High: close, Low: close, Close: close})
	}
	return NewSeries(bars)
}
