// Package prices provides market data sources for the portfolio engine:
// a Yahoo-style chart HTTP client, a Redis-backed quote cache, and a fixed
// in-memory source for tests and seeded demos.
//
// All sources are best-effort per ticker: a symbol with no data is simply
// absent from the returned maps. Only transport-level failures that affect
// the whole batch are reported as errors.
package prices

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source supplies spot quotes and daily bar history for exchange tickers.
type Source interface {
	// Spot returns the latest known price per requested ticker. Tickers
	// with no quote are absent from the map; a single bad symbol never
	// fails the batch.
	Spot(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error)

	// History returns per-ticker daily bars covering [from, to]. Tickers
	// with no data at all are absent from the map.
	History(ctx context.Context, tickers []string, from, to time.Time) (map[string]Series, error)
}
