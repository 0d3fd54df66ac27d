package prices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/metrics"
)

// Cached wraps an upstream Source with a Redis TTL cache for spot quotes.
// Reads check Redis first in a single MGET round trip, fetch only the
// missing symbols upstream, and write those back with the configured TTL.
// Redis failures are fail-open: the lookup falls through to the upstream
// source rather than erroring.
//
// History is deliberately not cached. At competition scale one chart per
// ticker is cheap, and each valuation pass already reuses a single fetch.
type Cached struct {
	upstream Source
	rdb      *redis.Client
	ttl      time.Duration
}

// NewCached creates a cached wrapper around an upstream source.
func NewCached(upstream Source, rdb *redis.Client, ttl time.Duration) *Cached {
	return &Cached{upstream: upstream, rdb: rdb, ttl: ttl}
}

func (c *Cached) Spot(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	if len(tickers) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	out := make(map[string]decimal.Decimal, len(tickers))
	missing := tickers

	keys := make([]string, len(tickers))
	for i, t := range tickers {
		keys[i] = quoteKey(t)
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Warn("quote cache read failed, falling through", "err", err)
	} else {
		missing = nil
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, tickers[i])
				metrics.QuoteCacheMisses.Inc()
				continue
			}
			px, err := decimal.NewFromString(s)
			if err != nil {
				missing = append(missing, tickers[i])
				metrics.QuoteCacheMisses.Inc()
				continue
			}
			out[tickers[i]] = px
			metrics.QuoteCacheHits.Inc()
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.upstream.Spot(ctx, missing)
	if err != nil {
		return nil, err
	}
	for t, px := range fresh {
		out[t] = px
		if err := c.rdb.Set(ctx, quoteKey(t), px.String(), c.ttl).Err(); err != nil {
			slog.Warn("quote cache write failed", "ticker", t, "err", err)
		}
	}
	return out, nil
}

func (c *Cached) History(ctx context.Context, tickers []string, from, to time.Time) (map[string]Series, error) {
	return c.upstream.History(ctx, tickers, from, to)
}

func quoteKey(ticker string) string { return fmt.Sprintf("quote:%s", ticker) }
