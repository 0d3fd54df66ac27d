package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/paperbull/portfolio-engine/internal/metrics"
)

// DefaultBaseURL is the public Yahoo Finance chart endpoint.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

const (
	defaultTimeout     = 10 * time.Second
	defaultConcurrency = 4

	// spotLookbackDays is how far back Spot searches for the latest close
	// when the chart carries no regular market price (delisted or halted
	// symbols still report a final close within a few sessions).
	spotLookbackDays = 7
)

// Client fetches quotes from a Yahoo-style finance chart API: one GET per
// symbol at /v8/finance/chart/{symbol}, daily interval, with OHLC arrays
// parallel to a UNIX-timestamp array. Symbol fetches fan out concurrently
// up to a fixed limit; a failed symbol is logged, counted, and left out of
// the result rather than failing the batch.
type Client struct {
	base  string
	httpc *http.Client
	limit int
}

// NewClient creates a chart client. Zero values select the defaults
// (public Yahoo endpoint, 10s timeout, 4 concurrent fetches).
func NewClient(base string, timeout time.Duration, concurrency int) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{
		base:  base,
		httpc: &http.Client{Timeout: timeout},
		limit: concurrency,
	}
}

// chartResponse mirrors the fields of the chart payload this client reads.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// chartData is one symbol's parsed chart: its daily bars plus the live
// market price when the chart reported one.
type chartData struct {
	series  Series
	market  decimal.Decimal
	hasLive bool
}

// Spot returns the latest known price per ticker: the chart's regular
// market price when present, otherwise the most recent daily close within
// the lookback window.
func (c *Client) Spot(ctx context.Context, tickers []string) (map[string]decimal.Decimal, error) {
	metrics.PriceFetches.WithLabelValues("spot").Inc()
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -spotLookbackDays)

	out := make(map[string]decimal.Decimal, len(tickers))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for _, symbol := range tickers {
		g.Go(func() error {
			data, err := c.fetchChart(ctx, symbol, from, to)
			if err != nil {
				return c.skipSymbol(ctx, symbol, err)
			}
			px, ok := data.market, data.hasLive
			if !ok {
				px, ok = data.series.LastClose()
			}
			if !ok {
				slog.Warn("no usable quote for ticker", "ticker", symbol)
				return nil
			}
			mu.Lock()
			out[symbol] = px
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// History returns per-ticker daily bar series covering [from, to].
func (c *Client) History(ctx context.Context, tickers []string, from, to time.Time) (map[string]Series, error) {
	metrics.PriceFetches.WithLabelValues("history").Inc()
	out := make(map[string]Series, len(tickers))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)
	for _, symbol := range tickers {
		g.Go(func() error {
			data, err := c.fetchChart(ctx, symbol, from, to)
			if err != nil {
				return c.skipSymbol(ctx, symbol, err)
			}
			if data.series.Len() == 0 {
				return nil
			}
			mu.Lock()
			out[symbol] = data.series
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// skipSymbol turns a per-symbol failure into a warning, unless the whole
// batch is being cancelled.
func (c *Client) skipSymbol(ctx context.Context, symbol string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	slog.Warn("chart fetch failed", "ticker", symbol, "err", err)
	metrics.PriceFetchFailures.Inc()
	return nil
}

func (c *Client) fetchChart(ctx context.Context, symbol string, from, to time.Time) (chartData, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.base, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return chartData{}, err
	}
	// The public endpoint rejects Go's default agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; portfolio-engine/1.0)")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return chartData{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return chartData{}, fmt.Errorf("prices: chart %s: status %d", symbol, resp.StatusCode)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return chartData{}, fmt.Errorf("prices: chart %s: decode: %w", symbol, err)
	}
	if body.Chart.Error != nil {
		return chartData{}, fmt.Errorf("prices: chart %s: %s", symbol, body.Chart.Error.Description)
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return chartData{}, fmt.Errorf("prices: chart %s: empty result", symbol)
	}

	result := body.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	var bars []Bar
	for i, ts := range result.Timestamp {
		px := at(quote.Close, i)
		if px == nil {
			continue // halted day, no close printed
		}
		close := decimal.NewFromFloat(*px)
		bar := Bar{
			Day:   DayOf(time.Unix(ts, 0)),
			Open:  close,
			High:  close,
			Low:   close,
			Close: close,
		}
		if v := at(quote.Open, i); v != nil {
			bar.Open = decimal.NewFromFloat(*v)
		}
		if v := at(quote.High, i); v != nil {
			bar.High = decimal.NewFromFloat(*v)
		}
		if v := at(quote.Low, i); v != nil {
			bar.Low = decimal.NewFromFloat(*v)
		}
		bars = append(bars, bar)
	}

	data := chartData{series: NewSeries(bars)}
	if result.Meta.RegularMarketPrice != nil {
		data.market = decimal.NewFromFloat(*result.Meta.RegularMarketPrice)
		data.hasLive = true
	}
	return data, nil
}

// at safely indexes a nullable price array that may be shorter than the
// timestamp array.
func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
