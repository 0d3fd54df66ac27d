// Command repairstamps dates undated ledger rows by matching each trade's
// execution price against recent daily price ranges. A trade that printed
// inside a day's [low, high] most likely executed that day; the newest such
// day wins. Trades matching no day fall back to fifteen days ago.
//
// This is offline data hygiene: the valuation engine itself never guesses
// dates, it just excludes undated rows.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/prices"
	"github.com/paperbull/portfolio-engine/internal/store"
)

const lookbackDays = 45

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	dryRun := flag.Bool("dry-run", false, "print repairs without writing them")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		slog.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	st := store.NewPostgresStore(pool)

	src := prices.NewClient("", 0, 0)

	repaired, skipped, err := repair(ctx, st, src, *dryRun)
	if err != nil {
		slog.Error("repair failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("repaired %d trades, %d left undated\n", repaired, skipped)
}

// repair dates every undated trade it can. Returns how many rows were
// dated and how many remain untouched.
func repair(ctx context.Context, st store.Store, src prices.Source, dryRun bool) (int, int, error) {
	all, err := st.ListTrades(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list trades: %w", err)
	}

	var undated []model.Trade
	tickers := make(map[string]bool)
	for _, tr := range all {
		if !tr.Dated() {
			undated = append(undated, tr)
			tickers[tr.Ticker] = true
		}
	}
	if len(undated) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UTC()
	symbols := make([]string, 0, len(tickers))
	for t := range tickers {
		symbols = append(symbols, t)
	}
	charts, err := src.History(ctx, symbols, now.AddDate(0, 0, -lookbackDays), now)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch history: %w", err)
	}

	repaired := 0
	for _, tr := range undated {
		guess, matched := guessDay(charts[tr.Ticker], tr.Price, now)
		slog.Info("repairing trade timestamp",
			"trade_id", tr.ID,
			"participant", tr.Participant,
			"ticker", tr.Ticker,
			"price", tr.Price.String(),
			"guess", guess,
			"matched", matched,
			"dry_run", dryRun,
		)
		if dryRun {
			continue
		}
		if err := st.SetTradeTimestamp(ctx, tr.ID, guess); err != nil {
			return repaired, len(undated) - repaired, fmt.Errorf("set timestamp for trade %d: %w", tr.ID, err)
		}
		repaired++
	}
	return repaired, len(undated) - repaired, nil
}

// guessDay picks the newest day whose [low, high] range contains price.
// Noon keeps the guess unambiguous across timezone renderings. With no
// matching day the trade is parked fifteen days back.
func guessDay(series prices.Series, price decimal.Decimal, now time.Time) (time.Time, bool) {
	bars := series.Bars()
	for i := len(bars) - 1; i >= 0; i-- {
		b := bars[i]
		if price.GreaterThanOrEqual(b.Low) && price.LessThanOrEqual(b.High) {
			return noon(b.Day), true
		}
	}
	return noon(now.AddDate(0, 0, -15)), false
}

func noon(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}
