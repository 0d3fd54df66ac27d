package valuation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/paperbull/portfolio-engine/internal/metrics"
	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/prices"
)

// participantParallelism bounds the per-participant valuation fan-out.
// Replay is CPU-only once prices are prefetched, so a small limit is plenty.
const participantParallelism = 4

// Engine computes per-participant portfolio snapshots from an immutable
// trade ledger snapshot and a price source. It owns no state beyond its
// configuration: every computation borrows the ledger, fetches one
// consistent price snapshot, and returns a fresh result map.
type Engine struct {
	prices         prices.Source
	initialCapital decimal.Decimal
	now            func() time.Time
}

// NewEngine creates an engine backed by src. A non-positive initialCapital
// falls back to DefaultInitialCapital.
func NewEngine(src prices.Source, initialCapital decimal.Decimal) *Engine {
	if initialCapital.LessThanOrEqual(decimal.Zero) {
		initialCapital = DefaultInitialCapital
	}
	return &Engine{
		prices:         src,
		initialCapital: initialCapital,
		now:            time.Now,
	}
}

// InitialCapital returns the starting cash used for every participant.
func (e *Engine) InitialCapital() decimal.Decimal {
	return e.initialCapital
}

// Compute replays the full multi-participant ledger into a map of portfolio
// snapshots. An empty ledger yields an empty map. Price-source failures
// degrade to the documented fallbacks (cost basis for spot, zero
// contribution for history); the only returned error is context
// cancellation. Participants are valued independently, so bad rows in one
// ledger never affect another's snapshot.
func (e *Engine) Compute(ctx context.Context, ledger []model.Trade) (map[string]*model.PortfolioSnapshot, error) {
	metrics.ValuationPasses.Inc()
	defer func(start time.Time) {
		metrics.ValuationDuration.Observe(time.Since(start).Seconds())
	}(time.Now())

	out := make(map[string]*model.PortfolioSnapshot)
	if len(ledger) == 0 {
		return out, nil
	}

	byParticipant := partition(ledger)
	now := e.now().UTC()
	spot, closes := e.fetchPrices(ctx, ledger, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(participantParallelism)
	for participant, trades := range byParticipant {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap := e.buildSnapshot(participant, trades, spot, closes, now)
			mu.Lock()
			out[participant] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeOne values a single participant's ledger rows. Unlike Compute it
// returns a baseline snapshot (initial capital, no holdings) when the
// participant has no trades at all.
func (e *Engine) ComputeOne(ctx context.Context, participant string, trades []model.Trade) (*model.PortfolioSnapshot, error) {
	now := e.now().UTC()
	if len(trades) == 0 {
		return e.baselineSnapshot(participant, now), nil
	}
	spot, closes := e.fetchPrices(ctx, trades, now)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.buildSnapshot(participant, trades, spot, closes, now), nil
}

// buildSnapshot runs the daily-history fold for one participant and then
// reconciles the final replayed state against live prices.
func (e *Engine) buildSnapshot(participant string, trades []model.Trade, spot map[string]decimal.Decimal, closes map[string]prices.Series, now time.Time) *model.PortfolioSnapshot {
	dated := make([]model.Trade, 0, len(trades))
	var issues []model.TradeIssue
	for _, tr := range trades {
		if !tr.Dated() {
			issues = append(issues, model.TradeIssue{TradeID: tr.ID, Ticker: tr.Ticker, Reason: reasonUndated})
			continue
		}
		dated = append(dated, tr)
	}
	SortTrades(dated)

	history, st := buildHistory(e.initialCapital, dated, closes, now)
	issues = append(issues, st.Issues...)
	for _, issue := range issues {
		slog.Warn("trade skipped during replay",
			"participant", participant,
			"trade_id", issue.TradeID,
			"ticker", issue.Ticker,
			"reason", issue.Reason,
		)
	}

	snap := &model.PortfolioSnapshot{
		Participant:     participant,
		Cash:            st.Cash,
		Holdings:        st.Holdings,
		TotalRealizedPL: st.RealizedPL,
		RealizedLots:    st.Lots,
		ValueHistory:    history,
		Trades:          trades,
		Issues:          issues,
		HoldingValues:   make(map[string]decimal.Decimal),
		LivePrices:      make(map[string]decimal.Decimal),
	}

	// Live reconciliation. A held ticker without a live quote is carried
	// at cost basis so the total does not spuriously collapse, and its
	// unrealized contribution is zero: no live comparison is possible.
	total := st.Cash
	unrealized := decimal.Zero
	for ticker, h := range st.Holdings {
		px, ok := spot[ticker]
		if !ok {
			total = total.Add(h.Shares.Mul(h.AvgPrice))
			slog.Warn("no live price for held ticker, using cost basis",
				"participant", participant, "ticker", ticker)
			continue
		}
		value := h.Shares.Mul(px)
		snap.LivePrices[ticker] = px
		snap.HoldingValues[ticker] = value
		total = total.Add(value)
		unrealized = unrealized.Add(px.Sub(h.AvgPrice).Mul(h.Shares))
	}
	snap.TotalValue = total
	snap.TotalUnrealizedPL = unrealized
	return snap
}

// baselineSnapshot is the state of a participant who has not traded yet.
func (e *Engine) baselineSnapshot(participant string, now time.Time) *model.PortfolioSnapshot {
	return &model.PortfolioSnapshot{
		Participant:   participant,
		Cash:          e.initialCapital,
		Holdings:      make(map[string]model.Holding),
		TotalValue:    e.initialCapital,
		HoldingValues: make(map[string]decimal.Decimal),
		LivePrices:    make(map[string]decimal.Decimal),
		ValueHistory:  []model.ValuePoint{{Timestamp: now, TotalValue: e.initialCapital}},
		Trades:        []model.Trade{},
	}
}

// fetchPrices loads one consistent price snapshot for the whole pass: one
// batched spot call and one batched history call covering every ticker in
// the ledger. Failures degrade to empty maps rather than aborting.
func (e *Engine) fetchPrices(ctx context.Context, ledger []model.Trade, now time.Time) (map[string]decimal.Decimal, map[string]prices.Series) {
	tickers, earliest := ledgerSpan(ledger, now)

	spot, err := e.prices.Spot(ctx, tickers)
	if err != nil {
		slog.Warn("spot fetch failed, holdings will be valued at cost basis", "err", err)
		spot = map[string]decimal.Decimal{}
	}
	closes, err := e.prices.History(ctx, tickers, earliest, now)
	if err != nil {
		slog.Warn("history fetch failed, value history will omit holdings", "err", err)
		closes = map[string]prices.Series{}
	}
	return spot, closes
}

// partition groups ledger rows by participant, preserving ledger order.
// Rows with no participant cannot be attributed and are dropped.
func partition(ledger []model.Trade) map[string][]model.Trade {
	out := make(map[string][]model.Trade)
	for _, tr := range ledger {
		if tr.Participant == "" {
			slog.Warn("dropping ledger row with no participant", "trade_id", tr.ID)
			continue
		}
		out[tr.Participant] = append(out[tr.Participant], tr)
	}
	return out
}

// ledgerSpan returns the distinct tickers in the ledger and the earliest
// dated trade's timestamp. With no dated rows the span collapses to now.
func ledgerSpan(ledger []model.Trade, now time.Time) ([]string, time.Time) {
	seen := make(map[string]bool)
	var tickers []string
	earliest := now
	for _, tr := range ledger {
		if tr.Ticker != "" && !seen[tr.Ticker] {
			seen[tr.Ticker] = true
			tickers = append(tickers, tr.Ticker)
		}
		if tr.Dated() && tr.Timestamp.Before(earliest) {
			earliest = tr.Timestamp
		}
	}
	return tickers, earliest
}
