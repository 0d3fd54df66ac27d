// Package valuation implements the portfolio accounting engine. It replays
// immutable trade ledgers into cash, lot-averaged holdings, and realized
// profit, reconstructs a daily total-value history against historical
// closes, and reconciles the current state against live prices.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Replay is a pure fold: it performs no I/O and owns no shared state, so a
// given ledger always produces the same result.
package valuation

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
)

// DefaultInitialCapital is the cash every participant starts with.
var DefaultInitialCapital = decimal.NewFromInt(500)

// sharesEpsilon is the threshold below which a remaining share count is
// treated as zero and the holding removed. Keeps fractional-share dust from
// leaving phantom positions behind.
var sharesEpsilon = decimal.New(1, -6) // 1e-6

// State is the accounting state produced by replaying a trade ledger:
// cash, per-ticker holdings, and the realized-gain ledger. Rows that were
// skipped or rejected are recorded in Issues.
type State struct {
	Cash       decimal.Decimal
	Holdings   map[string]model.Holding
	RealizedPL decimal.Decimal
	Lots       []model.RealizedLot
	Issues     []model.TradeIssue
}

func newState(initialCash decimal.Decimal) *State {
	return &State{
		Cash:     initialCash,
		Holdings: make(map[string]model.Holding),
	}
}

// Replay folds trades, in the order given, into a final accounting state.
// Callers are expected to pass a chronologically sorted ledger (see
// SortTrades). Malformed or invalid rows are skipped and flagged; one bad
// trade never aborts the fold.
func Replay(initialCash decimal.Decimal, trades []model.Trade) *State {
	st := newState(initialCash)
	for _, tr := range trades {
		st.apply(tr)
	}
	return st
}

// StateFor replays a participant's ledger rows exactly as the engine does:
// undated rows are excluded and flagged, the rest replayed chronologically.
func StateFor(initialCash decimal.Decimal, trades []model.Trade) *State {
	dated := make([]model.Trade, 0, len(trades))
	var undated []model.TradeIssue
	for _, tr := range trades {
		if !tr.Dated() {
			undated = append(undated, model.TradeIssue{TradeID: tr.ID, Ticker: tr.Ticker, Reason: reasonUndated})
			continue
		}
		dated = append(dated, tr)
	}
	SortTrades(dated)
	st := Replay(initialCash, dated)
	st.Issues = append(undated, st.Issues...)
	return st
}

// SortTrades orders trades chronologically, breaking timestamp ties by
// ledger id so replay order is deterministic.
func SortTrades(trades []model.Trade) {
	slices.SortStableFunc(trades, func(a, b model.Trade) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Skip reasons recorded in TradeIssue for malformed ledger rows.
const (
	reasonUndated   = "missing timestamp"
	reasonNoTicker  = "missing ticker"
	reasonBadAction = "unknown action"
	reasonBadShares = "non-positive shares"
	reasonBadPrice  = "non-positive price"
)

// vet filters out rows the accounting cannot interpret. Returns the skip
// reason, or "" for a well-formed row.
func vet(tr model.Trade) string {
	switch {
	case !tr.Dated():
		return reasonUndated
	case tr.Ticker == "":
		return reasonNoTicker
	case !tr.Action.Valid():
		return reasonBadAction
	case tr.Shares.LessThanOrEqual(decimal.Zero):
		return reasonBadShares
	case tr.Price.LessThanOrEqual(decimal.Zero):
		return reasonBadPrice
	}
	return ""
}

// apply folds one trade into the state. Invalid rows leave the state
// untouched and are flagged, so skipping never desynchronizes the fold.
func (st *State) apply(tr model.Trade) {
	if reason := vet(tr); reason != "" {
		st.flag(tr, reason)
		return
	}
	if err := CheckTrade(st, tr); err != nil {
		st.flag(tr, err.Error())
		return
	}

	cost := tr.Shares.Mul(tr.Price)
	switch tr.Action {
	case model.ActionBuy:
		st.Cash = st.Cash.Sub(cost)
		h, ok := st.Holdings[tr.Ticker]
		if !ok {
			st.Holdings[tr.Ticker] = model.Holding{Shares: tr.Shares, AvgPrice: tr.Price}
			return
		}
		newShares := h.Shares.Add(tr.Shares)
		newAvg := h.Shares.Mul(h.AvgPrice).Add(cost).Div(newShares)
		st.Holdings[tr.Ticker] = model.Holding{Shares: newShares, AvgPrice: newAvg}

	case model.ActionSell:
		h := st.Holdings[tr.Ticker] // CheckTrade guarantees presence
		gain := tr.Price.Sub(h.AvgPrice).Mul(tr.Shares)
		st.RealizedPL = st.RealizedPL.Add(gain)
		st.Lots = append(st.Lots, model.RealizedLot{
			Timestamp: tr.Timestamp,
			Ticker:    tr.Ticker,
			Shares:    tr.Shares,
			Gain:      gain,
		})
		st.Cash = st.Cash.Add(cost)
		remaining := h.Shares.Sub(tr.Shares)
		if remaining.LessThanOrEqual(sharesEpsilon) {
			delete(st.Holdings, tr.Ticker)
			return
		}
		st.Holdings[tr.Ticker] = model.Holding{Shares: remaining, AvgPrice: h.AvgPrice}
	}
}

func (st *State) flag(tr model.Trade, reason string) {
	st.Issues = append(st.Issues, model.TradeIssue{TradeID: tr.ID, Ticker: tr.Ticker, Reason: reason})
}

// HoldingsCost returns the total cost basis of the currently held shares.
func (st *State) HoldingsCost() decimal.Decimal {
	total := decimal.Zero
	for _, h := range st.Holdings {
		total = total.Add(h.Shares.Mul(h.AvgPrice))
	}
	return total
}
