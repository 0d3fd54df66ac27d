package valuation

import (
	"errors"

	"github.com/paperbull/portfolio-engine/internal/model"
)

var (
	// ErrInsufficientCash is returned when a buy's cost exceeds the cash
	// balance. Buys never run the balance negative; there is no margin.
	ErrInsufficientCash = errors.New("valuation: insufficient cash for buy")

	// ErrTickerNotHeld is returned when a sell names a ticker with no
	// open holding.
	ErrTickerNotHeld = errors.New("valuation: sell of a ticker not held")

	// ErrInsufficientShares is returned when a sell requests more shares
	// than are currently held. Short positions are never fabricated.
	ErrInsufficientShares = errors.New("valuation: sell exceeds held shares")
)

// CheckTrade validates a proposed trade against the replayed state st
// without mutating it. Replay applies the same checks at the same
// position, so intake validation and replay cannot disagree.
func CheckTrade(st *State, tr model.Trade) error {
	switch tr.Action {
	case model.ActionBuy:
		cost := tr.Shares.Mul(tr.Price)
		if cost.GreaterThan(st.Cash) {
			return ErrInsufficientCash
		}
	case model.ActionSell:
		h, ok := st.Holdings[tr.Ticker]
		if !ok {
			return ErrTickerNotHeld
		}
		if tr.Shares.GreaterThan(h.Shares) {
			return ErrInsufficientShares
		}
	}
	return nil
}
