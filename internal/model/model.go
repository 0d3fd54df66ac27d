// Package model defines the core domain types shared across the portfolio
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the direction of a trade.
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
)

// Valid reports whether a is one of the two supported trade directions.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// tickerRegex matches plain exchange symbols: uppercase, starts with a
// letter, dots and dashes allowed for share classes (BRK.B, MOG-A).
var tickerRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)

// ValidTicker reports whether s looks like an exchange ticker symbol.
func ValidTicker(s string) bool {
	return tickerRegex.MatchString(s)
}

// Trade is an immutable record of one buy or sell. Once persisted it may be
// deleted by its owner but never edited; the single exception is the
// execution timestamp of undated rows, which the offline repair tool fills in.
type Trade struct {
	ID          int64           `json:"id" db:"id"`
	Participant string          `json:"participant" db:"participant"`
	Timestamp   time.Time       `json:"timestamp" db:"executed_at"` // zero when unknown
	Ticker      string          `json:"ticker" db:"ticker"`
	Action      Action          `json:"action" db:"action"`
	Shares      decimal.Decimal `json:"shares" db:"shares"`
	Price       decimal.Decimal `json:"price" db:"price"`
}

// Dated reports whether the trade carries a usable execution timestamp.
func (t Trade) Dated() bool {
	return !t.Timestamp.IsZero()
}

// Holding is a derived per-ticker position: the share count still held and
// the volume-weighted average cost of those shares. Sales remove shares at
// the average without changing it.
type Holding struct {
	Shares   decimal.Decimal `json:"shares"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// RealizedLot records the gain or loss locked in by one valid sell.
type RealizedLot struct {
	Timestamp time.Time       `json:"timestamp"`
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	Gain      decimal.Decimal `json:"gain"`
}

// TradeIssue flags a ledger row the engine skipped or rejected during
// replay. Issues are warnings: they never abort a computation.
type TradeIssue struct {
	TradeID int64  `json:"trade_id"`
	Ticker  string `json:"ticker,omitempty"`
	Reason  string `json:"reason"`
}

// ValuePoint is one sample of total portfolio value over time.
type ValuePoint struct {
	Timestamp  time.Time       `json:"timestamp"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// PortfolioSnapshot is the engine's per-participant output: the replayed
// final state priced live, plus the daily value history.
//
// HoldingValues and LivePrices only carry tickers with a live quote; a held
// ticker absent from both was valued at cost basis inside TotalValue.
type PortfolioSnapshot struct {
	Participant       string                     `json:"participant"`
	Cash              decimal.Decimal            `json:"cash"`
	Holdings          map[string]Holding         `json:"holdings"`
	TotalValue        decimal.Decimal            `json:"total_value"`
	TotalRealizedPL   decimal.Decimal            `json:"total_realized_pl"`
	TotalUnrealizedPL decimal.Decimal            `json:"total_unrealized_pl"`
	HoldingValues     map[string]decimal.Decimal `json:"current_holdings_value"`
	LivePrices        map[string]decimal.Decimal `json:"current_holdings_price"`
	RealizedLots      []RealizedLot              `json:"realized_lots,omitempty"`
	ValueHistory      []ValuePoint               `json:"value_history"`
	Trades            []Trade                    `json:"trades"`
	Issues            []TradeIssue               `json:"issues,omitempty"`
}

// User is a registered competition participant.
type User struct {
	ID           int64     `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsAdmin      bool      `json:"is_admin" db:"is_admin"`
}
