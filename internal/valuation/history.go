package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/prices"
)

const day = 24 * time.Hour

// buildHistory walks calendar days from the participant's first trade date
// through today, sampling total portfolio value at each day's close. It is
// an incremental fold: the replay state carries forward day to day, which
// yields the same output as re-replaying the filtered ledger per day.
//
// trades must be dated and chronologically sorted. Held tickers are valued
// at the as-of close for the day; a ticker with no usable close contributes
// zero for that day. The returned state is the full replay of all trades,
// including any dated after today.
func buildHistory(initialCash decimal.Decimal, trades []model.Trade, closes map[string]prices.Series, today time.Time) ([]model.ValuePoint, *State) {
	st := newState(initialCash)
	if len(trades) == 0 {
		return []model.ValuePoint{{Timestamp: today, TotalValue: initialCash}}, st
	}

	// Baseline point one second before the first trade's day so charts
	// start at the initial capital and timestamps stay sorted: daily
	// samples are stamped at midnight, so the baseline must sit before
	// the first day's midnight, not merely before the trade itself.
	firstDay := prices.DayOf(trades[0].Timestamp)
	points := []model.ValuePoint{{Timestamp: firstDay.Add(-time.Second), TotalValue: initialCash}}

	i := 0
	last := prices.DayOf(today)
	for d := firstDay; !d.After(last); d = d.Add(day) {
		cutoff := d.Add(day)
		for i < len(trades) && trades[i].Timestamp.Before(cutoff) {
			st.apply(trades[i])
			i++
		}
		points = append(points, model.ValuePoint{
			Timestamp:  d,
			TotalValue: st.Cash.Add(holdingsValueAsOf(st.Holdings, closes, d)),
		})
	}

	// Rows dated after today still count toward the final state.
	for ; i < len(trades); i++ {
		st.apply(trades[i])
	}
	return points, st
}

// holdingsValueAsOf prices a holdings map at the as-of close for one day.
func holdingsValueAsOf(holdings map[string]model.Holding, closes map[string]prices.Series, d time.Time) decimal.Decimal {
	total := decimal.Zero
	for ticker, h := range holdings {
		series, ok := closes[ticker]
		if !ok {
			continue
		}
		px, ok := series.CloseAsOf(d)
		if !ok {
			continue
		}
		total = total.Add(h.Shares.Mul(px))
	}
	return total
}
