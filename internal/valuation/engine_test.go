package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/prices"
)

// newTestEngine creates an engine against a static price source with a
// pinned clock.
func newTestEngine(t *testing.T, quotes map[string]decimal.Decimal, charts map[string]prices.Series, now time.Time) *Engine {
	t.Helper()
	e := NewEngine(prices.NewStatic(quotes, charts), decimal.Zero)
	e.now = func() time.Time { return now }
	return e
}

func TestCompute_EmptyLedger(t *testing.T) {
	e := newTestEngine(t, nil, nil, testDay)

	out, err := e.Compute(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty map, got %d entries", len(out))
	}
}

func TestCompute_SingleBuySnapshot(t *testing.T) {
	now := testDay.AddDate(0, 0, 2)
	e := newTestEngine(t,
		map[string]decimal.Decimal{"SNDL": d(2.50)},
		map[string]prices.Series{"SNDL": prices.FlatSeries(d(2.50), testDay, now)},
		now,
	)

	out, err := e.Compute(context.Background(), []model.Trade{
		tr(1, "SNDL", model.ActionBuy, 100, 2.00, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, ok := out["alice"]
	if !ok {
		t.Fatal("expected snapshot for alice")
	}
	if !snap.Cash.Equal(d(300)) {
		t.Errorf("expected cash=300, got %s", snap.Cash)
	}
	// 300 cash + 100 * 2.50 live.
	if !snap.TotalValue.Equal(d(550)) {
		t.Errorf("expected total_value=550, got %s", snap.TotalValue)
	}
	// (2.50 - 2.00) * 100.
	if !snap.TotalUnrealizedPL.Equal(d(50)) {
		t.Errorf("expected unrealized=50, got %s", snap.TotalUnrealizedPL)
	}
	if !snap.TotalRealizedPL.IsZero() {
		t.Errorf("expected realized=0, got %s", snap.TotalRealizedPL)
	}
	if !snap.LivePrices["SNDL"].Equal(d(2.50)) {
		t.Errorf("expected live price recorded, got %v", snap.LivePrices)
	}
	if !snap.HoldingValues["SNDL"].Equal(d(250)) {
		t.Errorf("expected holding value 250, got %v", snap.HoldingValues)
	}
}

func TestCompute_MissingLivePriceFallsBackToCost(t *testing.T) {
	now := testDay.AddDate(0, 0, 1)
	e := newTestEngine(t, nil, nil, now) // no quotes at all

	out, err := e.Compute(context.Background(), []model.Trade{
		tr(1, "SNDL", model.ActionBuy, 100, 2.00, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := out["alice"]
	// Cost basis keeps the position in the total: 300 + 100*2.00 = 500.
	if !snap.TotalValue.Equal(d(500)) {
		t.Errorf("expected cost-basis fallback total 500, got %s", snap.TotalValue)
	}
	if !snap.TotalUnrealizedPL.IsZero() {
		t.Errorf("no live comparison possible, expected unrealized=0, got %s", snap.TotalUnrealizedPL)
	}
	if _, ok := snap.LivePrices["SNDL"]; ok {
		t.Error("ticker without a quote must be absent from LivePrices")
	}
	if _, ok := snap.HoldingValues["SNDL"]; ok {
		t.Error("ticker without a quote must be absent from HoldingValues")
	}
}

func TestCompute_Idempotent(t *testing.T) {
	now := testDay.AddDate(0, 0, 3)
	mk := func() *Engine {
		return newTestEngine(t,
			map[string]decimal.Decimal{"SNDL": d(2.10), "NOK": d(3.40)},
			map[string]prices.Series{
				"SNDL": prices.FlatSeries(d(2.10), testDay, now),
				"NOK":  prices.FlatSeries(d(3.40), testDay, now),
			},
			now,
		)
	}
	ledger := []model.Trade{
		tr(1, "SNDL", model.ActionBuy, 100, 2.00, 0),
		tr(2, "NOK", model.ActionBuy, 40, 3.00, 5),
		tr(3, "SNDL", model.ActionSell, 50, 2.20, 30),
	}

	a, err := mk().Compute(context.Background(), ledger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := mk().Compute(context.Background(), ledger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sa, sb := a["alice"], b["alice"]
	if !sa.TotalValue.Equal(sb.TotalValue) || !sa.Cash.Equal(sb.Cash) ||
		!sa.TotalRealizedPL.Equal(sb.TotalRealizedPL) ||
		!sa.TotalUnrealizedPL.Equal(sb.TotalUnrealizedPL) {
		t.Errorf("identical inputs must yield identical snapshots: %+v vs %+v", sa, sb)
	}
	if len(sa.ValueHistory) != len(sb.ValueHistory) {
		t.Fatalf("history lengths differ: %d vs %d", len(sa.ValueHistory), len(sb.ValueHistory))
	}
	for i := range sa.ValueHistory {
		if !sa.ValueHistory[i].TotalValue.Equal(sb.ValueHistory[i].TotalValue) {
			t.Errorf("history point %d differs", i)
		}
	}
}

func TestCompute_ParticipantsIndependent(t *testing.T) {
	now := testDay.AddDate(0, 0, 1)
	mk := func() *Engine { return newTestEngine(t, map[string]decimal.Decimal{"SNDL": d(2.00)}, nil, now) }

	aliceTrade := tr(1, "SNDL", model.ActionBuy, 10, 2.00, 0)
	bobTrade := tr(2, "SNDL", model.ActionBuy, 99, 2.00, 0)
	bobTrade.Participant = "bob"

	both, err := mk().Compute(context.Background(), []model.Trade{aliceTrade, bobTrade})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	aliceOnly, err := mk().Compute(context.Background(), []model.Trade{aliceTrade})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !both["alice"].TotalValue.Equal(aliceOnly["alice"].TotalValue) {
		t.Errorf("removing bob's trades changed alice's snapshot: %s vs %s",
			both["alice"].TotalValue, aliceOnly["alice"].TotalValue)
	}
	if _, ok := both["bob"]; !ok {
		t.Error("expected snapshot for bob")
	}
}

func TestCompute_UndatedRowsDoNotDropParticipant(t *testing.T) {
	now := testDay.AddDate(0, 0, 1)
	e := newTestEngine(t, nil, nil, now)

	undated := model.Trade{ID: 7, Participant: "alice", Ticker: "NOK", Action: model.ActionBuy, Shares: d(5), Price: d(2)}
	out, err := e.Compute(context.Background(), []model.Trade{
		undated,
		tr(1, "SNDL", model.ActionBuy, 10, 2.00, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, ok := out["alice"]
	if !ok {
		t.Fatal("participant with some undated rows must still be computed")
	}
	if !snap.Cash.Equal(d(480)) {
		t.Errorf("undated row must not affect cash: got %s", snap.Cash)
	}
	found := false
	for _, issue := range snap.Issues {
		if issue.TradeID == 7 {
			found = true
		}
	}
	if !found {
		t.Error("expected undated trade surfaced as an issue")
	}
}

func TestCompute_OnlyUndatedRows(t *testing.T) {
	e := newTestEngine(t, nil, nil, testDay)

	out, err := e.Compute(context.Background(), []model.Trade{
		{ID: 1, Participant: "alice", Ticker: "NOK", Action: model.ActionBuy, Shares: d(5), Price: d(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := out["alice"]
	if !snap.TotalValue.Equal(d(500)) {
		t.Errorf("expected untouched capital 500, got %s", snap.TotalValue)
	}
	if len(snap.ValueHistory) == 0 {
		t.Error("expected at least the baseline history point")
	}
}

func TestCompute_Cancelled(t *testing.T) {
	e := newTestEngine(t, nil, nil, testDay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Compute(ctx, []model.Trade{tr(1, "SNDL", model.ActionBuy, 1, 1, 0)})
	if err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestComputeOne_NoTradesBaseline(t *testing.T) {
	e := newTestEngine(t, nil, nil, testDay)

	snap, err := e.ComputeOne(context.Background(), "carol", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !snap.TotalValue.Equal(d(500)) {
		t.Errorf("expected baseline 500, got %s", snap.TotalValue)
	}
	if len(snap.ValueHistory) != 1 {
		t.Errorf("expected single baseline point, got %d", len(snap.ValueHistory))
	}
}

func TestNewEngine_DefaultCapital(t *testing.T) {
	e := NewEngine(prices.NewStatic(nil, nil), decimal.Zero)
	if !e.InitialCapital().Equal(d(500)) {
		t.Errorf("expected default capital 500, got %s", e.InitialCapital())
	}
}
