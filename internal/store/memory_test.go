package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTrade(participant, ticker string, ts time.Time) model.Trade {
	return model.Trade{
		Participant: participant,
		Timestamp:   ts,
		Ticker:      ticker,
		Action:      model.ActionBuy,
		Shares:      d(10),
		Price:       d(2.00),
	}
}

func newUser(username, email string) *model.User {
	return &model.User{
		Username:     username,
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
		RegisteredAt: time.Now().UTC(),
	}
}

func TestMemoryStore_InsertAssignsIDs(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	a := newTrade("alice", "SNDL", time.Now())
	b := newTrade("alice", "NOK", time.Now())
	if err := ms.InsertTrade(ctx, &a); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := ms.InsertTrade(ctx, &b); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Errorf("expected distinct non-zero ids, got %d and %d", a.ID, b.ID)
	}
}

func TestMemoryStore_ListOrdersUndatedLast(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	undated := model.Trade{Participant: "alice", Ticker: "NOK", Action: model.ActionBuy, Shares: d(1), Price: d(1)}
	late := newTrade("alice", "SNDL", now)
	early := newTrade("alice", "SNDL", now.AddDate(0, 0, -3))

	for _, tr := range []*model.Trade{&undated, &late, &early} {
		if err := ms.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	trades, err := ms.ListTrades(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(trades))
	}
	if trades[0].ID != early.ID || trades[1].ID != late.ID || trades[2].ID != undated.ID {
		t.Errorf("expected order early,late,undated; got %d,%d,%d",
			trades[0].ID, trades[1].ID, trades[2].ID)
	}
}

func TestMemoryStore_ListBreaksTimestampTiesByID(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	first := newTrade("alice", "SNDL", now)
	second := newTrade("alice", "NOK", now)
	for _, tr := range []*model.Trade{&first, &second} {
		if err := ms.InsertTrade(ctx, tr); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	trades, err := ms.ListTrades(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if trades[0].ID != first.ID || trades[1].ID != second.ID {
		t.Errorf("same-timestamp trades must keep insertion order: got %d,%d",
			trades[0].ID, trades[1].ID)
	}
}

func TestMemoryStore_ListByParticipant(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	a := newTrade("alice", "SNDL", time.Now())
	b := newTrade("bob", "NOK", time.Now())
	ms.InsertTrade(ctx, &a)
	ms.InsertTrade(ctx, &b)

	trades, err := ms.ListTradesByParticipant(ctx, "alice")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trades) != 1 || trades[0].Participant != "alice" {
		t.Errorf("expected only alice's trades, got %+v", trades)
	}
}

func TestMemoryStore_DeleteTrade(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	tr := newTrade("alice", "SNDL", time.Now())
	ms.InsertTrade(ctx, &tr)

	if err := ms.DeleteTrade(ctx, tr.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := ms.DeleteTrade(ctx, tr.ID); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("expected ErrTradeNotFound, got %v", err)
	}
}

func TestMemoryStore_DeleteTradesByParticipant(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for range 3 {
		tr := newTrade("alice", "SNDL", time.Now())
		ms.InsertTrade(ctx, &tr)
	}
	bob := newTrade("bob", "NOK", time.Now())
	ms.InsertTrade(ctx, &bob)

	removed, err := ms.DeleteTradesByParticipant(ctx, "alice")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 removed, got %d", removed)
	}
	remaining, _ := ms.ListTrades(ctx)
	if len(remaining) != 1 || remaining[0].Participant != "bob" {
		t.Errorf("bob's trades must survive, got %+v", remaining)
	}
}

func TestMemoryStore_SetTradeTimestamp(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	undated := model.Trade{Participant: "alice", Ticker: "NOK", Action: model.ActionBuy, Shares: d(1), Price: d(1)}
	ms.InsertTrade(ctx, &undated)

	when := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	if err := ms.SetTradeTimestamp(ctx, undated.ID, when); err != nil {
		t.Fatalf("set timestamp failed: %v", err)
	}

	got, _ := ms.GetTrade(ctx, undated.ID)
	if !got.Timestamp.Equal(when) {
		t.Errorf("expected %s, got %s", when, got.Timestamp)
	}
}

func TestMemoryStore_FirstUserBecomesAdmin(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	first := newUser("alice", "alice@example.com")
	second := newUser("bob", "bob@example.com")
	if err := ms.CreateUser(ctx, first); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := ms.CreateUser(ctx, second); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if !first.IsAdmin {
		t.Error("first registered user must be admin")
	}
	if second.IsAdmin {
		t.Error("second user must not be admin")
	}
}

func TestMemoryStore_UsernameCaseInsensitive(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if err := ms.CreateUser(ctx, newUser("Alice", "alice@example.com")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := ms.CreateUser(ctx, newUser("ALICE", "other@example.com")); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
	if err := ms.CreateUser(ctx, newUser("bob", "Alice@Example.com")); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	u, err := ms.UserByUsername(ctx, "aLiCe")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if u.Username != "Alice" {
		t.Errorf("expected stored casing preserved, got %s", u.Username)
	}
}

func TestMemoryStore_DeleteUser(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	ms.CreateUser(ctx, newUser("alice", "alice@example.com"))

	if err := ms.DeleteUser(ctx, "ALICE"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := ms.UserByUsername(ctx, "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryStore_InsertTradesBatch(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	batch := []model.Trade{
		newTrade("alice", "SNDL", time.Now()),
		newTrade("alice", "NOK", time.Now()),
	}
	n, err := ms.InsertTrades(ctx, batch)
	if err != nil {
		t.Fatalf("batch insert failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}
	if batch[0].ID == 0 || batch[1].ID == 0 {
		t.Error("batch insert must assign ids")
	}
}
