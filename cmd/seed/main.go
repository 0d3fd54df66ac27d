// Command seed loads demo users and a small trade ledger into the
// configured store for local development. Safe to run more than once:
// already-registered usernames are skipped along with their trades.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/auth"
	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/store"
)

type demoUser struct {
	username string
	name     string
	email    string
	trades   []model.Trade
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	password := flag.String("password", "changeme1", "password for all demo accounts")
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
	if err := st.EnsureSchema(ctx); err != nil {
		slog.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		slog.Error("invalid demo password", "err", err)
		os.Exit(1)
	}

	users, trades, err := seed(ctx, st, hash)
	if err != nil {
		slog.Error("seed failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("seeded %d users and %d trades\n", users, trades)
}

func seed(ctx context.Context, st store.Store, passwordHash string) (int, int, error) {
	now := time.Now().UTC()
	ago := func(days int) time.Time { return now.AddDate(0, 0, -days) }

	demos := []demoUser{
		{
			username: "alice", name: "Alice Chen", email: "alice@example.com",
			trades: []model.Trade{
				trade("SNDL", model.ActionBuy, "100", "1.85", ago(30)),
				trade("NOK", model.ActionBuy, "40", "3.90", ago(21)),
				trade("SNDL", model.ActionSell, "50", "2.10", ago(10)),
			},
		},
		{
			username: "bob", name: "Bob Okafor", email: "bob@example.com",
			trades: []model.Trade{
				trade("PLUG", model.ActionBuy, "60", "2.45", ago(25)),
				trade("PLUG", model.ActionBuy, "40", "2.80", ago(14)),
				trade("PLUG", model.ActionSell, "30", "3.05", ago(5)),
			},
		},
		{
			username: "carol", name: "Carol Diaz", email: "carol@example.com",
			trades: []model.Trade{
				trade("TLRY", model.ActionBuy, "120", "1.55", ago(18)),
			},
		},
	}

	usersSeeded, tradesSeeded := 0, 0
	for _, demo := range demos {
		user := &model.User{
			Username:     demo.username,
			Name:         demo.name,
			Email:        demo.email,
			PasswordHash: passwordHash,
			RegisteredAt: now,
		}
		err := st.CreateUser(ctx, user)
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			slog.Info("demo user already present, skipping", "username", demo.username)
			continue
		}
		if err != nil {
			return usersSeeded, tradesSeeded, fmt.Errorf("create user %s: %w", demo.username, err)
		}
		usersSeeded++

		for i := range demo.trades {
			demo.trades[i].Participant = demo.username
		}
		n, err := st.InsertTrades(ctx, demo.trades)
		if err != nil {
			return usersSeeded, tradesSeeded, fmt.Errorf("insert trades for %s: %w", demo.username, err)
		}
		tradesSeeded += n
	}
	return usersSeeded, tradesSeeded, nil
}

func trade(ticker string, action model.Action, shares, price string, ts time.Time) model.Trade {
	return model.Trade{
		Timestamp: ts,
		Ticker:    ticker,
		Action:    action,
		Shares:    decimal.RequireFromString(shares),
		Price:     decimal.RequireFromString(price),
	}
}
