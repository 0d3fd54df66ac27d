// Package store defines the persistence interface for the portfolio engine.
// Implementations include PostgreSQL (source of truth) and in-memory (for
// testing and single-node development).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/paperbull/portfolio-engine/internal/model"
)

var (
	// ErrTradeNotFound is returned when a trade ID does not exist.
	ErrTradeNotFound = errors.New("store: trade not found")

	// ErrUserNotFound is returned when a username does not exist.
	ErrUserNotFound = errors.New("store: user not found")

	// ErrUsernameTaken is returned when registering a username that already
	// exists (case-insensitive).
	ErrUsernameTaken = errors.New("store: username already taken")

	// ErrEmailTaken is returned when registering an email that already
	// exists (case-insensitive).
	ErrEmailTaken = errors.New("store: email already registered")
)

// Store is the persistence interface. PostgreSQL is the source of truth.
type Store interface {
	// --- Trade ledger ---

	// InsertTrade appends a trade and assigns its ID. A zero Timestamp is
	// stored as NULL (undated).
	InsertTrade(ctx context.Context, trade *model.Trade) error

	// InsertTrades appends a batch of trades atomically and returns how
	// many were written.
	InsertTrades(ctx context.Context, trades []model.Trade) (int, error)

	// GetTrade retrieves a single trade by ID.
	GetTrade(ctx context.Context, id int64) (*model.Trade, error)

	// ListTrades returns every trade in the ledger, dated rows first in
	// chronological order, undated rows last.
	ListTrades(ctx context.Context) ([]model.Trade, error)

	// ListTradesByParticipant returns one participant's trades in the same
	// order as ListTrades.
	ListTradesByParticipant(ctx context.Context, participant string) ([]model.Trade, error)

	// SetTradeTimestamp dates (or re-dates) a trade.
	SetTradeTimestamp(ctx context.Context, id int64, executedAt time.Time) error

	// DeleteTrade removes a trade by ID.
	DeleteTrade(ctx context.Context, id int64) error

	// DeleteTradesByParticipant removes all of a participant's trades and
	// returns how many were removed.
	DeleteTradesByParticipant(ctx context.Context, participant string) (int64, error)

	// --- Users ---

	// CreateUser persists a new user and assigns its ID. The very first
	// user registered becomes an administrator regardless of the IsAdmin
	// value passed in; the stored flag is written back to the argument.
	CreateUser(ctx context.Context, user *model.User) error

	// UserByUsername retrieves a user by username (case-insensitive).
	UserByUsername(ctx context.Context, username string) (*model.User, error)

	// ListUsers returns all users in registration order.
	ListUsers(ctx context.Context) ([]model.User, error)

	// DeleteUser removes a user by username (case-insensitive).
	DeleteUser(ctx context.Context, username string) error
}
