package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id          BIGSERIAL PRIMARY KEY,
	participant TEXT NOT NULL,
	executed_at TIMESTAMPTZ,
	ticker      TEXT NOT NULL,
	action      TEXT NOT NULL CHECK (action IN ('Buy', 'Sell')),
	shares      NUMERIC NOT NULL CHECK (shares > 0),
	price       NUMERIC NOT NULL CHECK (price > 0)
);

CREATE INDEX IF NOT EXISTS trades_participant_idx ON trades (participant, executed_at);

CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	registered_at TIMESTAMPTZ NOT NULL,
	is_admin      BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE UNIQUE INDEX IF NOT EXISTS users_username_idx ON users (LOWER(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_idx ON users (LOWER(email));
`

// EnsureSchema creates the tables and indexes the engine needs. It is
// idempotent, so it is safe to run on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	return insertTrade(ctx, s.pool, t)
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTrade(ctx context.Context, q rowQuerier, t *model.Trade) error {
	var executedAt *time.Time
	if !t.Timestamp.IsZero() {
		ts := t.Timestamp.UTC()
		executedAt = &ts
	}

	err := q.QueryRow(ctx,
		`INSERT INTO trades (participant, executed_at, ticker, action, shares, price)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC)
		 RETURNING id`,
		t.Participant, executedAt, t.Ticker, t.Action,
		t.Shares.String(), t.Price.String(),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTrades(ctx context.Context, trades []model.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin insert trades: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range trades {
		if err := insertTrade(ctx, tx, &trades[i]); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit insert trades: %w", err)
	}
	return len(trades), nil
}

const tradeColumns = `id, participant, executed_at, ticker, action, shares::TEXT, price::TEXT`

func (s *PostgresStore) GetTrade(ctx context.Context, id int64) (*model.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)

	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trade %d: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 ORDER BY executed_at NULLS LAST, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) ListTradesByParticipant(ctx context.Context, participant string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM trades
		 WHERE participant = $1
		 ORDER BY executed_at NULLS LAST, id`, participant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *PostgresStore) SetTradeTimestamp(ctx context.Context, id int64, executedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE trades SET executed_at = $2 WHERE id = $1`,
		id, executedAt.UTC())
	if err != nil {
		return fmt.Errorf("set trade %d timestamp: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTrade(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trade %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTradeNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTradesByParticipant(ctx context.Context, participant string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM trades WHERE participant = $1`, participant)
	if err != nil {
		return 0, fmt.Errorf("delete trades for %s: %w", participant, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	// The first registered user becomes an administrator. The subquery and
	// insert run in a single statement, so concurrent first registrations
	// cannot both win.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, name, email, password_hash, registered_at, is_admin)
		 VALUES ($1, $2, $3, $4, $5, $6 OR NOT EXISTS (SELECT 1 FROM users))
		 RETURNING id, is_admin`,
		u.Username, u.Name, u.Email, u.PasswordHash, u.RegisteredAt.UTC(), u.IsAdmin,
	).Scan(&u.ID, &u.IsAdmin)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return ErrEmailTaken
			}
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	return nil
}

const userColumns = `id, username, name, email, password_hash, registered_at, is_admin`

func (s *PostgresStore) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username).
		Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.PasswordHash, &u.RegisteredAt, &u.IsAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY registered_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Email,
			&u.PasswordHash, &u.RegisteredAt, &u.IsAdmin); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) DeleteUser(ctx context.Context, username string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// tradeScanner is satisfied by both pgx.Row and pgx.Rows.
type tradeScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row tradeScanner) (*model.Trade, error) {
	var t model.Trade
	var executedAt *time.Time
	var sharesS, priceS string

	if err := row.Scan(&t.ID, &t.Participant, &executedAt, &t.Ticker, &t.Action,
		&sharesS, &priceS); err != nil {
		return nil, err
	}

	if executedAt != nil {
		t.Timestamp = executedAt.UTC()
	}
	t.Shares, _ = decimal.NewFromString(sharesS)
	t.Price, _ = decimal.NewFromString(priceS)

	return &t, nil
}

func scanTrades(rows pgx.Rows) ([]model.Trade, error) {
	var trades []model.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}
