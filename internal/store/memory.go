package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/paperbull/portfolio-engine/internal/model"
)

// MemoryStore implements Store with in-memory slices. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	nextTradeID int64
	nextUserID  int64
	trades      []model.Trade
	users       []model.User
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextTradeID: 1, nextUserID: 1}
}

func (s *MemoryStore) InsertTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.insertLocked(t)
	return nil
}

func (s *MemoryStore) InsertTrades(_ context.Context, trades []model.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range trades {
		s.insertLocked(&trades[i])
	}
	return len(trades), nil
}

func (s *MemoryStore) insertLocked(t *model.Trade) {
	t.ID = s.nextTradeID
	s.nextTradeID++
	if !t.Timestamp.IsZero() {
		t.Timestamp = t.Timestamp.UTC()
	}
	s.trades = append(s.trades, *t)
}

func (s *MemoryStore) GetTrade(_ context.Context, id int64) (*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.trades {
		if t.ID == id {
			copy := t
			return &copy, nil
		}
	}
	return nil, ErrTradeNotFound
}

func (s *MemoryStore) ListTrades(_ context.Context) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedCopy(s.trades), nil
}

func (s *MemoryStore) ListTradesByParticipant(_ context.Context, participant string) ([]model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Trade
	for _, t := range s.trades {
		if t.Participant == participant {
			result = append(result, t)
		}
	}
	return sortedCopy(result), nil
}

func (s *MemoryStore) SetTradeTimestamp(_ context.Context, id int64, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.trades {
		if s.trades[i].ID == id {
			s.trades[i].Timestamp = executedAt.UTC()
			return nil
		}
	}
	return ErrTradeNotFound
}

func (s *MemoryStore) DeleteTrade(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.trades {
		if s.trades[i].ID == id {
			s.trades = append(s.trades[:i], s.trades[i+1:]...)
			return nil
		}
	}
	return ErrTradeNotFound
}

func (s *MemoryStore) DeleteTradesByParticipant(_ context.Context, participant string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []model.Trade
	var removed int64
	for _, t := range s.trades {
		if t.Participant == participant {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	s.trades = kept
	return removed, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, u.Username) {
			return ErrUsernameTaken
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrEmailTaken
		}
	}

	u.ID = s.nextUserID
	s.nextUserID++
	if len(s.users) == 0 {
		u.IsAdmin = true
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *MemoryStore) UserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			copy := u
			return &copy, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, len(s.users))
	copy(users, s.users)
	return users, nil
}

func (s *MemoryStore) DeleteUser(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, u := range s.users {
		if strings.EqualFold(u.Username, username) {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return nil
		}
	}
	return ErrUserNotFound
}

// sortedCopy returns trades ordered like the SQL store: dated rows first in
// chronological order, undated rows last, ties broken by ID.
func sortedCopy(trades []model.Trade) []model.Trade {
	out := make([]model.Trade, len(trades))
	copy(out, trades)
	slices.SortStableFunc(out, func(a, b model.Trade) int {
		switch {
		case a.Dated() && !b.Dated():
			return -1
		case !a.Dated() && b.Dated():
			return 1
		case a.Dated() && b.Dated() && !a.Timestamp.Equal(b.Timestamp):
			if a.Timestamp.Before(b.Timestamp) {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
