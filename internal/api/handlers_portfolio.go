package api

import (
	"net/http"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/model"
)

// LeaderboardEntry is one participant's row in GET /api/v1/leaderboard.
type LeaderboardEntry struct {
	Rank              int                `json:"rank"`
	Participant       string             `json:"participant"`
	TotalValue        decimal.Decimal    `json:"total_value"`
	PerformancePct    decimal.Decimal    `json:"performance_pct"`
	Cash              decimal.Decimal    `json:"cash"`
	TotalRealizedPL   decimal.Decimal    `json:"total_realized_pl"`
	TotalUnrealizedPL decimal.Decimal    `json:"total_unrealized_pl"`
	ValueHistory      []model.ValuePoint `json:"value_history"`
}

// GetPortfolio handles GET /api/v1/portfolio. Returns the caller's full
// snapshot: replayed state priced live plus the daily value history.
func (s *Service) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	trades, err := s.store.ListTradesByParticipant(ctx, user.Username)
	if err != nil {
		writeError(w, "failed to load trade history", http.StatusInternalServerError)
		return
	}

	snap, err := s.engine.ComputeOne(ctx, user.Username, trades)
	if err != nil {
		writeError(w, "valuation cancelled", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GetLeaderboard handles GET /api/v1/leaderboard. Every registered user
// appears, including those who have not traded yet, ranked by total value
// descending.
func (s *Service) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ledger, err := s.store.ListTrades(ctx)
	if err != nil {
		writeError(w, "failed to load ledger", http.StatusInternalServerError)
		return
	}
	snapshots, err := s.engine.Compute(ctx, ledger)
	if err != nil {
		writeError(w, "valuation cancelled", http.StatusServiceUnavailable)
		return
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		writeError(w, "failed to load users", http.StatusInternalServerError)
		return
	}

	initial := s.engine.InitialCapital()
	hundred := decimal.NewFromInt(100)

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		snap, ok := snapshots[u.Username]
		if !ok {
			// Registered but not traded: flat at initial capital.
			entries = append(entries, LeaderboardEntry{
				Participant:    u.Username,
				TotalValue:     initial,
				PerformancePct: decimal.Zero,
				Cash:           initial,
				ValueHistory:   []model.ValuePoint{},
			})
			continue
		}
		entries = append(entries, LeaderboardEntry{
			Participant:       u.Username,
			TotalValue:        snap.TotalValue,
			PerformancePct:    snap.TotalValue.Sub(initial).Div(initial).Mul(hundred).Round(2),
			Cash:              snap.Cash,
			TotalRealizedPL:   snap.TotalRealizedPL,
			TotalUnrealizedPL: snap.TotalUnrealizedPL,
			ValueHistory:      snap.ValueHistory,
		})
	}

	slices.SortStableFunc(entries, func(a, b LeaderboardEntry) int {
		return b.TotalValue.Cmp(a.TotalValue)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	writeJSON(w, http.StatusOK, entries)
}
