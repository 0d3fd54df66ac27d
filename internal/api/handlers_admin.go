package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/store"
)

// SetTimestampRequest is the JSON body for
// PUT /api/v1/admin/trades/{tradeID}/timestamp.
type SetTimestampRequest struct {
	Timestamp time.Time `json:"timestamp"`
}

// AdminListUsers handles GET /api/v1/admin/users.
func (s *Service) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, "failed to list users", http.StatusInternalServerError)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// AdminDeleteUser handles DELETE /api/v1/admin/users/{username}. Removes
// the user, their trades, and any live sessions.
func (s *Service) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	ctx := r.Context()

	if err := s.store.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeError(w, "user not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to delete user", http.StatusInternalServerError)
		return
	}
	removed, err := s.store.DeleteTradesByParticipant(ctx, username)
	if err != nil {
		writeError(w, "user deleted but trades could not be removed", http.StatusInternalServerError)
		return
	}
	s.sessions.RevokeUser(username)

	slog.Info("user deleted by admin",
		"username", username,
		"trades_removed", removed,
		"admin", currentUser(r).Username,
	)
	s.broadcast(WSMessage{Type: EventLeaderboardUpdated, Participant: username})

	w.WriteHeader(http.StatusNoContent)
}

// AdminListTrades handles GET /api/v1/admin/trades. Returns the full
// multi-participant ledger.
func (s *Service) AdminListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTrades(r.Context())
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// AdminDeleteTrade handles DELETE /api/v1/admin/trades/{tradeID}. Unlike
// the owner-scoped delete, this removes any participant's trade.
func (s *Service) AdminDeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tradeID"), 10, 64)
	if err != nil {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteTrade(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrTradeNotFound) {
			writeError(w, "trade not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to delete trade", http.StatusInternalServerError)
		return
	}

	slog.Info("trade deleted by admin", "trade_id", id, "admin", currentUser(r).Username)
	s.broadcast(WSMessage{Type: EventTradeDeleted, TradeID: id})

	w.WriteHeader(http.StatusNoContent)
}

// AdminSetTradeTimestamp handles PUT /api/v1/admin/trades/{tradeID}/timestamp.
// Dating an undated row is the one permitted edit to a persisted trade.
func (s *Service) AdminSetTradeTimestamp(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tradeID"), 10, 64)
	if err != nil {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	var req SetTimestampRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Timestamp.IsZero() {
		writeError(w, "timestamp is required", http.StatusBadRequest)
		return
	}

	if err := s.store.SetTradeTimestamp(r.Context(), id, req.Timestamp); err != nil {
		if errors.Is(err, store.ErrTradeNotFound) {
			writeError(w, "trade not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to update timestamp", http.StatusInternalServerError)
		return
	}

	slog.Info("trade timestamp updated",
		"trade_id", id,
		"timestamp", req.Timestamp.UTC(),
		"admin", currentUser(r).Username,
	)
	w.WriteHeader(http.StatusNoContent)
}
