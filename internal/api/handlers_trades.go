package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/paperbull/portfolio-engine/internal/impexp"
	"github.com/paperbull/portfolio-engine/internal/metrics"
	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/store"
	"github.com/paperbull/portfolio-engine/internal/valuation"
)

// RecordTradeRequest is the JSON body for POST /api/v1/trades.
type RecordTradeRequest struct {
	Ticker string          `json:"ticker"`
	Action model.Action    `json:"action"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

// ImportResponse is returned from POST /api/v1/trades/import.
type ImportResponse struct {
	Accepted int               `json:"accepted"`
	Rejected []impexp.RowError `json:"rejected,omitempty"`
}

// RecordTrade handles POST /api/v1/trades.
// Sells are checked against the caller's replayed holdings and buys against
// replayed cash, so the ledger never accumulates rows the engine would
// reject on replay.
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	var req RecordTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if !model.ValidTicker(req.Ticker) {
		writeError(w, "invalid ticker symbol", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		writeError(w, "action must be Buy or Sell", http.StatusBadRequest)
		return
	}
	if req.Shares.LessThanOrEqual(decimal.Zero) {
		writeError(w, "shares must be positive", http.StatusBadRequest)
		return
	}
	if req.Price.LessThanOrEqual(decimal.Zero) {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user := currentUser(r)

	trade := model.Trade{
		Participant: user.Username,
		Timestamp:   time.Now().UTC(),
		Ticker:      req.Ticker,
		Action:      req.Action,
		Shares:      req.Shares,
		Price:       req.Price,
	}

	// Replay the caller's ledger to validate the proposed trade against
	// their current cash and holdings.
	existing, err := s.store.ListTradesByParticipant(ctx, user.Username)
	if err != nil {
		writeError(w, "failed to load trade history", http.StatusInternalServerError)
		return
	}
	state := valuation.StateFor(s.engine.InitialCapital(), existing)
	if err := valuation.CheckTrade(state, trade); err != nil {
		metrics.TradesRejected.WithLabelValues(rejectionReason(err)).Inc()
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := s.store.InsertTrade(ctx, &trade); err != nil {
		writeError(w, "failed to record trade", http.StatusInternalServerError)
		return
	}
	metrics.TradesRecorded.WithLabelValues(string(trade.Action)).Inc()

	slog.Info("trade recorded",
		"trade_id", trade.ID,
		"participant", trade.Participant,
		"ticker", trade.Ticker,
		"action", trade.Action,
		"shares", trade.Shares.String(),
		"price", trade.Price.String(),
	)

	s.broadcast(WSMessage{
		Type:        EventTradeRecorded,
		Participant: trade.Participant,
		TradeID:     trade.ID,
		Ticker:      trade.Ticker,
		Action:      string(trade.Action),
		Shares:      trade.Shares.String(),
		Price:       trade.Price.String(),
	})

	writeJSON(w, http.StatusCreated, trade)
}

// ListTrades handles GET /api/v1/trades. Returns the caller's trades.
func (s *Service) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.ListTradesByParticipant(r.Context(), currentUser(r).Username)
	if err != nil {
		writeError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []model.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// DeleteTrade handles DELETE /api/v1/trades/{tradeID}. Owner-scoped: a
// trade belonging to someone else reads as not found.
func (s *Service) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tradeID"), 10, 64)
	if err != nil {
		writeError(w, "invalid trade id", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user := currentUser(r)

	trade, err := s.store.GetTrade(ctx, id)
	if errors.Is(err, store.ErrTradeNotFound) {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeError(w, "failed to load trade", http.StatusInternalServerError)
		return
	}
	if trade.Participant != user.Username {
		// Do not reveal other participants' trade ids.
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	if err := s.store.DeleteTrade(ctx, id); err != nil {
		writeError(w, "failed to delete trade", http.StatusInternalServerError)
		return
	}

	slog.Info("trade deleted", "trade_id", id, "participant", user.Username)
	s.broadcast(WSMessage{Type: EventTradeDeleted, Participant: user.Username, TradeID: id})

	w.WriteHeader(http.StatusNoContent)
}

// ImportTrades handles POST /api/v1/trades/import. The body is a CSV file;
// parsed rows are stamped with the caller as participant and appended in
// one batch.
func (s *Service) ImportTrades(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	result, err := impexp.Parse(r.Body, user.Username)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	accepted := 0
	if len(result.Trades) > 0 {
		accepted, err = s.store.InsertTrades(r.Context(), result.Trades)
		if err != nil {
			writeError(w, "failed to save imported trades", http.StatusInternalServerError)
			return
		}
		for _, trade := range result.Trades {
			metrics.TradesRecorded.WithLabelValues(string(trade.Action)).Inc()
		}
	}

	slog.Info("csv import complete",
		"participant", user.Username,
		"accepted", accepted,
		"rejected", len(result.Rejected),
	)
	s.broadcast(WSMessage{Type: EventLeaderboardUpdated, Participant: user.Username})

	writeJSON(w, http.StatusOK, ImportResponse{Accepted: accepted, Rejected: result.Rejected})
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// rejectionReason maps intake-check errors to stable metric labels.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, valuation.ErrInsufficientCash):
		return "insufficient_cash"
	case errors.Is(err, valuation.ErrTickerNotHeld):
		return "ticker_not_held"
	case errors.Is(err, valuation.ErrInsufficientShares):
		return "insufficient_shares"
	}
	return "other"
}
