// Package api provides the HTTP surface of the trading competition:
// registration and login, trade recording and deletion, CSV import,
// portfolio and leaderboard queries, and the admin endpoints.
//
// All monetary values use shopspring/decimal — never float64 for money.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/paperbull/portfolio-engine/internal/auth"
	"github.com/paperbull/portfolio-engine/internal/metrics"
	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/store"
	"github.com/paperbull/portfolio-engine/internal/valuation"
)

// Service wires the trade ledger, the valuation engine, and the session
// registry behind the HTTP API.
type Service struct {
	store    store.Store
	engine   *valuation.Engine
	sessions *auth.Sessions
	wsHub    *WSHub // optional; nil disables broadcasts
}

// NewService creates the API service. Pass nil for hub if WebSocket
// broadcasting is not needed.
func NewService(st store.Store, engine *valuation.Engine, sessions *auth.Sessions, hub *WSHub) *Service {
	return &Service{
		store:    st,
		engine:   engine,
		sessions: sessions,
		wsHub:    hub,
	}
}

// Router builds the chi router with the full middleware stack.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"portfolio-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.Register)
		r.Post("/auth/login", s.Login)

		if s.wsHub != nil {
			// WebSocket endpoint for real-time ledger events.
			r.Get("/ws", s.wsHub.HandleWS)
		}

		// Everything below requires a session.
		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Post("/auth/logout", s.Logout)
			r.Get("/me", s.Me)

			r.Post("/trades", s.RecordTrade)
			r.Get("/trades", s.ListTrades)
			r.Delete("/trades/{tradeID}", s.DeleteTrade)
			r.Post("/trades/import", s.ImportTrades)

			r.Get("/portfolio", s.GetPortfolio)
			r.Get("/leaderboard", s.GetLeaderboard)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.requireAdmin)

				r.Get("/users", s.AdminListUsers)
				r.Delete("/users/{username}", s.AdminDeleteUser)
				r.Get("/trades", s.AdminListTrades)
				r.Delete("/trades/{tradeID}", s.AdminDeleteTrade)
				r.Put("/trades/{tradeID}/timestamp", s.AdminSetTradeTimestamp)
			})
		})
	})

	return r
}

// --- Session middleware ---

type contextKey string

const userKey contextKey = "user"

// requireSession resolves a Bearer token into a user and puts it on the
// request context.
func (s *Service) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		username, ok := s.sessions.Resolve(token)
		if !ok {
			writeError(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		user, err := s.store.UserByUsername(r.Context(), username)
		if err != nil {
			// The user was deleted out from under a live session.
			s.sessions.Revoke(token)
			writeError(w, "invalid or expired session", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// requireAdmin gates the admin routes. Must run after requireSession.
func (s *Service) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin {
			writeError(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentUser returns the session user. Only valid on routes behind
// requireSession.
func currentUser(r *http.Request) *model.User {
	return r.Context().Value(userKey).(*model.User)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return token
	}
	return ""
}

// --- Response helpers ---

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
