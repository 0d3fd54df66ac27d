package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/paperbull/portfolio-engine/internal/auth"
	"github.com/paperbull/portfolio-engine/internal/model"
	"github.com/paperbull/portfolio-engine/internal/store"
)

// RegisterRequest is the JSON body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionResponse is returned from register and login.
type SessionResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Register handles POST /api/v1/auth/register.
// The first registered user becomes an administrator.
func (s *Service) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" {
		writeError(w, "username is required", http.StatusBadRequest)
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, "a valid email is required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := &model.User{
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) || errors.Is(err, store.ErrEmailTaken) {
			writeError(w, err.Error(), http.StatusConflict)
			return
		}
		writeError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	slog.Info("user registered", "username", user.Username, "admin", user.IsAdmin)

	writeJSON(w, http.StatusCreated, SessionResponse{
		Token: s.sessions.Create(user.Username),
		User:  *user,
	})
}

// Login handles POST /api/v1/auth/login.
func (s *Service) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.UserByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		// Same response as a bad password so usernames cannot be probed.
		writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Token: s.sessions.Create(user.Username),
		User:  *user,
	})
}

// Logout handles POST /api/v1/auth/logout.
func (s *Service) Logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Revoke(bearerToken(r))
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/me.
func (s *Service) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
