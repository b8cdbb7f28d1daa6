package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/auth"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the user lookups needed by auth handlers. Lookups only
// return active users.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByUsername(ctx context.Context, username string) (database.User, error)
	GetUserByPin(ctx context.Context, pin string) (database.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// AuthHandler serves login for back-office (password) and counter or
// kitchen terminals (PIN).
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/pin-login", h.PinLogin)
	r.Post("/auth/refresh", h.Refresh)
}

// --- Request / Response types ---

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type pinLoginRequest struct {
	Pin string `json:"pin"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	Role     string    `json:"role"`
}

var errBadCredentials = errors.New("invalid credentials")

// Roles that may sign in with a PIN. Admins always use a password.
var pinRoles = map[string]bool{
	enum.UserRoleCashier: true,
	enum.UserRoleKitchen: true,
}

// --- Handlers ---

// Login handles POST /auth/login (username + password).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username and password are required"})
		return
	}

	h.signIn(w, "get user by username", func() (database.User, error) {
		user, err := h.store.GetUserByUsername(r.Context(), req.Username)
		if err != nil {
			return user, err
		}
		if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
			return database.User{}, errBadCredentials
		}
		return user, nil
	})
}

// PinLogin handles POST /auth/pin-login. The store has a single till, so
// the PIN alone identifies the user.
func (h *AuthHandler) PinLogin(w http.ResponseWriter, r *http.Request) {
	var req pinLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Pin == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pin is required"})
		return
	}

	h.signIn(w, "get user by pin", func() (database.User, error) {
		user, err := h.store.GetUserByPin(r.Context(), req.Pin)
		if err != nil {
			return user, err
		}
		if !pinRoles[user.Role] {
			return database.User{}, errBadCredentials
		}
		return user, nil
	})
}

// Refresh handles POST /auth/refresh, trading a refresh token for a new pair.
// The user's current role is read again so a demotion takes effect here.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "refresh_token is required"})
		return
	}

	userID, err := auth.ValidateRefreshToken(h.jwtSecret, req.RefreshToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid refresh token"})
		return
	}

	h.signIn(w, "get user by id", func() (database.User, error) {
		return h.store.GetUserByID(r.Context(), userID)
	})
}

// --- Helpers ---

// signIn resolves the user and answers with a token pair. A missing user
// and a failed check look the same to the caller.
func (h *AuthHandler) signIn(w http.ResponseWriter, op string, lookup func() (database.User, error)) {
	user, err := lookup()
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, errBadCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": errBadCredentials.Error()})
			return
		}
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pair, err := auth.IssuePair(h.jwtSecret, user.ID, user.Role)
	if err != nil {
		log.Printf("ERROR: issue tokens: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		User: userResponse{
			ID:       user.ID,
			Username: user.Username,
			FullName: user.FullName,
			Role:     user.Role,
		},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}
