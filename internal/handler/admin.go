package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/middleware"
	"github.com/kopibar/pos/internal/service"
)

// SessionServicer defines the session ledger methods needed by admin handlers.
// Satisfied by *service.SessionService.
type SessionServicer interface {
	OpenDay(ctx context.Context) (*database.Session, error)
	CloseDay(ctx context.Context) (*service.CloseSummary, error)
	Current(ctx context.Context) (*database.Session, error)
	History(ctx context.Context, page, limit int) (*service.SessionPage, error)
	Detail(ctx context.Context, id uuid.UUID) (*service.SessionDetail, error)
}

// StateToggler reads and flips the process-wide toggles.
// Satisfied by *appstate.Store.
type StateToggler interface {
	Snapshot() appstate.State
	SetMaintenance(ctx context.Context, on bool) (appstate.State, error)
	SetTestMode(ctx context.Context, on bool) (appstate.State, error)
}

// AnalyticsInvalidator drops cached analytics after sales change.
// Satisfied by *service.AnalyticsService.
type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context)
}

// AnalyticsGetter is satisfied by *service.AnalyticsService.
type AnalyticsGetter interface {
	AnalyticsInvalidator
	Get(ctx context.Context, rng string) (*service.Analytics, error)
}

// AdminHandler handles day open/close, history, toggles and analytics.
type AdminHandler struct {
	sessions  SessionServicer
	state     StateToggler
	analytics AnalyticsGetter
	hub       Broadcaster
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(sessions SessionServicer, state StateToggler, analytics AnalyticsGetter, hub Broadcaster) *AdminHandler {
	return &AdminHandler{sessions: sessions, state: state, analytics: analytics, hub: hub}
}

// RegisterRoutes registers admin endpoints on the given Chi router.
// Expected to be mounted at /admin behind RequireRole(ADMIN), except
// status which every terminal polls (see RegisterStatusRoute).
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/open-day", h.OpenDay)
	r.Post("/close-day", h.CloseDay)
	r.Get("/history", h.History)
	r.Get("/history/{id}", h.HistoryDetail)
	r.Put("/maintenance", h.SetMaintenance)
	r.Put("/test-mode", h.SetTestMode)
	r.Get("/analytics", h.Analytics)
}

// RegisterStatusRoute registers GET /admin/status for any authenticated role.
func (h *AdminHandler) RegisterStatusRoute(r chi.Router) {
	r.Get("/admin/status", h.Status)
}

// --- Request / Response types ---

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type sessionResponse struct {
	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at"`
	TotalOrders int32      `json:"total_orders"`
	TotalSales  string     `json:"total_sales"`
}

type closeDayResponse struct {
	Date         string          `json:"date"`
	TotalOrders  int32           `json:"total_orders"`
	TotalSales   string          `json:"total_sales"`
	ClosedOrders int64           `json:"closed_orders"`
	Session      sessionResponse `json:"session"`
}

type statusResponse struct {
	Status      string           `json:"status"`
	Maintenance bool             `json:"maintenance"`
	IsTest      bool             `json:"is_test"`
	Session     *sessionResponse `json:"session"`
}

type historyResponse struct {
	Sessions []sessionResponse `json:"sessions"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
	Total    int64             `json:"total"`
}

type sessionDetailResponse struct {
	Session sessionResponse `json:"session"`
	Orders  []orderResponse `json:"orders"`
}

type sessionEvent struct {
	Status string `json:"status"`
}

type settingsEvent struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

func toSessionResponse(s database.Session) sessionResponse {
	resp := sessionResponse{
		ID:          s.ID,
		Status:      s.Status,
		OpenedAt:    s.OpenedAt,
		TotalOrders: s.TotalOrders,
		TotalSales:  numericToString(s.TotalSales),
	}
	if s.ClosedAt.Valid {
		resp.ClosedAt = &s.ClosedAt.Time
	}
	return resp
}

// --- Handlers ---

// OpenDay handles POST /admin/open-day.
func (h *AdminHandler) OpenDay(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.OpenDay(r.Context())
	if err != nil {
		writeSessionError(w, "open day", err)
		return
	}

	h.hub.Broadcast(enum.EventSessionUpdate, sessionEvent{Status: enum.SessionStatusOpen})
	writeJSON(w, http.StatusCreated, toSessionResponse(*session))
}

// CloseDay handles POST /admin/close-day.
func (h *AdminHandler) CloseDay(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sessions.CloseDay(r.Context())
	if err != nil {
		writeSessionError(w, "close day", err)
		return
	}
	h.analytics.Invalidate(r.Context())

	s := summary.Session
	date := s.OpenedAt
	if s.ClosedAt.Valid {
		date = s.ClosedAt.Time
	}

	h.hub.Broadcast(enum.EventSessionUpdate, sessionEvent{Status: enum.SessionStatusClosed})
	writeJSON(w, http.StatusOK, closeDayResponse{
		Date:         date.Format("2006-01-02"),
		TotalOrders:  s.TotalOrders,
		TotalSales:   numericToString(s.TotalSales),
		ClosedOrders: summary.ClosedOrders,
		Session:      toSessionResponse(s),
	})
}

// Status handles GET /admin/status.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Current(r.Context())
	if err != nil {
		writeSessionError(w, "get store status", err)
		return
	}

	st := h.state.Snapshot()
	resp := statusResponse{
		Status:      enum.SessionStatusClosed,
		Maintenance: st.Maintenance,
		IsTest:      st.TestMode,
	}
	if session != nil {
		sr := toSessionResponse(*session)
		resp.Status = enum.SessionStatusOpen
		resp.Session = &sr
	}
	writeJSON(w, http.StatusOK, resp)
}

// History handles GET /admin/history?page=&limit=.
func (h *AdminHandler) History(w http.ResponseWriter, r *http.Request) {
	page := 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	result, err := h.sessions.History(r.Context(), page, limit)
	if err != nil {
		writeSessionError(w, "list session history", err)
		return
	}

	resp := historyResponse{
		Sessions: make([]sessionResponse, len(result.Sessions)),
		Page:     result.Page,
		Limit:    result.Limit,
		Total:    result.Total,
	}
	for i, s := range result.Sessions {
		resp.Sessions[i] = toSessionResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HistoryDetail handles GET /admin/history/{id}.
func (h *AdminHandler) HistoryDetail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session ID"})
		return
	}

	detail, err := h.sessions.Detail(r.Context(), id)
	if err != nil {
		writeSessionError(w, "get session detail", err)
		return
	}

	resp := sessionDetailResponse{
		Session: toSessionResponse(detail.Session),
		Orders:  make([]orderResponse, len(detail.Orders)),
	}
	for i, o := range detail.Orders {
		resp.Orders[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetMaintenance handles PUT /admin/maintenance.
func (h *AdminHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, enum.SettingMaintenance, h.state.SetMaintenance)
}

// SetTestMode handles PUT /admin/test-mode.
func (h *AdminHandler) SetTestMode(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, enum.SettingTestMode, h.state.SetTestMode)
}

func (h *AdminHandler) toggle(w http.ResponseWriter, r *http.Request, key string, set func(context.Context, bool) (appstate.State, error)) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}

	st, err := set(r.Context(), *req.Enabled)
	if err != nil {
		log.Printf("ERROR: set %s: %v", key, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	log.Printf("%s set to %t by user %s", key, *req.Enabled, middleware.UserID(r.Context()))
	h.hub.Broadcast(enum.EventSettingsUpdate, settingsEvent{Key: key, Value: *req.Enabled})
	writeJSON(w, http.StatusOK, st)
}

// Analytics handles GET /admin/analytics?range=today|week|month.
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	result, err := h.analytics.Get(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidRange) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: get analytics: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func writeSessionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrSessionAlreadyOpen), errors.Is(err, service.ErrNoOpenSession):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, service.ErrSessionExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
