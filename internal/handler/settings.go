package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/middleware"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (database.Setting, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) (database.Setting, error)
}

// SettingsHandler serves the global add-on catalog.
type SettingsHandler struct {
	store SettingsStore
	hub   Broadcaster
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore, hub Broadcaster) *SettingsHandler {
	return &SettingsHandler{store: store, hub: hub}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/settings/global-addons", h.GetGlobalAddons)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Put("/settings/global-addons", h.PutGlobalAddons)
}

// GetGlobalAddons handles GET /settings/global-addons.
func (h *SettingsHandler) GetGlobalAddons(w http.ResponseWriter, r *http.Request) {
	addons := []catalog.GlobalAddonSection{}

	setting, err := h.store.GetSetting(r.Context(), enum.SettingGlobalAddons)
	switch {
	case err == nil:
		decoded, err := catalog.DecodeAddons(setting.Value)
		if err != nil {
			log.Printf("ERROR: decode global addons: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		if decoded != nil {
			addons = decoded
		}
	case errors.Is(err, pgx.ErrNoRows):
		// never configured
	default:
		log.Printf("ERROR: get global addons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, addons)
}

// PutGlobalAddons handles PUT /settings/global-addons. The body replaces the
// whole catalog.
func (h *SettingsHandler) PutGlobalAddons(w http.ResponseWriter, r *http.Request) {
	var addons []catalog.GlobalAddonSection
	if err := json.NewDecoder(r.Body).Decode(&addons); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if addons == nil {
		addons = []catalog.GlobalAddonSection{}
	}

	if err := catalog.ValidateAddons(addons); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	raw, err := json.Marshal(addons)
	if err != nil {
		log.Printf("ERROR: encode global addons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := h.store.UpsertSetting(r.Context(), database.UpsertSettingParams{
		Key:   enum.SettingGlobalAddons,
		Value: raw,
	}); err != nil {
		log.Printf("ERROR: save global addons: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.EventSettingsUpdate, settingsEvent{Key: enum.SettingGlobalAddons, Value: addons})
	writeJSON(w, http.StatusOK, addons)
}
