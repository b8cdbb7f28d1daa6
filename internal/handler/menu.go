package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/middleware"
	"github.com/kopibar/pos/internal/service"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu and category handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context) ([]database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	ListCategories(ctx context.Context) ([]database.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (database.Category, error)
	DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// MenuHandler handles menu item and category CRUD endpoints.
type MenuHandler struct {
	store MenuStore
	hub   Broadcaster
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore, hub Broadcaster) *MenuHandler {
	return &MenuHandler{store: store, hub: hub}
}

// RegisterRoutes registers menu and category endpoints on the given Chi
// router. Reads are open to every role; writes require ADMIN.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	admin := middleware.RequireRole(enum.UserRoleAdmin)

	r.Get("/menu", h.ListItems)
	r.With(admin).Post("/menu", h.CreateItem)
	r.With(admin).Put("/menu/{id}", h.UpdateItem)
	r.With(admin).Delete("/menu/{id}", h.DeleteItem)

	r.Get("/categories", h.ListCategories)
	r.With(admin).Post("/categories", h.CreateCategory)
	r.With(admin).Delete("/categories/{id}", h.DeleteCategory)
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name        string          `json:"name"`
	Price       string          `json:"price"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Emoji       string          `json:"emoji"`
	Flavors     catalog.Flavors `json:"flavors"`
	MaxFlavors  int             `json:"max_flavors"`
	IsAvailable *bool           `json:"is_available"`
}

type menuItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Price       string          `json:"price"`
	Category    string          `json:"category"`
	Type        string          `json:"type"`
	Emoji       string          `json:"emoji"`
	Flavors     catalog.Flavors `json:"flavors"`
	MaxFlavors  int             `json:"max_flavors"`
	IsAvailable bool            `json:"is_available"`
}

type createCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int32  `json:"sort_order"`
}

type categoryResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

func toMenuItemResponse(row database.MenuItem) (menuItemResponse, error) {
	item, err := service.MenuItemFromRow(row)
	if err != nil {
		return menuItemResponse{}, err
	}
	return menuItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Price:       item.Price.StringFixed(2),
		Category:    item.Category,
		Type:        item.Type,
		Emoji:       item.Emoji,
		Flavors:     item.Flavors,
		MaxFlavors:  item.MaxFlavors,
		IsAvailable: item.Available,
	}, nil
}

func toCategoryResponse(c database.Category) categoryResponse {
	return categoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		SortOrder: c.SortOrder,
		CreatedAt: c.CreatedAt,
	}
}

// menuItemParams validates req and returns the stored columns.
func menuItemParams(req menuItemRequest) (database.CreateMenuItemParams, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return database.CreateMenuItemParams{}, errInvalidPrice
	}

	item := catalog.MenuItem{
		Name:       strings.TrimSpace(req.Name),
		Price:      price,
		Category:   strings.TrimSpace(req.Category),
		Type:       req.Type,
		Emoji:      req.Emoji,
		Flavors:    req.Flavors,
		MaxFlavors: req.MaxFlavors,
	}
	if err := catalog.ValidateMenuItem(item); err != nil {
		return database.CreateMenuItemParams{}, err
	}

	flavors, err := json.Marshal(item.Flavors)
	if err != nil {
		return database.CreateMenuItemParams{}, err
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	var n pgtype.Numeric
	if err := n.Scan(price.StringFixed(2)); err != nil {
		return database.CreateMenuItemParams{}, errInvalidPrice
	}

	return database.CreateMenuItemParams{
		Name:        item.Name,
		Price:       n,
		Category:    item.Category,
		Type:        item.Type,
		Emoji:       item.Emoji,
		Flavors:     flavors,
		MaxFlavors:  int32(item.MaxFlavors),
		IsAvailable: available,
	}, nil
}

var errInvalidPrice = errors.New("price must be a decimal string")

func isMenuValidationError(err error) bool {
	return errors.Is(err, errInvalidPrice) ||
		errors.Is(err, catalog.ErrNameRequired) ||
		errors.Is(err, catalog.ErrNegativePrice) ||
		errors.Is(err, catalog.ErrInvalidItemType) ||
		errors.Is(err, catalog.ErrNegativeMaxFlavors) ||
		errors.Is(err, catalog.ErrSectionName) ||
		errors.Is(err, catalog.ErrSectionMax) ||
		errors.Is(err, catalog.ErrOptionName)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Menu item handlers ---

// ListItems handles GET /menu.
func (h *MenuHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.ListMenuItems(r.Context())
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, 0, len(rows))
	for _, row := range rows {
		item, err := toMenuItemResponse(row)
		if err != nil {
			// One corrupt row must not hide the whole menu
			log.Printf("ERROR: decode menu item %s: %v", row.ID, err)
			continue
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateItem handles POST /menu.
func (h *MenuHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, err := menuItemParams(req)
	if err != nil {
		h.writeMenuError(w, "validate menu item", err)
		return
	}

	row, err := h.store.CreateMenuItem(r.Context(), params)
	if err != nil {
		h.writeMenuError(w, "create menu item", err)
		return
	}

	h.respondItem(w, http.StatusCreated, row)
}

// UpdateItem handles PUT /menu/{id}. The whole item is replaced.
func (h *MenuHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	p, err := menuItemParams(req)
	if err != nil {
		h.writeMenuError(w, "validate menu item", err)
		return
	}

	row, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:          id,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Type:        p.Type,
		Emoji:       p.Emoji,
		Flavors:     p.Flavors,
		MaxFlavors:  p.MaxFlavors,
		IsAvailable: p.IsAvailable,
	})
	if err != nil {
		h.writeMenuError(w, "update menu item", err)
		return
	}

	h.respondItem(w, http.StatusOK, row)
}

// DeleteItem handles DELETE /menu/{id}. Past orders keep their snapshot.
func (h *MenuHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if _, err := h.store.DeleteMenuItem(r.Context(), id); err != nil {
		h.writeMenuError(w, "delete menu item", err)
		return
	}

	h.hub.Broadcast(enum.EventMenuUpdate, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MenuHandler) respondItem(w http.ResponseWriter, status int, row database.MenuItem) {
	resp, err := toMenuItemResponse(row)
	if err != nil {
		log.Printf("ERROR: decode menu item %s: %v", row.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.hub.Broadcast(enum.EventMenuUpdate, nil)
	writeJSON(w, status, resp)
}

func (h *MenuHandler) writeMenuError(w http.ResponseWriter, op string, err error) {
	switch {
	case isMenuValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// --- Category handlers ---

// ListCategories handles GET /categories.
func (h *MenuHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		log.Printf("ERROR: list categories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i, c := range categories {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCategory handles POST /categories.
func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	category, err := h.store.CreateCategory(r.Context(), database.CreateCategoryParams{
		Name:      name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "category already exists"})
			return
		}
		log.Printf("ERROR: create category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.EventMenuUpdate, nil)
	writeJSON(w, http.StatusCreated, toCategoryResponse(category))
}

// DeleteCategory handles DELETE /categories/{id}. Items keep their category label.
func (h *MenuHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category ID"})
		return
	}

	if _, err := h.store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "category not found"})
			return
		}
		log.Printf("ERROR: delete category: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.hub.Broadcast(enum.EventMenuUpdate, nil)
	w.WriteHeader(http.StatusNoContent)
}
