package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
)

// TicketStore defines the database methods needed by drink ticket handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TicketStore interface {
	ListPendingDrinkTickets(ctx context.Context) ([]database.DrinkTicket, error)
	GetDrinkTicket(ctx context.Context, id uuid.UUID) (database.DrinkTicket, error)
	CompleteDrinkTicket(ctx context.Context, id uuid.UUID) (database.DrinkTicket, error)
}

// TicketHandler serves the drink ticket queue. Tickets live beside the
// order lifecycle: completing one never touches its order.
type TicketHandler struct {
	store TicketStore
	hub   Broadcaster
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(store TicketStore, hub Broadcaster) *TicketHandler {
	return &TicketHandler{store: store, hub: hub}
}

// RegisterRoutes registers drink ticket endpoints on the given Chi router.
// Expected to be mounted at /drink-tickets.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListPending)
	r.Patch("/{id}/complete", h.Complete)
}

type drinkTicketResponse struct {
	ID           uuid.UUID       `json:"id"`
	OrderID      uuid.UUID       `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	TableNumber  *string         `json:"table_number"`
	BeeperNumber *string         `json:"beeper_number"`
	Items        json.RawMessage `json:"items"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

func toDrinkTicketResponse(t database.DrinkTicket) drinkTicketResponse {
	resp := drinkTicketResponse{
		ID:           t.ID,
		OrderID:      t.OrderID,
		CustomerName: t.CustomerName,
		TableNumber:  textPtr(t.TableNumber),
		BeeperNumber: textPtr(t.BeeperNumber),
		Items:        json.RawMessage(t.Items),
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
	}
	if len(resp.Items) == 0 {
		resp.Items = json.RawMessage("[]")
	}
	if t.CompletedAt.Valid {
		resp.CompletedAt = &t.CompletedAt.Time
	}
	return resp
}

// ListPending handles GET /drink-tickets, oldest first.
func (h *TicketHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.store.ListPendingDrinkTickets(r.Context())
	if err != nil {
		log.Printf("ERROR: list drink tickets: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]drinkTicketResponse, len(tickets))
	for i, t := range tickets {
		resp[i] = toDrinkTicketResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Complete handles PATCH /drink-tickets/{id}/complete.
func (h *TicketHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket ID"})
		return
	}

	ticket, err := h.store.CompleteDrinkTicket(r.Context(), ticketID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: complete drink ticket: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		// Either missing or already completed
		existing, getErr := h.store.GetDrinkTicket(r.Context(), ticketID)
		switch {
		case getErr == nil && existing.Status == enum.DrinkTicketCompleted:
			writeJSON(w, http.StatusConflict, map[string]string{"error": "drink ticket is already completed"})
		case getErr == nil || errors.Is(getErr, pgx.ErrNoRows):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "drink ticket not found"})
		default:
			log.Printf("ERROR: get drink ticket: %v", getErr)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := toDrinkTicketResponse(ticket)
	h.hub.Broadcast(enum.EventTicketUpdate, resp)
	writeJSON(w, http.StatusOK, resp)
}
