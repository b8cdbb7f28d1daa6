package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopibar/pos/internal/database"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/handler"
)

type mockTicketStore struct {
	tickets map[uuid.UUID]database.DrinkTicket
}

func (m *mockTicketStore) ListPendingDrinkTickets(_ context.Context) ([]database.DrinkTicket, error) {
	var out []database.DrinkTicket
	for _, t := range m.tickets {
		if t.Status == enum.DrinkTicketPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockTicketStore) GetDrinkTicket(_ context.Context, id uuid.UUID) (database.DrinkTicket, error) {
	t, ok := m.tickets[id]
	if !ok {
		return database.DrinkTicket{}, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTicketStore) CompleteDrinkTicket(_ context.Context, id uuid.UUID) (database.DrinkTicket, error) {
	t, ok := m.tickets[id]
	if !ok || t.Status != enum.DrinkTicketPending {
		return database.DrinkTicket{}, pgx.ErrNoRows
	}
	t.Status = enum.DrinkTicketCompleted
	t.CompletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	m.tickets[id] = t
	return t, nil
}

func pendingTicket() database.DrinkTicket {
	return database.DrinkTicket{
		ID:           uuid.New(),
		OrderID:      uuid.New(),
		CustomerName: "Guest",
		Items:        []byte(`[{"name":"Latte","quantity":1,"selected_flavors":[]}]`),
		Status:       enum.DrinkTicketPending,
		CreatedAt:    time.Now(),
	}
}

func TestDrinkTickets_CompletingOneLeavesTheOther(t *testing.T) {
	a, b := pendingTicket(), pendingTicket()
	store := &mockTicketStore{tickets: map[uuid.UUID]database.DrinkTicket{a.ID: a, b.ID: b}}
	hub := &mockHub{}
	h := handler.NewTicketHandler(store, hub)
	r := protectedRouter(func(r chi.Router) { r.Route("/drink-tickets", h.RegisterRoutes) })
	kitchen := tokenFor(t, enum.UserRoleKitchen)

	rr := doJSON(t, r, http.MethodGet, "/drink-tickets", kitchen, nil)
	var list []map[string]interface{}
	decodeInto(t, rr.Body.Bytes(), &list)
	if len(list) != 2 {
		t.Fatalf("pending: got %d, want 2", len(list))
	}

	rr = doJSON(t, r, http.MethodPatch, "/drink-tickets/"+a.ID.String()+"/complete", kitchen, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("complete: got %d; body: %s", rr.Code, rr.Body.String())
	}
	if events := hub.sent(); len(events) != 1 || events[0] != enum.EventTicketUpdate {
		t.Errorf("broadcasts: got %v", events)
	}

	rr = doJSON(t, r, http.MethodGet, "/drink-tickets", kitchen, nil)
	list = nil
	decodeInto(t, rr.Body.Bytes(), &list)
	if len(list) != 1 || list[0]["id"] != b.ID.String() {
		t.Errorf("remaining: got %v", list)
	}

	rr = doJSON(t, r, http.MethodPatch, "/drink-tickets/"+a.ID.String()+"/complete", kitchen, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("complete twice: got %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = doJSON(t, r, http.MethodPatch, "/drink-tickets/"+uuid.New().String()+"/complete", kitchen, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
