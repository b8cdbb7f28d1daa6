package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/shopspring/decimal"
)

// --- Mocks ---

type mockAPI struct {
	createFn func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error)
	statusFn func(ctx context.Context, id, status string) (*apiclient.Order, error)
	paidFn   func(ctx context.Context, id string, req apiclient.MarkPaidRequest) (*apiclient.Order, error)
	activeFn func(ctx context.Context, windowHours int) ([]apiclient.Order, error)

	creates int
}

func (m *mockAPI) CreateOrder(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
	m.creates++
	if m.createFn == nil {
		return nil, errors.New("unexpected CreateOrder")
	}
	return m.createFn(ctx, req)
}

func (m *mockAPI) UpdateOrderStatus(ctx context.Context, id, status string) (*apiclient.Order, error) {
	if m.statusFn == nil {
		return nil, errors.New("unexpected UpdateOrderStatus")
	}
	return m.statusFn(ctx, id, status)
}

func (m *mockAPI) MarkPaid(ctx context.Context, id string, req apiclient.MarkPaidRequest) (*apiclient.Order, error) {
	if m.paidFn == nil {
		return nil, errors.New("unexpected MarkPaid")
	}
	return m.paidFn(ctx, id, req)
}

func (m *mockAPI) ActiveOrders(ctx context.Context, windowHours int) ([]apiclient.Order, error) {
	if m.activeFn == nil {
		return nil, nil
	}
	return m.activeFn(ctx, windowHours)
}

type recordingNotifier struct {
	mu      sync.Mutex
	offline []apiclient.Order
	synced  []apiclient.Order
	errs    []error
}

func (n *recordingNotifier) OfflineSaved(o apiclient.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = append(n.offline, o)
}

func (n *recordingNotifier) Synced(o apiclient.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.synced = append(n.synced, o)
}

func (n *recordingNotifier) Failed(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

var (
	t0         = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	errOffline = fmt.Errorf("%w: POST /orders: connection refused", apiclient.ErrTransport)
)

func newTestStore(t *testing.T, api *mockAPI, queue QueueStore) (*Store, *recordingNotifier) {
	t.Helper()
	if queue == nil {
		queue = &MemoryQueue{}
	}
	n := &recordingNotifier{}
	s, err := New(api, queue, n)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.now = func() time.Time { return t0 }
	return s, n
}

func serverOrder(id, customer string, total int64, status, payStatus, method string) apiclient.Order {
	return apiclient.Order{
		ID:            id,
		CustomerName:  customer,
		Total:         decimal.NewFromInt(total),
		Status:        status,
		PaymentStatus: payStatus,
		PaymentMethod: method,
		OrderType:     enum.OrderTypeDineIn,
		CreatedAt:     t0,
		Items:         []apiclient.OrderItem{{MenuItemID: latteID.String(), Quantity: 1}},
	}
}

func orderEvent(t *testing.T, typ string, o apiclient.Order) apiclient.Event {
	t.Helper()
	payload, err := json.Marshal(o)
	if err != nil {
		t.Fatal(err)
	}
	return apiclient.Event{Type: typ, Payload: payload}
}

func cartWithLatte(t *testing.T) *Cart {
	t.Helper()
	c := newTestCart()
	if err := c.Add(latteID.String(), 1, []string{"Large"}); err != nil {
		t.Fatal(err)
	}
	return c
}

const serverID = "0b6d3f8e-7d51-4c1c-9f3c-3f1e7d7c2a10"

// --- Create ---

func TestCreate_ConfirmedReplacesProvisional(t *testing.T) {
	api := &mockAPI{}
	s, _ := newTestStore(t, api, nil)

	api.createFn = func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		recs := s.Orders()
		if len(recs) != 1 || !strings.HasPrefix(recs[0].Order.ID, LocalPrefix) || !recs[0].Provisional() {
			t.Errorf("provisional record not visible during request: %+v", recs)
		}
		o := serverOrder(serverID, "Ana", 120, enum.OrderStatusNew, enum.PaymentStatusPaid, req.PaymentMethod)
		return &o, nil
	}

	cart := cartWithLatte(t)
	res, err := s.Create(context.Background(), cart, Details{CustomerName: "Ana", PaymentMethod: enum.PaymentMethodCash})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Queued || res.Order.ID != serverID {
		t.Errorf("result: got %+v", res)
	}
	if !cart.IsEmpty() {
		t.Error("cart not cleared")
	}

	recs := s.Orders()
	if len(recs) != 1 || recs[0].Order.ID != serverID || recs[0].Origin != OriginServer {
		t.Errorf("records: got %+v", recs)
	}
}

func TestCreate_PushBeforeResponse(t *testing.T) {
	api := &mockAPI{}
	s, _ := newTestStore(t, api, nil)

	confirmed := serverOrder(serverID, "Ana", 120, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	api.createFn = func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, confirmed))
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, confirmed))
		return &confirmed, nil
	}

	if _, err := s.Create(context.Background(), cartWithLatte(t), Details{CustomerName: "Ana", PaymentMethod: enum.PaymentMethodCash}); err != nil {
		t.Fatalf("create: %v", err)
	}

	recs := s.Orders()
	if len(recs) != 1 || recs[0].Order.ID != serverID {
		t.Errorf("want exactly the confirmed order, got %+v", recs)
	}
}

func TestCreate_OfflineQueues(t *testing.T) {
	api := &mockAPI{createFn: func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		return nil, errOffline
	}}
	queue := &MemoryQueue{}
	s, n := newTestStore(t, api, queue)

	cart := cartWithLatte(t)
	res, err := s.Create(context.Background(), cart, Details{CustomerName: "Ana", PaymentMethod: enum.PaymentMethodPayLater})
	if err != nil {
		t.Fatalf("offline create must not fail: %v", err)
	}
	if !res.Queued || !strings.HasPrefix(res.Order.ID, LocalPrefix) {
		t.Errorf("result: got %+v", res)
	}
	if !cart.IsEmpty() {
		t.Error("cart not cleared")
	}

	recs := s.Orders()
	if len(recs) != 1 || recs[0].Origin != OriginLocal || recs[0].Order.PaymentStatus != enum.PaymentStatusPending {
		t.Errorf("records: got %+v", recs)
	}
	saved, _ := queue.Load()
	if len(saved) != 1 || saved[0].LocalID != res.Order.ID || !saved[0].QueuedAt.Equal(t0) {
		t.Errorf("persisted queue: got %+v", saved)
	}
	if len(n.offline) != 1 || len(n.errs) != 0 {
		t.Errorf("notifications: offline=%d errs=%d", len(n.offline), len(n.errs))
	}
}

func TestCreate_ServerRejectionRollsBack(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"store closed", http.StatusForbidden},
		{"validation", http.StatusBadRequest},
		{"server error after retries", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &mockAPI{createFn: func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
				return nil, &apiclient.APIError{Status: tt.status, Message: "nope"}
			}}
			queue := &MemoryQueue{}
			s, n := newTestStore(t, api, queue)

			_, err := s.Create(context.Background(), cartWithLatte(t), Details{PaymentMethod: enum.PaymentMethodCash})
			if apiclient.StatusOf(err) != tt.status {
				t.Fatalf("got %v, want status %d", err, tt.status)
			}
			if len(s.Orders()) != 0 {
				t.Errorf("provisional order not rolled back: %+v", s.Orders())
			}
			if s.QueueLen() != 0 {
				t.Error("rejected order was queued")
			}
			if len(n.errs) != 1 {
				t.Errorf("errors surfaced: got %d", len(n.errs))
			}
		})
	}
}

// --- Status and payment ---

func TestUpdateStatus(t *testing.T) {
	existing := serverOrder(serverID, "Ana", 120, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)

	t.Run("success takes server version", func(t *testing.T) {
		api := &mockAPI{}
		s, _ := newTestStore(t, api, nil)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, existing))

		api.statusFn = func(ctx context.Context, id, status string) (*apiclient.Order, error) {
			rec, _ := s.Get(id)
			if rec.Order.Status != enum.OrderStatusPreparing || !s.IsPending(id) {
				t.Errorf("optimistic state not applied: %+v", rec)
			}
			o := existing
			o.Status = status
			o.UpdatedAt = t0.Add(time.Minute)
			return &o, nil
		}

		got, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusPreparing)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		rec, _ := s.Get(serverID)
		if got.Status != enum.OrderStatusPreparing || rec.Origin != OriginServer || !rec.Order.UpdatedAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("record: got %+v", rec)
		}
		if s.IsPending(serverID) {
			t.Error("pending flag not cleared")
		}
	})

	t.Run("failure reverts and ignores pushes in flight", func(t *testing.T) {
		api := &mockAPI{}
		s, n := newTestStore(t, api, nil)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, existing))

		api.statusFn = func(ctx context.Context, id, status string) (*apiclient.Order, error) {
			stale := existing
			stale.Status = enum.OrderStatusReady
			s.HandleEvent(orderEvent(t, enum.EventOrderUpdate, stale))
			return nil, &apiclient.APIError{Status: http.StatusConflict, Message: "conflict"}
		}

		if _, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusPreparing); err == nil {
			t.Fatal("expected error")
		}
		rec, _ := s.Get(serverID)
		if rec.Order.Status != enum.OrderStatusNew {
			t.Errorf("not reverted: status %s", rec.Order.Status)
		}
		if len(n.errs) != 1 {
			t.Errorf("errors surfaced: got %d", len(n.errs))
		}
	})

	t.Run("stale push while pending keeps the local edit", func(t *testing.T) {
		api := &mockAPI{}
		s, _ := newTestStore(t, api, nil)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, existing))

		api.statusFn = func(ctx context.Context, id, status string) (*apiclient.Order, error) {
			s.HandleEvent(orderEvent(t, enum.EventOrderUpdate, existing))
			rec, _ := s.Get(id)
			if rec.Order.Status != enum.OrderStatusPreparing {
				t.Errorf("stale push applied during flight: status %s", rec.Order.Status)
			}
			if rec.Provisional() {
				t.Error("confirmed order marked provisional during flight")
			}
			o := existing
			o.Status = status
			return &o, nil
		}

		if _, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusPreparing); err != nil {
			t.Fatalf("update: %v", err)
		}
		rec, _ := s.Get(serverID)
		if rec.Order.Status != enum.OrderStatusPreparing {
			t.Errorf("after ack: status %s", rec.Order.Status)
		}
	})

	t.Run("late ack does not restore an order closed by close-day", func(t *testing.T) {
		api := &mockAPI{}
		s, _ := newTestStore(t, api, nil)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, existing))

		api.statusFn = func(ctx context.Context, id, status string) (*apiclient.Order, error) {
			s.HandleEvent(apiclient.Event{Type: enum.EventSessionUpdate, Payload: []byte(`{"status":"CLOSED"}`)})
			o := existing
			o.Status = status
			return &o, nil
		}

		got, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusPreparing)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if got.Status != enum.OrderStatusPreparing {
			t.Errorf("returned: status %s", got.Status)
		}
		if recs := s.Orders(); len(recs) != 0 {
			t.Errorf("records after close-day: got %+v", recs)
		}
		if s.IsPending(serverID) {
			t.Error("pending flag not cleared")
		}
	})

	t.Run("rejected locally", func(t *testing.T) {
		api := &mockAPI{}
		s, _ := newTestStore(t, api, nil)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, existing))

		if _, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusClosed); !errors.Is(err, orderstate.ErrCloseNotAllowed) {
			t.Errorf("close: got %v", err)
		}
		api.createFn = func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
			return nil, errOffline
		}
		res, err := s.Create(context.Background(), cartWithLatte(t), Details{PaymentMethod: enum.PaymentMethodCash})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := s.UpdateStatus(context.Background(), res.Order.ID, enum.OrderStatusPreparing); !errors.Is(err, ErrNotConfirmed) {
			t.Errorf("provisional: got %v", err)
		}
		if _, err := s.UpdateStatus(context.Background(), "missing", enum.OrderStatusPreparing); !errors.Is(err, ErrOrderNotFound) {
			t.Errorf("missing: got %v", err)
		}
	})

	t.Run("pay later cannot complete unpaid", func(t *testing.T) {
		api := &mockAPI{}
		s, _ := newTestStore(t, api, nil)
		unpaid := serverOrder(serverID, "Ana", 120, enum.OrderStatusReady, enum.PaymentStatusPending, enum.PaymentMethodPayLater)
		s.HandleEvent(orderEvent(t, enum.EventOrderNew, unpaid))

		if _, err := s.UpdateStatus(context.Background(), serverID, enum.OrderStatusCompleted); !errors.Is(err, orderstate.ErrPaymentRequired) {
			t.Errorf("got %v, want ErrPaymentRequired", err)
		}
	})
}

func TestMarkPaid(t *testing.T) {
	api := &mockAPI{}
	s, _ := newTestStore(t, api, nil)
	unpaid := serverOrder(serverID, "Ana", 120, enum.OrderStatusReady, enum.PaymentStatusPending, enum.PaymentMethodPayLater)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, unpaid))

	api.paidFn = func(ctx context.Context, id string, req apiclient.MarkPaidRequest) (*apiclient.Order, error) {
		o := unpaid
		o.PaymentStatus = enum.PaymentStatusPaid
		o.PaymentMethod = req.PaymentMethod
		tendered := decimal.NewFromInt(200)
		change := decimal.NewFromInt(80)
		o.AmountTendered = &tendered
		o.ChangeAmount = &change
		return &o, nil
	}

	got, err := s.MarkPaid(context.Background(), serverID, apiclient.MarkPaidRequest{PaymentMethod: enum.PaymentMethodCash, AmountTendered: "200"})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if got.PaymentStatus != enum.PaymentStatusPaid || got.ChangeAmount == nil || !got.ChangeAmount.Equal(decimal.NewFromInt(80)) {
		t.Errorf("order: got %+v", got)
	}

	if _, err := s.MarkPaid(context.Background(), serverID, apiclient.MarkPaidRequest{PaymentMethod: enum.PaymentMethodCash}); !errors.Is(err, orderstate.ErrAlreadyPaid) {
		t.Errorf("second mark paid: got %v", err)
	}
}

// --- Realtime ---

func TestHandleEvent(t *testing.T) {
	s, _ := newTestStore(t, &mockAPI{}, nil)

	a := serverOrder("a", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	b := serverOrder("b", "Ben", 80, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, a))
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, b))

	recs := s.Orders()
	if len(recs) != 2 || recs[0].Order.ID != "b" {
		t.Fatalf("newest first: got %+v", recs)
	}

	a.Status = enum.OrderStatusReady
	s.HandleEvent(orderEvent(t, enum.EventOrderUpdate, a))
	if rec, _ := s.Get("a"); rec.Order.Status != enum.OrderStatusReady {
		t.Errorf("update in place: got %s", rec.Order.Status)
	}
	if recs := s.Orders(); recs[1].Order.ID != "a" {
		t.Error("update moved the record")
	}

	a.Status = enum.OrderStatusClosed
	s.HandleEvent(orderEvent(t, enum.EventOrderUpdate, a))
	if _, ok := s.Get("a"); ok {
		t.Error("closed order still listed")
	}

	s.HandleEvent(apiclient.Event{Type: enum.EventOrderNew, Payload: []byte(`{broken`)})
	s.HandleEvent(apiclient.Event{Type: enum.EventMenuUpdate})
	if len(s.Orders()) != 1 {
		t.Errorf("bad events changed the list: %+v", s.Orders())
	}
}

func TestHandleEvent_SessionClosedKeepsProvisional(t *testing.T) {
	api := &mockAPI{createFn: func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		return nil, errOffline
	}}
	s, _ := newTestStore(t, api, nil)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, serverOrder("a", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)))
	if _, err := s.Create(context.Background(), cartWithLatte(t), Details{PaymentMethod: enum.PaymentMethodCash}); err != nil {
		t.Fatal(err)
	}

	s.HandleEvent(apiclient.Event{Type: enum.EventSessionUpdate, Payload: []byte(`{"status":"CLOSED"}`)})

	recs := s.Orders()
	if len(recs) != 1 || !recs[0].Provisional() {
		t.Errorf("records after close: got %+v", recs)
	}
}

// --- Refresh and drain ---

func TestRefresh_KeepsProvisionalAndPending(t *testing.T) {
	api := &mockAPI{}
	s, _ := newTestStore(t, api, nil)

	a := serverOrder("a", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, a))
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, serverOrder("gone", "Old", 50, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)))

	api.createFn = func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		return nil, errOffline
	}
	if _, err := s.Create(context.Background(), cartWithLatte(t), Details{PaymentMethod: enum.PaymentMethodCash}); err != nil {
		t.Fatal(err)
	}

	serverA := a
	serverA.Status = enum.OrderStatusReady
	c := serverOrder("c", "Cid", 60, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	api.activeFn = func(ctx context.Context, windowHours int) ([]apiclient.Order, error) {
		return []apiclient.Order{c, serverA}, nil
	}

	// Refresh lands while an edit to "a" is in flight.
	api.statusFn = func(ctx context.Context, id, status string) (*apiclient.Order, error) {
		if err := s.Refresh(ctx); err != nil {
			t.Errorf("refresh: %v", err)
		}
		rec, _ := s.Get("a")
		if rec.Order.Status != enum.OrderStatusPreparing {
			t.Errorf("pending edit overwritten by refresh: %s", rec.Order.Status)
		}
		o := a
		o.Status = status
		return &o, nil
	}
	if _, err := s.UpdateStatus(context.Background(), "a", enum.OrderStatusPreparing); err != nil {
		t.Fatal(err)
	}

	recs := s.Orders()
	if len(recs) != 3 {
		t.Fatalf("records: got %+v", recs)
	}
	if !recs[0].Provisional() || recs[1].Order.ID != "c" || recs[2].Order.ID != "a" {
		t.Errorf("order: got %s %s %s", recs[0].Order.ID, recs[1].Order.ID, recs[2].Order.ID)
	}
	if _, ok := s.Get("gone"); ok {
		t.Error("order missing from the server still listed")
	}
}

func queued(localID, customer string, total int64, at time.Time) QueuedOrder {
	return QueuedOrder{
		LocalID: localID,
		Request: apiclient.CreateOrderRequest{CustomerName: customer, PaymentMethod: enum.PaymentMethodCash, OrderType: enum.OrderTypeDineIn},
		Preview: apiclient.Order{
			ID:           localID,
			CustomerName: customer,
			Total:        decimal.NewFromInt(total),
			Status:       enum.OrderStatusNew,
			Items:        []apiclient.OrderItem{{MenuItemID: latteID.String(), Quantity: 1}},
		},
		QueuedAt: at,
	}
}

func TestNew_RestoresQueuedOrders(t *testing.T) {
	queue := &MemoryQueue{}
	queue.Save([]QueuedOrder{
		queued("local-1", "Ana", 100, t0),
		queued("local-2", "Ben", 80, t0.Add(time.Minute)),
	})

	s, _ := newTestStore(t, &mockAPI{}, queue)
	recs := s.Orders()
	if len(recs) != 2 || recs[0].Order.ID != "local-2" || recs[0].Origin != OriginLocal {
		t.Errorf("restored: got %+v", recs)
	}
	if s.QueueLen() != 2 {
		t.Errorf("queue len: got %d", s.QueueLen())
	}
}

func TestDrain(t *testing.T) {
	queue := &MemoryQueue{}
	queue.Save([]QueuedOrder{
		queued("local-dup", "Ana", 100, t0),
		queued("local-bad", "Ben", 80, t0),
		queued("local-ok", "Cid", 60, t0),
		queued("local-later", "Dee", 40, t0),
	})

	api := &mockAPI{}
	s, n := newTestStore(t, api, queue)

	// Ana's order reached the server before the connection dropped.
	landed := serverOrder("srv-ana", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	landed.CreatedAt = t0.Add(time.Second)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, landed))

	var submitted []string
	api.createFn = func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		submitted = append(submitted, req.CustomerName)
		switch req.CustomerName {
		case "Ben":
			return nil, &apiclient.APIError{Status: http.StatusForbidden, Message: "store is closed"}
		case "Cid":
			o := serverOrder("srv-cid", "Cid", 60, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
			return &o, nil
		default:
			return nil, errOffline
		}
	}

	res, err := s.Drain(context.Background())
	if !apiclient.IsTransport(err) {
		t.Fatalf("drain: got %v, want transport error", err)
	}
	if res != (DrainResult{Submitted: 1, Duplicates: 1, Dropped: 1, Remaining: 1}) {
		t.Errorf("result: got %+v", res)
	}
	if len(submitted) != 3 || submitted[0] != "Ben" {
		t.Errorf("submitted: got %v", submitted)
	}

	saved, _ := queue.Load()
	if len(saved) != 1 || saved[0].LocalID != "local-later" {
		t.Errorf("persisted queue: got %+v", saved)
	}
	for _, id := range []string{"local-dup", "local-bad", "local-ok"} {
		if _, ok := s.Get(id); ok {
			t.Errorf("%s still listed", id)
		}
	}
	if _, ok := s.Get("srv-cid"); !ok {
		t.Error("synced order not listed")
	}
	if _, ok := s.Get("local-later"); !ok {
		t.Error("still-queued order dropped from the list")
	}
	if len(n.synced) != 1 || len(n.errs) != 1 {
		t.Errorf("notifications: synced=%d errs=%d", len(n.synced), len(n.errs))
	}
}

func TestDrain_DuplicateNeedsLaterCreation(t *testing.T) {
	queue := &MemoryQueue{}
	queue.Save([]QueuedOrder{queued("local-1", "Ana", 100, t0)})

	api := &mockAPI{createFn: func(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error) {
		o := serverOrder("srv-new", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
		return &o, nil
	}}
	s, _ := newTestStore(t, api, queue)

	// Same customer and total, but created before the order was queued.
	earlier := serverOrder("srv-old", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	earlier.CreatedAt = t0.Add(-time.Hour)
	s.HandleEvent(orderEvent(t, enum.EventOrderNew, earlier))

	res, err := s.Drain(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if res.Submitted != 1 || res.Duplicates != 0 || api.creates != 1 {
		t.Errorf("result: got %+v, creates %d", res, api.creates)
	}
	if s.QueueLen() != 0 {
		t.Errorf("queue len: got %d", s.QueueLen())
	}
}

func TestResync(t *testing.T) {
	queue := &MemoryQueue{}
	queue.Save([]QueuedOrder{queued("local-1", "Ana", 100, t0)})

	api := &mockAPI{}
	s, _ := newTestStore(t, api, queue)

	// The server already has it; refresh must see that before the drain runs.
	landed := serverOrder("srv-ana", "Ana", 100, enum.OrderStatusNew, enum.PaymentStatusPaid, enum.PaymentMethodCash)
	landed.CreatedAt = t0.Add(time.Second)
	api.activeFn = func(ctx context.Context, windowHours int) ([]apiclient.Order, error) {
		return []apiclient.Order{landed}, nil
	}

	res, err := s.Resync(context.Background())
	if err != nil {
		t.Fatalf("resync: %v", err)
	}
	if res.Duplicates != 1 || api.creates != 0 {
		t.Errorf("result: got %+v, creates %d", res, api.creates)
	}
	recs := s.Orders()
	if len(recs) != 1 || recs[0].Order.ID != "srv-ana" {
		t.Errorf("records: got %+v", recs)
	}
}
