// Package orderstore is the client's local view of in-flight orders. It
// reconciles optimistic local edits with HTTP responses and realtime pushes
// that may arrive in either order, and queues creations made while offline.
package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/enum"
	"github.com/kopibar/pos/internal/orderstate"
	"github.com/shopspring/decimal"
)

// LocalPrefix starts every provisional identifier so operators can tell them
// apart from server UUIDs. Store logic goes by Record.Origin.
const LocalPrefix = "local-"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrNotConfirmed    = errors.New("order is not confirmed by the server yet")
	ErrUpdatePending   = errors.New("an update for this order is already in flight")
	duplicateTolerance = decimal.New(1, -2)
)

func NewLocalID() string { return LocalPrefix + uuid.NewString() }

// Origin says whether the server has confirmed a record. An in-flight edit
// does not change it; Store tracks those separately.
type Origin int

const (
	OriginServer Origin = iota
	OriginLocal
)

func (o Origin) String() string {
	if o == OriginLocal {
		return "local"
	}
	return "server"
}

// Record is one order in the local view.
type Record struct {
	Order  apiclient.Order
	Origin Origin
}

// Provisional reports whether the order only exists on this terminal.
func (r Record) Provisional() bool { return r.Origin == OriginLocal }

// API is the part of the server the store talks to.
// Satisfied by *apiclient.Client.
type API interface {
	CreateOrder(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) (*apiclient.Order, error)
	MarkPaid(ctx context.Context, id string, req apiclient.MarkPaidRequest) (*apiclient.Order, error)
	ActiveOrders(ctx context.Context, windowHours int) ([]apiclient.Order, error)
}

// Notifier surfaces outcomes to the operator.
type Notifier interface {
	OfflineSaved(order apiclient.Order)
	Synced(order apiclient.Order)
	Failed(err error)
}

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

func (LogNotifier) OfflineSaved(o apiclient.Order) {
	log.Printf("Order for %s saved offline, will sync when the server is reachable", o.CustomerName)
}

func (LogNotifier) Synced(o apiclient.Order) {
	log.Printf("Queued order for %s synced as %s", o.CustomerName, o.ID)
}

func (LogNotifier) Failed(err error) {
	log.Printf("ERROR: %v", err)
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Order  apiclient.Order
	Queued bool
}

// DrainResult counts what a Drain did with each queued order.
type DrainResult struct {
	Submitted  int
	Duplicates int
	Dropped    int
	Remaining  int
}

// Store holds the local order list, newest first.
type Store struct {
	api    API
	queue  QueueStore
	notify Notifier
	now    func() time.Time

	mu       sync.Mutex
	records  []Record
	pending  map[string]apiclient.Order // id -> snapshot before the in-flight edit
	queued   []QueuedOrder
	draining bool
}

// New builds a Store and loads any orders left in the offline queue. Their
// provisional records are restored so the operator still sees them.
func New(api API, queue QueueStore, notify Notifier) (*Store, error) {
	if notify == nil {
		notify = LogNotifier{}
	}
	s := &Store{
		api:     api,
		queue:   queue,
		notify:  notify,
		now:     time.Now,
		pending: make(map[string]apiclient.Order),
	}

	queued, err := queue.Load()
	if err != nil {
		return nil, err
	}
	s.queued = queued
	for _, q := range queued {
		o := q.Preview
		o.ID = q.LocalID
		s.records = append([]Record{{Order: o, Origin: OriginLocal}}, s.records...)
	}
	return s, nil
}

// Orders returns a copy of the local view, newest first.
func (s *Store) Orders() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Get returns the record for id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Record{}, false
	}
	return s.records[i], true
}

// QueueLen is the number of orders waiting for the server.
func (s *Store) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

// IsPending reports whether a local edit to id is awaiting the server.
func (s *Store) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// --- Creation ---

// Create submits the cart. The order shows up locally at once under a
// provisional id and the cart is cleared. When the server cannot be reached
// the order is queued and kept; any answer from the server that is an error
// rolls the provisional order back and is returned.
func (s *Store) Create(ctx context.Context, cart *Cart, d Details) (CreateResult, error) {
	draft, err := cart.Checkout(d)
	if err != nil {
		return CreateResult{}, err
	}

	localID := NewLocalID()
	preview := draft.Preview
	preview.ID = localID
	preview.CreatedAt = s.now()
	preview.UpdatedAt = preview.CreatedAt

	s.mu.Lock()
	s.records = append([]Record{{Order: preview, Origin: OriginLocal}}, s.records...)
	s.mu.Unlock()
	cart.Clear()

	confirmed, err := s.api.CreateOrder(ctx, draft.Request)
	if err != nil {
		if apiclient.IsTransport(err) {
			q := QueuedOrder{LocalID: localID, Request: draft.Request, Preview: preview, QueuedAt: preview.CreatedAt}
			if qerr := s.enqueue(q); qerr != nil {
				s.removeLocal(localID)
				return CreateResult{}, fmt.Errorf("queue offline order: %w", qerr)
			}
			s.notify.OfflineSaved(preview)
			return CreateResult{Order: preview, Queued: true}, nil
		}
		s.removeLocal(localID)
		s.notify.Failed(err)
		return CreateResult{}, err
	}

	s.confirm(localID, *confirmed)
	return CreateResult{Order: *confirmed}, nil
}

// confirm swaps the provisional record for the server's order, unless a
// push for the same server id already put it in the list.
func (s *Store) confirm(localID string, o apiclient.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	li := s.indexOf(localID)
	if s.indexOf(o.ID) >= 0 {
		if li >= 0 {
			s.records = append(s.records[:li], s.records[li+1:]...)
		}
		return
	}
	rec := Record{Order: o, Origin: OriginServer}
	if li >= 0 {
		s.records[li] = rec
		return
	}
	s.records = append([]Record{rec}, s.records...)
}

func (s *Store) removeLocal(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(localID); i >= 0 {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
}

func (s *Store) enqueue(q QueuedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(append([]QueuedOrder(nil), s.queued...), q)
	if err := s.queue.Save(next); err != nil {
		return err
	}
	s.queued = next
	return nil
}

// --- Status and payment ---

// UpdateStatus applies the change locally, sends it, and either takes the
// server's answer or restores the previous order. Pushes for the order are
// ignored while the request is in flight.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (apiclient.Order, error) {
	return s.edit(ctx, id,
		func(o apiclient.Order) (apiclient.Order, error) {
			if err := orderstate.ValidateTransition(orderstate.Order{
				Status:        o.Status,
				PaymentStatus: o.PaymentStatus,
				PaymentMethod: o.PaymentMethod,
			}, status); err != nil {
				return o, err
			}
			o.Status = status
			return o, nil
		},
		func(ctx context.Context) (*apiclient.Order, error) {
			return s.api.UpdateOrderStatus(ctx, id, status)
		})
}

// MarkPaid settles a pending order the same way UpdateStatus changes status.
func (s *Store) MarkPaid(ctx context.Context, id string, req apiclient.MarkPaidRequest) (apiclient.Order, error) {
	return s.edit(ctx, id,
		func(o apiclient.Order) (apiclient.Order, error) {
			if err := orderstate.ValidateMarkPaid(orderstate.Order{
				Status:        o.Status,
				PaymentStatus: o.PaymentStatus,
				PaymentMethod: o.PaymentMethod,
			}, req.PaymentMethod); err != nil {
				return o, err
			}
			o.PaymentStatus = enum.PaymentStatusPaid
			o.PaymentMethod = req.PaymentMethod
			return o, nil
		},
		func(ctx context.Context) (*apiclient.Order, error) {
			return s.api.MarkPaid(ctx, id, req)
		})
}

func (s *Store) edit(
	ctx context.Context,
	id string,
	apply func(apiclient.Order) (apiclient.Order, error),
	send func(context.Context) (*apiclient.Order, error),
) (apiclient.Order, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return apiclient.Order{}, ErrOrderNotFound
	}
	if s.records[i].Provisional() {
		s.mu.Unlock()
		return apiclient.Order{}, ErrNotConfirmed
	}
	if _, busy := s.pending[id]; busy {
		s.mu.Unlock()
		return apiclient.Order{}, ErrUpdatePending
	}
	snapshot := s.records[i].Order
	optimistic, err := apply(snapshot)
	if err != nil {
		s.mu.Unlock()
		return snapshot, err
	}
	s.pending[id] = snapshot
	s.records[i].Order = optimistic
	s.mu.Unlock()

	updated, err := send(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	i = s.indexOf(id)

	if err != nil {
		if i >= 0 {
			s.records[i].Order = snapshot
		}
		s.notify.Failed(err)
		return snapshot, err
	}

	// A record dropped while the request was in flight, by close-day or a
	// refresh, stays dropped; the answer never brings it back.
	switch {
	case i < 0:
	case updated.Status == enum.OrderStatusClosed:
		s.records = append(s.records[:i], s.records[i+1:]...)
	default:
		s.records[i] = Record{Order: *updated, Origin: OriginServer}
	}
	return *updated, nil
}

// --- Realtime ---

// HandleEvent merges one realtime event. Events may repeat or arrive out of
// order relative to HTTP responses.
func (s *Store) HandleEvent(ev apiclient.Event) {
	switch ev.Type {
	case enum.EventOrderNew, enum.EventOrderUpdate:
		var o apiclient.Order
		if err := json.Unmarshal(ev.Payload, &o); err != nil || o.ID == "" {
			log.Printf("ERROR: decode %s event: %v", ev.Type, err)
			return
		}
		s.applyPush(o)
	case enum.EventSessionUpdate:
		var p struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			log.Printf("ERROR: decode %s event: %v", ev.Type, err)
			return
		}
		if p.Status == enum.SessionStatusClosed {
			s.dropServerOrders()
		}
	}
}

func (s *Store) applyPush(o apiclient.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.pending[o.ID]; busy {
		return
	}
	i := s.indexOf(o.ID)
	if o.Status == enum.OrderStatusClosed {
		if i >= 0 {
			s.records = append(s.records[:i], s.records[i+1:]...)
		}
		return
	}
	rec := Record{Order: o, Origin: OriginServer}
	if i >= 0 {
		s.records[i] = rec
		return
	}
	s.records = append([]Record{rec}, s.records...)
}

// dropServerOrders clears confirmed orders after close-day closed them all.
func (s *Store) dropServerOrders() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if r.Provisional() {
			kept = append(kept, r)
		}
	}
	s.records = kept
}

// --- Bulk refetch and offline drain ---

// Refresh replaces the local view with the server's active orders. Orders
// with an edit in flight keep their local version, and provisional orders
// stay on top.
func (s *Store) Refresh(ctx context.Context) error {
	incoming, err := s.api.ActiveOrders(ctx, 0)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]Record, 0, len(incoming)+len(s.records))
	for _, r := range s.records {
		if r.Provisional() {
			merged = append(merged, r)
		}
	}
	for _, o := range incoming {
		if _, busy := s.pending[o.ID]; busy {
			if i := s.indexOf(o.ID); i >= 0 {
				merged = append(merged, s.records[i])
				continue
			}
		}
		merged = append(merged, Record{Order: o, Origin: OriginServer})
	}
	s.records = merged
	return nil
}

// Resync is what to run after the realtime channel reconnects.
func (s *Store) Resync(ctx context.Context) (DrainResult, error) {
	if err := s.Refresh(ctx); err != nil {
		return DrainResult{Remaining: s.QueueLen()}, err
	}
	return s.Drain(ctx)
}

// Drain resubmits queued orders one at a time, oldest first. Orders that
// look already submitted are dropped quietly; rejected ones are dropped
// and reported; a transport failure stops the drain and keeps the rest.
func (s *Store) Drain(ctx context.Context) (DrainResult, error) {
	s.mu.Lock()
	if s.draining {
		n := len(s.queued)
		s.mu.Unlock()
		return DrainResult{Remaining: n}, nil
	}
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	var res DrainResult
	for {
		s.mu.Lock()
		if len(s.queued) == 0 {
			s.mu.Unlock()
			return res, nil
		}
		q := s.queued[0]
		dup := s.looksSubmitted(q)
		s.mu.Unlock()

		if dup {
			res.Duplicates++
			s.removeLocal(q.LocalID)
			if err := s.dequeue(q.LocalID); err != nil {
				res.Remaining = s.QueueLen()
				return res, err
			}
			continue
		}

		confirmed, err := s.api.CreateOrder(ctx, q.Request)
		switch {
		case err == nil:
			res.Submitted++
			s.confirm(q.LocalID, *confirmed)
			s.notify.Synced(*confirmed)
		case apiclient.IsTransport(err):
			res.Remaining = s.QueueLen()
			return res, err
		default:
			res.Dropped++
			s.removeLocal(q.LocalID)
			s.notify.Failed(fmt.Errorf("queued order for %s rejected: %w", q.Preview.CustomerName, err))
		}
		if err := s.dequeue(q.LocalID); err != nil {
			res.Remaining = s.QueueLen()
			return res, err
		}
	}
}

// looksSubmitted is the fuzzy duplicate check for a queued order: a
// confirmed order for the same customer, with a total within a cent, the
// same number of lines, created after the order was queued.
func (s *Store) looksSubmitted(q QueuedOrder) bool {
	for _, r := range s.records {
		if r.Provisional() {
			continue
		}
		o := r.Order
		if o.CustomerName != q.Preview.CustomerName {
			continue
		}
		if o.Total.Sub(q.Preview.Total).Abs().GreaterThan(duplicateTolerance) {
			continue
		}
		if len(o.Items) != len(q.Preview.Items) {
			continue
		}
		if o.CreatedAt.After(q.QueuedAt) {
			return true
		}
	}
	return false
}

func (s *Store) dequeue(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]QueuedOrder, 0, len(s.queued))
	for _, q := range s.queued {
		if q.LocalID != localID {
			next = append(next, q)
		}
	}
	if err := s.queue.Save(next); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	s.queued = next
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, r := range s.records {
		if r.Order.ID == id {
			return i
		}
	}
	return -1
}
