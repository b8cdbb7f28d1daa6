package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kopibar/pos/internal/database"
)

// Errors returned by the session ledger.
var (
	ErrSessionAlreadyOpen = errors.New("store is already open")
	ErrNoOpenSession      = errors.New("store is not open")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session detail has expired")
)

// SessionStore defines the DB methods needed by the session ledger.
// Satisfied by *database.Queries (and its WithTx variant).
type SessionStore interface {
	GetOpenSession(ctx context.Context) (database.Session, error)
	GetOpenSessionForUpdate(ctx context.Context) (database.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (database.Session, error)
	CreateSession(ctx context.Context) (database.Session, error)
	AggregateSessionOrders(ctx context.Context, since time.Time) (database.AggregateSessionOrdersRow, error)
	CloseSession(ctx context.Context, arg database.CloseSessionParams) (database.Session, error)
	CloseOpenOrders(ctx context.Context) (int64, error)
	ListClosedSessions(ctx context.Context, arg database.ListClosedSessionsParams) ([]database.Session, error)
	CountClosedSessions(ctx context.Context) (int64, error)
	ListOrdersBetween(ctx context.Context, arg database.ListOrdersBetweenParams) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
}

// NewSessionStore creates a SessionStore from a DBTX (pool or tx).
type NewSessionStore func(db database.DBTX) SessionStore

// SessionService is the ledger of business days.
type SessionService struct {
	db        DB
	newStore  NewSessionStore
	retention time.Duration
	now       func() time.Time
}

// NewSessionService creates a new SessionService. Order detail of a closed
// session stays readable for retention after close.
func NewSessionService(db DB, newStore NewSessionStore, retention time.Duration) *SessionService {
	return &SessionService{db: db, newStore: newStore, retention: retention, now: time.Now}
}

// CloseSummary is what close-day reports.
type CloseSummary struct {
	Session      database.Session
	ClosedOrders int64
}

// SessionPage is one page of closed sessions, newest close first.
type SessionPage struct {
	Sessions []database.Session
	Page     int
	Limit    int
	Total    int64
}

// SessionDetail is a session with the orders created inside its window.
type SessionDetail struct {
	Session database.Session
	Orders  []OrderDetail
}

// OpenDay starts a new business day with zeroed counters.
func (s *SessionService) OpenDay(ctx context.Context) (*database.Session, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	if _, err := store.GetOpenSession(ctx); err == nil {
		return nil, ErrSessionAlreadyOpen
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open session: %w", err)
	}

	session, err := store.CreateSession(ctx)
	if err != nil {
		// A concurrent open-day that won the race trips the one-open index.
		if isUniqueViolation(err) {
			return nil, ErrSessionAlreadyOpen
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSessionAlreadyOpen
		}
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &session, nil
}

// CloseDay freezes the open session's counters and closes every non-closed
// order, all in one transaction.
func (s *SessionService) CloseDay(ctx context.Context) (*CloseSummary, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	open, err := store.GetOpenSessionForUpdate(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}

	agg, err := store.AggregateSessionOrders(ctx, open.OpenedAt)
	if err != nil {
		return nil, fmt.Errorf("aggregate session orders: %w", err)
	}
	if agg.TotalOrders != open.TotalOrders || !numericToDecimal(agg.TotalSales).Equal(numericToDecimal(open.TotalSales)) {
		log.Printf("WARN: session %s running counters (%d, %s) differ from order aggregate (%d, %s)",
			open.ID, open.TotalOrders, numericToDecimal(open.TotalSales).StringFixed(2),
			agg.TotalOrders, numericToDecimal(agg.TotalSales).StringFixed(2))
	}

	closed, err := store.CloseSession(ctx, database.CloseSessionParams{
		ID:          open.ID,
		TotalOrders: agg.TotalOrders,
		TotalSales:  agg.TotalSales,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenSession
		}
		return nil, fmt.Errorf("close session: %w", err)
	}

	n, err := store.CloseOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("close open orders: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CloseSummary{Session: closed, ClosedOrders: n}, nil
}

// Current returns the open session, or nil when the store is closed.
func (s *SessionService) Current(ctx context.Context) (*database.Session, error) {
	session, err := s.newStore(s.db).GetOpenSession(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}
	return &session, nil
}

// History lists closed sessions. Summary counters never expire.
func (s *SessionService) History(ctx context.Context, page, limit int) (*SessionPage, error) {
	store := s.newStore(s.db)
	sessions, err := store.ListClosedSessions(ctx, database.ListClosedSessionsParams{
		Limit:  int32(limit),
		Offset: int32((page - 1) * limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list closed sessions: %w", err)
	}
	total, err := store.CountClosedSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count closed sessions: %w", err)
	}
	if sessions == nil {
		sessions = []database.Session{}
	}
	return &SessionPage{Sessions: sessions, Page: page, Limit: limit, Total: total}, nil
}

// Detail returns a session with its orders. Orders belong to a session by
// creation time within [opened_at, closed_at]; a still-open session runs to now.
func (s *SessionService) Detail(ctx context.Context, id uuid.UUID) (*SessionDetail, error) {
	store := s.newStore(s.db)
	session, err := store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	to := s.now()
	if session.ClosedAt.Valid {
		if s.now().Sub(session.ClosedAt.Time) >= s.retention {
			return nil, ErrSessionExpired
		}
		to = session.ClosedAt.Time
	}

	orders, err := store.ListOrdersBetween(ctx, database.ListOrdersBetweenParams{From: session.OpenedAt, To: to})
	if err != nil {
		return nil, fmt.Errorf("list session orders: %w", err)
	}
	detail := &SessionDetail{Session: session, Orders: []OrderDetail{}}
	if len(orders) == 0 {
		return detail, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := store.ListOrderItemsByOrders(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	detail.Orders = groupItems(orders, items)
	return detail, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
