package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopibar/pos/internal/appstate"
	"github.com/kopibar/pos/internal/database"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr error
	committed bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}
func (m *mockTx) Rollback(ctx context.Context) error { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockDB implements DB. Statements never reach it because the store
// factory returns the mock store regardless of the DBTX passed in.
type mockDB struct {
	tx       *mockTx
	beginErr error
	begun    int
}

func (m *mockDB) Begin(ctx context.Context) (pgx.Tx, error) {
	m.begun++
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}
func (m *mockDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

// mockStore implements OrderStore and SessionStore with configurable behavior.
// Unset functions panic so a test fails loudly on an unexpected call.
type mockStore struct {
	getOpenSessionFn          func(ctx context.Context) (database.Session, error)
	getOpenSessionForUpdateFn func(ctx context.Context) (database.Session, error)
	getSessionFn              func(ctx context.Context, id uuid.UUID) (database.Session, error)
	createSessionFn           func(ctx context.Context) (database.Session, error)
	incrementSessionFn        func(ctx context.Context, arg database.IncrementSessionCountersParams) (database.Session, error)
	aggregateSessionFn        func(ctx context.Context, since time.Time) (database.AggregateSessionOrdersRow, error)
	closeSessionFn            func(ctx context.Context, arg database.CloseSessionParams) (database.Session, error)
	closeOpenOrdersFn         func(ctx context.Context) (int64, error)
	listClosedSessionsFn      func(ctx context.Context, arg database.ListClosedSessionsParams) ([]database.Session, error)
	countClosedSessionsFn     func(ctx context.Context) (int64, error)
	listOrdersBetweenFn       func(ctx context.Context, arg database.ListOrdersBetweenParams) ([]database.Order, error)
	listMenuItemsByIDsFn      func(ctx context.Context, ids []uuid.UUID) ([]database.MenuItem, error)
	getSettingFn              func(ctx context.Context, key string) (database.Setting, error)
	createOrderFn             func(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	createOrderItemFn         func(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	getOrderFn                func(ctx context.Context, id uuid.UUID) (database.Order, error)
	getOrderForUpdateFn       func(ctx context.Context, id uuid.UUID) (database.Order, error)
	listOrderItemsFn          func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	listOrderItemsByOrdersFn  func(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error)
	listActiveOrdersFn        func(ctx context.Context, since time.Time) ([]database.Order, error)
	updateOrderStatusFn       func(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	markOrderPaidFn           func(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error)
	createDrinkTicketFn       func(ctx context.Context, arg database.CreateDrinkTicketParams) (database.DrinkTicket, error)
}

func (m *mockStore) GetOpenSession(ctx context.Context) (database.Session, error) {
	return m.getOpenSessionFn(ctx)
}
func (m *mockStore) GetOpenSessionForUpdate(ctx context.Context) (database.Session, error) {
	return m.getOpenSessionForUpdateFn(ctx)
}
func (m *mockStore) GetSession(ctx context.Context, id uuid.UUID) (database.Session, error) {
	return m.getSessionFn(ctx, id)
}
func (m *mockStore) CreateSession(ctx context.Context) (database.Session, error) {
	return m.createSessionFn(ctx)
}
func (m *mockStore) IncrementSessionCounters(ctx context.Context, arg database.IncrementSessionCountersParams) (database.Session, error) {
	return m.incrementSessionFn(ctx, arg)
}
func (m *mockStore) AggregateSessionOrders(ctx context.Context, since time.Time) (database.AggregateSessionOrdersRow, error) {
	return m.aggregateSessionFn(ctx, since)
}
func (m *mockStore) CloseSession(ctx context.Context, arg database.CloseSessionParams) (database.Session, error) {
	return m.closeSessionFn(ctx, arg)
}
func (m *mockStore) CloseOpenOrders(ctx context.Context) (int64, error) {
	return m.closeOpenOrdersFn(ctx)
}
func (m *mockStore) ListClosedSessions(ctx context.Context, arg database.ListClosedSessionsParams) ([]database.Session, error) {
	return m.listClosedSessionsFn(ctx, arg)
}
func (m *mockStore) CountClosedSessions(ctx context.Context) (int64, error) {
	return m.countClosedSessionsFn(ctx)
}
func (m *mockStore) ListOrdersBetween(ctx context.Context, arg database.ListOrdersBetweenParams) ([]database.Order, error) {
	return m.listOrdersBetweenFn(ctx, arg)
}
func (m *mockStore) ListMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.MenuItem, error) {
	return m.listMenuItemsByIDsFn(ctx, ids)
}
func (m *mockStore) GetSetting(ctx context.Context, key string) (database.Setting, error) {
	return m.getSettingFn(ctx, key)
}
func (m *mockStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	return m.createOrderFn(ctx, arg)
}
func (m *mockStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return m.createOrderItemFn(ctx, arg)
}
func (m *mockStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrderForUpdateFn(ctx, id)
}
func (m *mockStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsFn(ctx, orderID)
}
func (m *mockStore) ListOrderItemsByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]database.OrderItem, error) {
	return m.listOrderItemsByOrdersFn(ctx, orderIDs)
}
func (m *mockStore) ListActiveOrders(ctx context.Context, since time.Time) ([]database.Order, error) {
	return m.listActiveOrdersFn(ctx, since)
}
func (m *mockStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	return m.updateOrderStatusFn(ctx, arg)
}
func (m *mockStore) MarkOrderPaid(ctx context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	return m.markOrderPaidFn(ctx, arg)
}
func (m *mockStore) CreateDrinkTicket(ctx context.Context, arg database.CreateDrinkTicketParams) (database.DrinkTicket, error) {
	return m.createDrinkTicketFn(ctx, arg)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

func newTestOrderService(store *mockStore, st appstate.State) (*OrderService, *mockDB) {
	db := &mockDB{tx: &mockTx{}}
	newStore := func(database.DBTX) OrderStore { return store }
	return NewOrderService(db, newStore, appstate.Static(st)), db
}

func newTestSessionService(store *mockStore, now time.Time) (*SessionService, *mockDB) {
	db := &mockDB{tx: &mockTx{}}
	newStore := func(database.DBTX) SessionStore { return store }
	svc := NewSessionService(db, newStore, 24*time.Hour)
	svc.now = func() time.Time { return now }
	return svc, db
}
