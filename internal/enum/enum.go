package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusNew       = "new"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusVoided    = "voided"
	OrderStatusClosed    = "closed"
)

const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
)

const (
	SessionStatusOpen   = "OPEN"
	SessionStatusClosed = "CLOSED"
)

const (
	DrinkTicketPending   = "pending"
	DrinkTicketCompleted = "completed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

const (
	OrderTypeDineIn  = "dine-in"
	OrderTypeTakeOut = "take-out"
)

const (
	ItemTypeFood  = "food"
	ItemTypeDrink = "drink"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash         = "CASH"
	PaymentMethodGCash        = "GCASH"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
	PaymentMethodPayLater     = "PAY_LATER"
)

const (
	SettingGlobalAddons = "global_addons"
	SettingMaintenance  = "maintenance_mode"
	SettingTestMode     = "test_mode"
)

const (
	EventOrderNew       = "order:new"
	EventOrderUpdate    = "order:update"
	EventMenuUpdate     = "menu:update"
	EventSettingsUpdate = "settings:update"
	EventSessionUpdate  = "session:update"
	EventTicketNew      = "ticket:new"
	EventTicketUpdate   = "ticket:update"
)

const DefaultCustomerName = "Guest"
