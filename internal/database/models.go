package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Username       string
	HashedPassword string
	Pin            pgtype.Text
	FullName       string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	SortOrder int32
	CreatedAt time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	Category    string
	Type        string
	Emoji       string
	Flavors     []byte
	MaxFlavors  int32
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID             uuid.UUID
	Total          pgtype.Numeric
	Status         string
	PaymentStatus  string
	PaymentMethod  string
	AmountTendered pgtype.Numeric
	ChangeAmount   pgtype.Numeric
	CustomerName   string
	TableNumber    pgtype.Text
	BeeperNumber   pgtype.Text
	OrderType      string
	IsTest         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       pgtype.Timestamptz
}

type OrderItem struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	MenuItemID      uuid.UUID
	Name            string
	Price           pgtype.Numeric
	ItemType        string
	Quantity        int32
	SelectedFlavors []string
	UnitPrice       pgtype.Numeric
	LineTotal       pgtype.Numeric
}

type Session struct {
	ID          uuid.UUID
	Status      string
	OpenedAt    time.Time
	ClosedAt    pgtype.Timestamptz
	TotalOrders int32
	TotalSales  pgtype.Numeric
}

type Setting struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

type DrinkTicket struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	CustomerName string
	TableNumber  pgtype.Text
	BeeperNumber pgtype.Text
	Items        []byte
	Status       string
	CreatedAt    time.Time
	CompletedAt  pgtype.Timestamptz
}
