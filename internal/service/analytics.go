package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kopibar/pos/internal/cache"
	"github.com/kopibar/pos/internal/database"
	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned for an unknown analytics range.
var ErrInvalidRange = errors.New("range must be one of today, week, month")

const topItemsLimit = 10

var analyticsRanges = []string{"today", "week", "month"}

// AnalyticsStore defines the DB methods needed for the dashboard.
// Satisfied by *database.Queries.
type AnalyticsStore interface {
	GetSalesSummary(ctx context.Context, arg database.AnalyticsRangeParams) (database.GetSalesSummaryRow, error)
	GetTopItems(ctx context.Context, arg database.GetTopItemsParams) ([]database.GetTopItemsRow, error)
	GetPaymentBreakdown(ctx context.Context, arg database.AnalyticsRangeParams) ([]database.GetPaymentBreakdownRow, error)
	GetHourlySales(ctx context.Context, arg database.AnalyticsRangeParams) ([]database.GetHourlySalesRow, error)
}

// --- Result types (cached as JSON) ---

type Analytics struct {
	Range          string             `json:"range"`
	From           time.Time          `json:"from"`
	To             time.Time          `json:"to"`
	OrderCount     int64              `json:"order_count"`
	TotalSales     string             `json:"total_sales"`
	AverageTicket  string             `json:"average_ticket"`
	TopItems       []TopItem          `json:"top_items"`
	PaymentMethods []PaymentBreakdown `json:"payment_methods"`
	Hourly         []HourlySales      `json:"hourly"`
}

type TopItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Revenue  string `json:"revenue"`
}

type PaymentBreakdown struct {
	PaymentMethod string `json:"payment_method"`
	OrderCount    int64  `json:"order_count"`
	Total         string `json:"total"`
}

type HourlySales struct {
	Hour       int32  `json:"hour"`
	OrderCount int64  `json:"order_count"`
	Total      string `json:"total"`
}

// AnalyticsService computes dashboard figures and caches them per range.
type AnalyticsService struct {
	store AnalyticsStore
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

func NewAnalyticsService(store AnalyticsStore, c cache.Cache, ttl time.Duration) *AnalyticsService {
	return &AnalyticsService{store: store, cache: c, ttl: ttl, now: time.Now}
}

// Window returns the [from, to) interval for a named range.
func Window(rng string, now time.Time) (time.Time, time.Time, error) {
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch rng {
	case "", "today":
		return startOfDay, now, nil
	case "week":
		return startOfDay.AddDate(0, 0, -6), now, nil
	case "month":
		return startOfDay.AddDate(0, 0, -29), now, nil
	}
	return time.Time{}, time.Time{}, ErrInvalidRange
}

// Get returns analytics for rng, served from cache when fresh.
func (s *AnalyticsService) Get(ctx context.Context, rng string) (*Analytics, error) {
	if rng == "" {
		rng = "today"
	}
	from, to, err := Window(rng, s.now())
	if err != nil {
		return nil, err
	}

	key := analyticsKey(rng)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached Analytics
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Printf("WARN: analytics cache get: %v", err)
	}

	result, err := s.compute(ctx, rng, from, to)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			log.Printf("WARN: analytics cache set: %v", err)
		}
	}
	return result, nil
}

// Invalidate drops every cached range so the next read sees new orders.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	keys := make([]string, len(analyticsRanges))
	for i, rng := range analyticsRanges {
		keys[i] = analyticsKey(rng)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("WARN: analytics cache delete: %v", err)
	}
}

func analyticsKey(rng string) string { return "analytics:" + rng }

func (s *AnalyticsService) compute(ctx context.Context, rng string, from, to time.Time) (*Analytics, error) {
	window := database.AnalyticsRangeParams{From: from, To: to}

	summary, err := s.store.GetSalesSummary(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("sales summary: %w", err)
	}
	top, err := s.store.GetTopItems(ctx, database.GetTopItemsParams{From: from, To: to, Limit: topItemsLimit})
	if err != nil {
		return nil, fmt.Errorf("top items: %w", err)
	}
	methods, err := s.store.GetPaymentBreakdown(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("payment breakdown: %w", err)
	}
	hourly, err := s.store.GetHourlySales(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("hourly sales: %w", err)
	}

	sales := numericToDecimal(summary.TotalSales)
	avg := decimal.Zero
	if summary.OrderCount > 0 {
		avg = sales.Div(decimal.NewFromInt(summary.OrderCount))
	}

	result := &Analytics{
		Range:          rng,
		From:           from,
		To:             to,
		OrderCount:     summary.OrderCount,
		TotalSales:     sales.StringFixed(2),
		AverageTicket:  avg.StringFixed(2),
		TopItems:       make([]TopItem, len(top)),
		PaymentMethods: make([]PaymentBreakdown, len(methods)),
		Hourly:         make([]HourlySales, len(hourly)),
	}
	for i, t := range top {
		result.TopItems[i] = TopItem{Name: t.Name, Quantity: t.Quantity, Revenue: numericToDecimal(t.Revenue).StringFixed(2)}
	}
	for i, m := range methods {
		result.PaymentMethods[i] = PaymentBreakdown{
			PaymentMethod: m.PaymentMethod,
			OrderCount:    m.OrderCount,
			Total:         numericToDecimal(m.Total).StringFixed(2),
		}
	}
	for i, h := range hourly {
		result.Hourly[i] = HourlySales{Hour: h.Hour, OrderCount: h.OrderCount, Total: numericToDecimal(h.Total).StringFixed(2)}
	}
	return result, nil
}
