// Package apiclient is the terminal client's view of the POS server: typed
// calls for every endpoint and the realtime subscriber.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kopibar/pos/internal/catalog"
)

// ErrTransport wraps failures where no response was received.
var ErrTransport = errors.New("transport failure")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
}

// IsTransport reports whether err means the request never got a response.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

const maxBodyBytes = 4 * 1024 * 1024

// Client talks to the POS HTTP API.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries bounds the number of retries after the first attempt.
func WithRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackOff replaces the exponential backoff policy.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 15 * time.Second},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 300 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the server root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// do sends one request with bounded retry. Transport failures and 5xx
// responses are retried; any 4xx is returned at once.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)

	return backoff.Retry(func() error {
		err := c.once(ctx, method, path, body, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: reading response body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(resp.StatusCode)
		if json.Unmarshal(respBytes, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, out); err != nil {
		return fmt.Errorf("parsing response JSON (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

// --- Auth ---

// Login authenticates with username and password and keeps the access token.
func (c *Client) Login(ctx context.Context, username, password string) (*Tokens, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"username": username, "password": password})
}

// PinLogin authenticates with a staff PIN and keeps the access token.
func (c *Client) PinLogin(ctx context.Context, pin string) (*Tokens, error) {
	return c.authenticate(ctx, "/auth/pin-login", map[string]string{"pin": pin})
}

// Refresh exchanges a refresh token and keeps the new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return c.authenticate(ctx, "/auth/refresh", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*Tokens, error) {
	var t Tokens
	if err := c.do(ctx, http.MethodPost, path, body, &t); err != nil {
		return nil, err
	}
	c.SetToken(t.AccessToken)
	return &t, nil
}

// --- Orders ---

func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPost, "/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ActiveOrders lists non-closed orders; windowHours <= 0 uses the server default.
func (c *Client) ActiveOrders(ctx context.Context, windowHours int) ([]Order, error) {
	path := "/orders"
	if windowHours > 0 {
		path += "?window_hours=" + strconv.Itoa(windowHours)
	}
	var orders []Order
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string) (*Order, error) {
	var o Order
	path := "/orders/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"status": status}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) MarkPaid(ctx context.Context, id string, req MarkPaidRequest) (*Order, error) {
	var o Order
	if err := c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/pay", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// --- Drink tickets ---

func (c *Client) DrinkTickets(ctx context.Context) ([]DrinkTicket, error) {
	var tickets []DrinkTicket
	if err := c.do(ctx, http.MethodGet, "/drink-tickets", nil, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (c *Client) CompleteDrinkTicket(ctx context.Context, id string) (*DrinkTicket, error) {
	var t DrinkTicket
	if err := c.do(ctx, http.MethodPatch, "/drink-tickets/"+url.PathEscape(id)+"/complete", nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Menu ---

func (c *Client) Menu(ctx context.Context) ([]catalog.MenuItem, error) {
	var items []catalog.MenuItem
	if err := c.do(ctx, http.MethodGet, "/menu", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) CreateMenuItem(ctx context.Context, in MenuItemInput) (*catalog.MenuItem, error) {
	var item catalog.MenuItem
	if err := c.do(ctx, http.MethodPost, "/menu", in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateMenuItem(ctx context.Context, id string, in MenuItemInput) (*catalog.MenuItem, error) {
	var item catalog.MenuItem
	if err := c.do(ctx, http.MethodPut, "/menu/"+url.PathEscape(id), in, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteMenuItem(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/menu/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

func (c *Client) CreateCategory(ctx context.Context, name string, sortOrder int) (*Category, error) {
	var cat Category
	body := map[string]interface{}{"name": name, "sort_order": sortOrder}
	if err := c.do(ctx, http.MethodPost, "/categories", body, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GlobalAddons(ctx context.Context) ([]catalog.GlobalAddonSection, error) {
	var addons []catalog.GlobalAddonSection
	if err := c.do(ctx, http.MethodGet, "/settings/global-addons", nil, &addons); err != nil {
		return nil, err
	}
	return addons, nil
}

func (c *Client) SetGlobalAddons(ctx context.Context, addons []catalog.GlobalAddonSection) ([]catalog.GlobalAddonSection, error) {
	var out []catalog.GlobalAddonSection
	if err := c.do(ctx, http.MethodPut, "/settings/global-addons", addons, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Admin ---

func (c *Client) OpenDay(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.do(ctx, http.MethodPost, "/admin/open-day", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) CloseDay(ctx context.Context) (*CloseSummary, error) {
	var s CloseSummary
	if err := c.do(ctx, http.MethodPost, "/admin/close-day", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) Status(ctx context.Context) (*StoreStatus, error) {
	var s StoreStatus
	if err := c.do(ctx, http.MethodGet, "/admin/status", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) History(ctx context.Context, page, limit int) (*HistoryPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/admin/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var h HistoryPage
	if err := c.do(ctx, http.MethodGet, path, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) HistoryDetail(ctx context.Context, id string) (*SessionDetail, error) {
	var d SessionDetail
	if err := c.do(ctx, http.MethodGet, "/admin/history/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) SetMaintenance(ctx context.Context, on bool) (*AppState, error) {
	return c.toggle(ctx, "/admin/maintenance", on)
}

func (c *Client) SetTestMode(ctx context.Context, on bool) (*AppState, error) {
	return c.toggle(ctx, "/admin/test-mode", on)
}

func (c *Client) toggle(ctx context.Context, path string, on bool) (*AppState, error) {
	var st AppState
	if err := c.do(ctx, http.MethodPut, path, map[string]bool{"enabled": on}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Analytics fetches dashboard figures for today, week or month.
func (c *Client) Analytics(ctx context.Context, rng string) (*Analytics, error) {
	path := "/admin/analytics"
	if rng != "" {
		path += "?range=" + url.QueryEscape(rng)
	}
	var a Analytics
	if err := c.do(ctx, http.MethodGet, path, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
