package orderstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kopibar/pos/internal/apiclient"
)

// QueuedOrder is an order creation that could not reach the server.
type QueuedOrder struct {
	LocalID  string                       `json:"local_id"`
	Request  apiclient.CreateOrderRequest `json:"request"`
	Preview  apiclient.Order              `json:"preview"`
	QueuedAt time.Time                    `json:"queued_at"`
}

// QueueStore persists the offline queue across restarts.
type QueueStore interface {
	Load() ([]QueuedOrder, error)
	Save(orders []QueuedOrder) error
}

// FileQueue keeps the queue as a JSON array in a single file.
type FileQueue struct {
	path string
	mu   sync.Mutex
}

func NewFileQueue(path string) *FileQueue {
	return &FileQueue{path: path}
}

// Load returns the queued orders; a missing file is an empty queue.
func (f *FileQueue) Load() ([]QueuedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out []QueuedOrder
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode queue %s: %w", f.path, err)
	}
	return out, nil
}

// Save replaces the file contents through a rename so a crash never leaves
// a half-written queue.
func (f *FileQueue) Save(orders []QueuedOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if orders == nil {
		orders = []QueuedOrder{}
	}
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".queue-*.json")
	if err != nil {
		return fmt.Errorf("create temp queue: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write queue: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close queue: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace queue: %w", err)
	}
	return nil
}

// MemoryQueue is a QueueStore that forgets on exit.
type MemoryQueue struct {
	mu     sync.Mutex
	orders []QueuedOrder
}

func (m *MemoryQueue) Load() ([]QueuedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]QueuedOrder(nil), m.orders...), nil
}

func (m *MemoryQueue) Save(orders []QueuedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append([]QueuedOrder(nil), orders...)
	return nil
}
