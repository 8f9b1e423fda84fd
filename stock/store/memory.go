// Package store provides the in-memory stock.Store.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/stock-ledger/stock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps the ledger in canonical order. WithTx holds the write lock
// for the whole unit, so transactions are fully serialized.
type Memory struct {
	mu       sync.RWMutex
	entries  []stock.Entry
	balances map[stock.StockKey]stock.RunningBalance
	catalog  map[stock.CatalogKind]map[string]stock.CatalogEntry
}

func NewMemory() *Memory {
	m := &Memory{
		balances: make(map[stock.StockKey]stock.RunningBalance),
		catalog:  make(map[stock.CatalogKind]map[string]stock.CatalogEntry),
	}
	for _, kind := range stock.CatalogKinds {
		m.catalog[kind] = make(map[string]stock.CatalogEntry)
	}
	return m
}

var _ stock.Store = (*Memory)(nil)

var timeNow = time.Now

// =============================================================================
// LEDGER READS
// =============================================================================

func (m *Memory) Entries(_ context.Context) ([]stock.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]stock.Entry, len(m.entries))
	copy(result, m.entries)
	return result, nil
}

func (m *Memory) LatestForKey(_ context.Context, key stock.StockKey) (*stock.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.Key == key {
			latest := e
			return &latest, nil
		}
	}
	return nil, nil
}

func (m *Memory) RunningBalances(_ context.Context) ([]stock.RunningBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balancesLocked(), nil
}

func (m *Memory) Snapshot(_ context.Context) (stock.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]stock.Entry, len(m.entries))
	copy(entries, m.entries)
	return stock.Snapshot{Entries: entries, Balances: m.balancesLocked()}, nil
}

func (m *Memory) balancesLocked() []stock.RunningBalance {
	result := make([]stock.RunningBalance, 0, len(m.balances))
	for _, rb := range m.balances {
		result = append(result, rb)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key.Less(result[j].Key) })
	return result
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(stock.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryTx{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	entries  []stock.Entry
	balances map[stock.StockKey]stock.RunningBalance
}

func (m *Memory) snapshot() memorySnapshot {
	entries := make([]stock.Entry, len(m.entries))
	copy(entries, m.entries)
	balances := make(map[stock.StockKey]stock.RunningBalance, len(m.balances))
	for k, v := range m.balances {
		balances[k] = v
	}
	return memorySnapshot{entries: entries, balances: balances}
}

func (m *Memory) restore(s memorySnapshot) {
	m.entries = s.entries
	m.balances = s.balances
}

type memoryTx struct {
	parent *Memory
}

func (tx *memoryTx) RunningBalance(_ context.Context, key stock.StockKey) (stock.RunningBalance, bool, error) {
	rb, ok := tx.parent.balances[key]
	return rb, ok, nil
}

func (tx *memoryTx) PutRunningBalance(_ context.Context, key stock.StockKey, balance, expectedVersion int64) error {
	current := tx.parent.balances[key]
	if current.Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d",
			stock.ErrConcurrentModification, key, current.Version, expectedVersion)
	}
	tx.parent.balances[key] = stock.RunningBalance{
		Key:       key,
		Balance:   balance,
		Version:   expectedVersion + 1,
		UpdatedAt: timeNow().UTC(),
	}
	return nil
}

// InsertEntry places e at its canonical position.
func (tx *memoryTx) InsertEntry(_ context.Context, e stock.Entry) error {
	m := tx.parent
	for _, existing := range m.entries {
		if existing.ID == e.ID {
			return fmt.Errorf("entry %s already exists", e.ID)
		}
	}

	i := sort.Search(len(m.entries), func(i int) bool {
		return stock.Precedes(e, m.entries[i])
	})
	m.entries = append(m.entries, stock.Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) AddCatalogEntry(_ context.Context, kind stock.CatalogKind, e stock.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.catalog[kind]
	if !ok {
		return fmt.Errorf("unknown catalog %q", kind)
	}
	if _, exists := set[e.ID]; exists {
		return fmt.Errorf("%s %s already exists", kind.Singular(), e.ID)
	}
	set[e.ID] = e
	return nil
}

func (m *Memory) RemoveCatalogEntry(_ context.Context, kind stock.CatalogKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.catalog[kind]
	if _, ok := set[id]; !ok {
		return &stock.NotFoundError{Kind: kind, ID: id}
	}
	delete(set, id)
	return nil
}

func (m *Memory) ListCatalog(_ context.Context, kind stock.CatalogKind) ([]stock.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.catalog[kind]
	result := make([]stock.CatalogEntry, 0, len(set))
	for _, e := range set {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) GetCatalogEntry(_ context.Context, kind stock.CatalogKind, id string) (*stock.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.catalog[kind][id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}
