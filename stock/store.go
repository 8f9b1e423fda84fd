/*
store.go - Persistence interface for the ledger and the reference catalog

APPEND-ONLY CONTRACT:
  Entries are written only through Tx.InsertEntry inside WithTx. There is
  no update or delete for entries. The running balance of a key is the
  only mutable ledger state and it changes only together with an insert.

ATOMICITY:
  WithTx runs fn as one unit. If fn returns an error nothing it wrote is
  kept. This is what makes a failed append leave the ledger unchanged.

COMPARE-AND-SET:
  Tx.PutRunningBalance takes the version that was read. If another writer
  advanced the key meanwhile, the store returns ErrConcurrentModification
  and the ledger retries the whole unit.

IMPLEMENTATIONS:
  - stock/store/memory.go: in-memory, for tests and -db-driver=memory
  - store/sqlstore: database/sql, with sqlite, mysql and postgres dialects
*/
package stock

import "context"

// Store is everything the engine needs from persistence.
type Store interface {
	CatalogStore
	LedgerReader

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(Tx) error) error
}

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	// Entries returns every entry in canonical order
	// (transaction_date desc, created_at desc, id desc).
	Entries(ctx context.Context) ([]Entry, error)

	// LatestForKey returns the first entry for key in canonical order,
	// or nil if the key has no entries.
	LatestForKey(ctx context.Context, key StockKey) (*Entry, error)

	// RunningBalances returns the stored counter of every key.
	RunningBalances(ctx context.Context) ([]RunningBalance, error)

	// Snapshot reads entries and running balances as of one point in time.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a consistent view of the ledger.
type Snapshot struct {
	Entries  []Entry
	Balances []RunningBalance
}

// Tx is the write side, only reachable inside Store.WithTx.
type Tx interface {
	// RunningBalance returns the key's counter; ok is false for a key
	// that has never been written (version 0).
	RunningBalance(ctx context.Context, key StockKey) (rb RunningBalance, ok bool, err error)

	// PutRunningBalance stores balance for key if the stored version still
	// equals expectedVersion, and bumps the version.
	PutRunningBalance(ctx context.Context, key StockKey, balance int64, expectedVersion int64) error

	// InsertEntry appends an entry. The entry is already complete.
	InsertEntry(ctx context.Context, e Entry) error
}

// CatalogStore persists items, sizes and customers.
type CatalogStore interface {
	AddCatalogEntry(ctx context.Context, kind CatalogKind, e CatalogEntry) error

	// RemoveCatalogEntry returns a *NotFoundError if id does not exist.
	RemoveCatalogEntry(ctx context.Context, kind CatalogKind, id string) error

	// ListCatalog returns entries ordered by name, then id.
	ListCatalog(ctx context.Context, kind CatalogKind) ([]CatalogEntry, error)

	// GetCatalogEntry returns nil if id does not exist.
	GetCatalogEntry(ctx context.Context, kind CatalogKind, id string) (*CatalogEntry, error)
}
