/*
Package sqlstore implements stock.Store on database/sql.

PURPOSE:
  One implementation shared by SQLite, MySQL and PostgreSQL. Queries are
  built with squirrel so that only the placeholder format and a handful
  of dialect details (see Dialect) differ between databases.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statement ever touches stock_entries
  - stock_balances is updated only by compare-and-set on its version,
    inside the same transaction as the entry insert

KEY TABLES:
  items, sizes, customers: reference catalog
  stock_entries:           the ledger
  stock_balances:          running balance per (item, size, brand)

TEXT TIMES:
  created_at is stored as fixed-width UTC text (nanosecond precision) so
  that ORDER BY on the column is chronological on every database.
  transaction_date is stored as YYYY-MM-DD.

USAGE:
  st, err := sqlite.New("./data/stock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  ledger := stock.NewLedger(st)

SEE ALSO:
  - stock/store.go: interface definitions
  - store/sqlite, store/mysql, store/postgres: dialects
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/warp/stock-ledger/stock"
)

// TimeLayout is the fixed-width text format of stored timestamps.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

var tracer = otel.Tracer("github.com/warp/stock-ledger/store/sqlstore")

var entryColumns = []string{
	"id", "transaction_date", "item_id", "size_id", "brand",
	"received_quantity", "issued_quantity", "balance", "movement_kind",
	"grn_number", "customer_id", "delivery_order_number", "created_at",
}

// Store implements stock.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	sb      squirrel.StatementBuilderType
}

var _ stock.Store = (*Store)(nil)

// Open wraps db and migrates the schema. The caller keeps ownership of
// db until Close.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		dialect: d,
		sb:      squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection pool, e.g. for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// LEDGER READS
// =============================================================================

func (s *Store) Entries(ctx context.Context) ([]stock.Entry, error) {
	return s.entries(ctx, s.db)
}

func (s *Store) entries(ctx context.Context, q querier) ([]stock.Entry, error) {
	query, args, err := s.sb.Select(entryColumns...).
		From("stock_entries").
		OrderBy("transaction_date DESC", "created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build entries query: %w", err)
	}
	return queryEntries(ctx, q, query, args...)
}

func (s *Store) LatestForKey(ctx context.Context, key stock.StockKey) (*stock.Entry, error) {
	query, args, err := s.sb.Select(entryColumns...).
		From("stock_entries").
		Where(keyEq(key)).
		OrderBy("transaction_date DESC", "created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest query: %w", err)
	}

	entries, err := queryEntries(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (s *Store) RunningBalances(ctx context.Context) ([]stock.RunningBalance, error) {
	return s.runningBalances(ctx, s.db)
}

func (s *Store) runningBalances(ctx context.Context, q querier) ([]stock.RunningBalance, error) {
	query, args, err := s.sb.Select("item_id", "size_id", "brand", "balance", "version", "updated_at").
		From("stock_balances").
		OrderBy("item_id", "size_id", "brand").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build balances query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var result []stock.RunningBalance
	for rows.Next() {
		rb, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rb)
	}
	return result, rows.Err()
}

// Snapshot reads entries and balances in one read-only transaction.
func (s *Store) Snapshot(ctx context.Context) (stock.Snapshot, error) {
	sqlTx, err := s.db.BeginTx(ctx, s.dialect.SnapshotTx)
	if err != nil {
		return stock.Snapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	entries, err := s.entries(ctx, sqlTx)
	if err != nil {
		return stock.Snapshot{}, err
	}
	balances, err := s.runningBalances(ctx, sqlTx)
	if err != nil {
		return stock.Snapshot{}, err
	}
	if err := sqlTx.Commit(); err != nil {
		return stock.Snapshot{}, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return stock.Snapshot{Entries: entries, Balances: balances}, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(stock.Tx) error) (err error) {
	ctx, span := tracer.Start(ctx, "sqlstore.WithTx", trace.WithAttributes(
		attribute.String("db.system", s.dialect.Name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transaction rolled back")
		}
		span.End()
	}()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return s.classify(err)
	}

	if err := sqlTx.Commit(); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", stock.ErrConcurrentModification, err)
		}
		return s.classify(fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func (s *Store) classify(err error) error {
	if s.dialect.IsConflict != nil && !errors.Is(err, stock.ErrConcurrentModification) && s.dialect.IsConflict(err) {
		return fmt.Errorf("%w: %v", stock.ErrConcurrentModification, err)
	}
	return err
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) RunningBalance(ctx context.Context, key stock.StockKey) (stock.RunningBalance, bool, error) {
	b := ts.parent.sb.Select("item_id", "size_id", "brand", "balance", "version", "updated_at").
		From("stock_balances").
		Where(keyEq(key))
	if ts.parent.dialect.LockRows {
		b = b.Suffix("FOR UPDATE")
	}

	query, args, err := b.ToSql()
	if err != nil {
		return stock.RunningBalance{}, false, fmt.Errorf("build balance query: %w", err)
	}

	rb, err := scanBalance(ts.tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return stock.RunningBalance{}, false, nil
	}
	if err != nil {
		return stock.RunningBalance{}, false, err
	}
	return rb, true, nil
}

// PutRunningBalance inserts the first counter of a key (expectedVersion 0)
// or advances an existing one. A lost race surfaces as
// stock.ErrConcurrentModification in both cases.
func (ts *txStore) PutRunningBalance(ctx context.Context, key stock.StockKey, balance, expectedVersion int64) error {
	now := formatTime(time.Now())

	if expectedVersion == 0 {
		query, args, err := ts.parent.sb.Insert("stock_balances").
			Columns("item_id", "size_id", "brand", "balance", "version", "updated_at").
			Values(string(key.ItemID), string(key.SizeID), key.Brand, balance, 1, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build balance insert: %w", err)
		}
		if _, err := ts.tx.ExecContext(ctx, query, args...); err != nil {
			if ts.parent.dialect.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s created concurrently", stock.ErrConcurrentModification, key)
			}
			return fmt.Errorf("failed to insert balance: %w", err)
		}
		return nil
	}

	query, args, err := ts.parent.sb.Update("stock_balances").
		Set("balance", balance).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(keyEq(key)).
		Where(squirrel.Eq{"version": expectedVersion}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build balance update: %w", err)
	}

	result, err := ts.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s moved past version %d", stock.ErrConcurrentModification, key, expectedVersion)
	}
	return nil
}

func (ts *txStore) InsertEntry(ctx context.Context, e stock.Entry) error {
	query, args, err := ts.parent.sb.Insert("stock_entries").
		Columns(entryColumns...).
		Values(
			string(e.ID),
			e.TransactionDate.String(),
			string(e.Key.ItemID),
			string(e.Key.SizeID),
			e.Key.Brand,
			e.Received,
			e.Issued,
			e.Balance,
			string(e.Kind),
			nullString(e.GRNNumber),
			nullString(string(e.CustomerID)),
			nullString(e.DeliveryOrderNumber),
			formatTime(e.CreatedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build entry insert: %w", err)
	}

	if _, err := ts.tx.ExecContext(ctx, query, args...); err != nil {
		if ts.parent.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("entry %s already exists: %w", e.ID, err)
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) AddCatalogEntry(ctx context.Context, kind stock.CatalogKind, e stock.CatalogEntry) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog %q", kind)
	}

	query, args, err := s.sb.Insert(string(kind)).
		Columns("id", "name", "created_at").
		Values(e.ID, e.Name, formatTime(e.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s insert: %w", kind.Singular(), err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("%s %s already exists: %w", kind.Singular(), e.ID, err)
		}
		return fmt.Errorf("failed to insert %s: %w", kind.Singular(), err)
	}
	return nil
}

func (s *Store) RemoveCatalogEntry(ctx context.Context, kind stock.CatalogKind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown catalog %q", kind)
	}

	query, args, err := s.sb.Delete(string(kind)).Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build %s delete: %w", kind.Singular(), err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", kind.Singular(), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &stock.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func (s *Store) ListCatalog(ctx context.Context, kind stock.CatalogKind) ([]stock.CatalogEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog %q", kind)
	}

	query, args, err := s.sb.Select("id", "name", "created_at").
		From(string(kind)).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", kind, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	result := []stock.CatalogEntry{}
	for rows.Next() {
		e, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) GetCatalogEntry(ctx context.Context, kind stock.CatalogKind, id string) (*stock.CatalogEntry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown catalog %q", kind)
	}

	query, args, err := s.sb.Select("id", "name", "created_at").
		From(string(kind)).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", kind.Singular(), err)
	}

	e, err := scanCatalogEntry(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func queryEntries(ctx context.Context, q querier, query string, args ...any) ([]stock.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	entries := []stock.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row scanner) (stock.Entry, error) {
	var (
		e                   stock.Entry
		id, date            string
		itemID, sizeID      string
		kind, createdAt     string
		grn, customer, dono sql.NullString
	)

	err := row.Scan(
		&id, &date, &itemID, &sizeID, &e.Key.Brand,
		&e.Received, &e.Issued, &e.Balance, &kind,
		&grn, &customer, &dono, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	d, err := stock.ParseDate(date)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", id, err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return e, fmt.Errorf("entry %s: %w", id, err)
	}

	e.ID = stock.EntryID(id)
	e.TransactionDate = d
	e.Key.ItemID = stock.ItemID(itemID)
	e.Key.SizeID = stock.SizeID(sizeID)
	e.Kind = stock.MovementKind(kind)
	e.GRNNumber = grn.String
	e.CustomerID = stock.CustomerID(customer.String)
	e.DeliveryOrderNumber = dono.String
	e.CreatedAt = t
	return e, nil
}

func scanBalance(row scanner) (stock.RunningBalance, error) {
	var (
		rb             stock.RunningBalance
		itemID, sizeID string
		updatedAt      string
	)
	if err := row.Scan(&itemID, &sizeID, &rb.Key.Brand, &rb.Balance, &rb.Version, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rb, err
		}
		return rb, fmt.Errorf("failed to scan balance: %w", err)
	}

	t, err := parseTime(updatedAt)
	if err != nil {
		return rb, fmt.Errorf("balance %s/%s/%s: %w", itemID, sizeID, rb.Key.Brand, err)
	}
	rb.Key.ItemID = stock.ItemID(itemID)
	rb.Key.SizeID = stock.SizeID(sizeID)
	rb.UpdatedAt = t
	return rb, nil
}

func scanCatalogEntry(row scanner) (stock.CatalogEntry, error) {
	var (
		e         stock.CatalogEntry
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan catalog entry: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return e, fmt.Errorf("catalog entry %s: %w", e.ID, err)
	}
	e.CreatedAt = t
	return e, nil
}

// Helper functions

func keyEq(key stock.StockKey) squirrel.Eq {
	return squirrel.Eq{
		"item_id": string(key.ItemID),
		"size_id": string(key.SizeID),
		"brand":   key.Brand,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
