package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	// Name is reported as the db.system tracing attribute.
	Name string

	Placeholder squirrel.PlaceholderFormat

	// Schema is executed statement by statement on Open. Every statement
	// must be idempotent.
	Schema []string

	// LockRows appends FOR UPDATE to the running balance read.
	LockRows bool

	// IsUniqueViolation recognizes a primary key or unique index conflict.
	IsUniqueViolation func(error) bool

	// IsConflict recognizes deadlocks and serialization failures. They are
	// reported to the ledger as stock.ErrConcurrentModification so the
	// append is retried. Optional.
	IsConflict func(error) bool

	// SnapshotTx are the options of the read transaction behind
	// Store.Snapshot. nil means the driver default.
	SnapshotTx *sql.TxOptions
}

func (d Dialect) validate() error {
	if d.Name == "" {
		return fmt.Errorf("dialect has no name")
	}
	if d.Placeholder == nil {
		return fmt.Errorf("dialect %s has no placeholder format", d.Name)
	}
	if d.IsUniqueViolation == nil {
		return fmt.Errorf("dialect %s cannot detect unique violations", d.Name)
	}
	return nil
}

// SchemaOptions adapts the portable DDL to one database.
type SchemaOptions struct {
	// InlineIndex declares the ledger index inside CREATE TABLE. MySQL has
	// no CREATE INDEX IF NOT EXISTS.
	InlineIndex bool

	// KeyCollation is appended to the stock key columns so that they
	// compare byte for byte, e.g. "CHARACTER SET utf8mb4 COLLATE
	// utf8mb4_bin" on MySQL, whose default collation folds case and
	// accents. Tables created before the option existed are altered.
	KeyCollation string
}

// Schema returns the DDL for opts.
func Schema(opts SchemaOptions) []string {
	collate := ""
	if opts.KeyCollation != "" {
		collate = " " + opts.KeyCollation
	}
	idCol := "VARCHAR(64)" + collate
	brandCol := "VARCHAR(255)" + collate

	catalog := func(table string) string {
		return `CREATE TABLE IF NOT EXISTS ` + table + ` (
			id ` + idCol + ` PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_at VARCHAR(40) NOT NULL
		)`
	}

	entries := `CREATE TABLE IF NOT EXISTS stock_entries (
		id VARCHAR(64) PRIMARY KEY,
		transaction_date VARCHAR(10) NOT NULL,
		item_id ` + idCol + ` NOT NULL,
		size_id ` + idCol + ` NOT NULL,
		brand ` + brandCol + ` NOT NULL,
		received_quantity BIGINT NOT NULL DEFAULT 0 CHECK (received_quantity >= 0),
		issued_quantity BIGINT NOT NULL DEFAULT 0 CHECK (issued_quantity >= 0),
		balance BIGINT NOT NULL,
		movement_kind VARCHAR(32) NOT NULL,
		grn_number VARCHAR(255),
		customer_id ` + idCol + `,
		delivery_order_number VARCHAR(255),
		created_at VARCHAR(40) NOT NULL`
	const indexCols = `item_id, size_id, brand, transaction_date, created_at`
	if opts.InlineIndex {
		entries += `,
		INDEX idx_stock_entries_key (` + indexCols + `)`
	}
	entries += `
	)`

	balances := `CREATE TABLE IF NOT EXISTS stock_balances (
		item_id ` + idCol + ` NOT NULL,
		size_id ` + idCol + ` NOT NULL,
		brand ` + brandCol + ` NOT NULL,
		balance BIGINT NOT NULL,
		version BIGINT NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		PRIMARY KEY (item_id, size_id, brand)
	)`

	stmts := []string{
		catalog("items"),
		catalog("sizes"),
		catalog("customers"),
		entries,
		balances,
	}
	if !opts.InlineIndex {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_stock_entries_key ON stock_entries(`+indexCols+`)`)
	}
	if opts.KeyCollation != "" {
		stmts = append(stmts,
			`ALTER TABLE stock_entries
				MODIFY item_id `+idCol+` NOT NULL,
				MODIFY size_id `+idCol+` NOT NULL,
				MODIFY brand `+brandCol+` NOT NULL,
				MODIFY customer_id `+idCol,
			`ALTER TABLE stock_balances
				MODIFY item_id `+idCol+` NOT NULL,
				MODIFY size_id `+idCol+` NOT NULL,
				MODIFY brand `+brandCol+` NOT NULL`,
		)
	}
	return stmts
}
