/*
Package sqlite opens the SQLite flavour of sqlstore.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

SINGLE CONNECTION:
  The pool is capped at one connection. SQLite serializes writers anyway,
  and ":memory:" databases exist per connection, so a larger pool would
  hand out empty databases.

USAGE:
  st, err := sqlite.New("./data/stock.db")   // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/stock-ledger/store/sqlstore"
)

// Dialect is the SQLite dialect.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Placeholder:       squirrel.Question,
	Schema:            sqlstore.Schema(sqlstore.SchemaOptions{}),
	IsUniqueViolation: IsUniqueViolation,
}

// New opens (and creates) the database at path and migrates it.
func New(path string) (*sqlstore.Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	st, err := sqlstore.Open(context.Background(), db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

// IsUniqueViolation matches primary key and unique constraint failures.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}
