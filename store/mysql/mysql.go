// Package mysql opens the MySQL flavour of sqlstore.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	mysqlDriver "github.com/go-sql-driver/mysql"

	"github.com/warp/stock-ledger/store/sqlstore"
)

const (
	errDuplicateEntry = 1062
	errLockWait       = 1205
	errDeadlock       = 1213
)

// KeyCollation makes stock key columns compare exactly. The server
// default (utf8mb4_0900_ai_ci on MySQL 8) would merge "Nike" and "NIKE".
const KeyCollation = "CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"

// Dialect is the MySQL dialect. The running balance row is read with
// FOR UPDATE so that two processes appending to one key queue on it.
var Dialect = sqlstore.Dialect{
	Name:              "mysql",
	Placeholder:       squirrel.Question,
	Schema:            sqlstore.Schema(sqlstore.SchemaOptions{InlineIndex: true, KeyCollation: KeyCollation}),
	LockRows:          true,
	IsUniqueViolation: IsUniqueViolation,
	IsConflict:        IsConflict,
	SnapshotTx:        &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true},
}

// New connects with dsn, e.g. "user:pass@tcp(localhost:3306)/stock".
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	cfg, err := mysqlDriver.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}

	st, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func IsUniqueViolation(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDuplicateEntry
	}
	return false
}

func IsConflict(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == errDeadlock || mysqlErr.Number == errLockWait
	}
	return false
}
