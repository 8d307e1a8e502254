package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/port"
	"github.com/garyjia/billing-console/pkg/database"
)

type txKey struct{}

// DB is the mutation log database. Repositories called inside
// WithTransaction share its transaction through the context.
type DB struct {
	*database.DB
}

// NewDB wraps an opened connection without migrating it
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: database.Wrap(sqlDB, logger)}
}

// Open connects to the console database and applies pending migrations
func Open(ctx context.Context, cfg database.Config, logger *zap.Logger) (*DB, error) {
	conn, err := database.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := database.NewMigrator(conn, logger).Up(ctx, Migrations); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", cfg.Path, err)
	}
	return &DB{DB: conn}, nil
}

// WithTransaction runs fn in a transaction. Nested calls join the
// transaction already carried by ctx.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if extractTx(ctx) != nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func extractTx(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// conn returns the transaction of ctx, or the pool
func (db *DB) conn(ctx context.Context) queryer {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return db.DB.DB
}

// queryer covers both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ port.TransactionManager = (*DB)(nil)
