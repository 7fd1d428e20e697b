package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"
)

const pingTimeout = 5 * time.Second

// Opener opens and verifies a handle for target. Open is the default.
type Opener func(ctx context.Context, target Target, pool PoolConfig) (*sql.DB, error)

func Open(ctx context.Context, target Target, pool PoolConfig) (*sql.DB, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	dialect, err := DialectFor(target.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := dialect.DSN(target)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", target.Driver, err)
	}

	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", target.Driver, err)
	}

	return db, nil
}
