package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/querybot/querybot/internal/query"
	"github.com/querybot/querybot/internal/schema"
)

type Options struct {
	Pool         PoolConfig
	QueryTimeout time.Duration
	Opener       Opener
}

// Connection owns the single active database handle. Reconfigure swaps the
// handle under the write lock; every other operation holds the read lock for
// its whole duration, so a replaced handle is never used after the swap.
type Connection struct {
	pool         PoolConfig
	queryTimeout time.Duration
	open         Opener

	mu         sync.RWMutex
	db         *sql.DB
	target     Target
	dialect    Dialect
	generation uint64
}

func Connect(ctx context.Context, target Target, opts Options) (*Connection, error) {
	conn := newConnection(opts)
	db, dialect, err := conn.openTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	conn.db = db
	conn.target = target
	conn.dialect = dialect
	conn.generation = 1
	return conn, nil
}

// NewConnection wraps an already opened handle.
func NewConnection(db *sql.DB, target Target, opts Options) (*Connection, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	dialect, err := DialectFor(target.Driver)
	if err != nil {
		return nil, err
	}
	conn := newConnection(opts)
	conn.db = db
	conn.target = target
	conn.dialect = dialect
	conn.generation = 1
	return conn, nil
}

func newConnection(opts Options) *Connection {
	open := opts.Opener
	if open == nil {
		open = Open
	}
	return &Connection{pool: opts.Pool, queryTimeout: opts.QueryTimeout, open: open}
}

func (c *Connection) openTarget(ctx context.Context, target Target) (*sql.DB, Dialect, error) {
	if err := target.Validate(); err != nil {
		return nil, Dialect{}, err
	}
	dialect, err := DialectFor(target.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := c.open(ctx, target, c.pool)
	if err != nil {
		return nil, Dialect{}, err
	}
	return db, dialect, nil
}

// Reconfigure connects to target and, once it answers a ping, makes it the
// active connection. On failure the previous connection stays active.
func (c *Connection) Reconfigure(ctx context.Context, target Target) error {
	db, dialect, err := c.openTarget(ctx, target)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.db
	c.db = db
	c.target = target
	c.dialect = dialect
	c.generation++
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (c *Connection) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Target returns the active target with the password redacted.
func (c *Connection) Target() Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target.Redacted()
}

func (c *Connection) Dialect() Dialect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dialect
}

func (c *Connection) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return ErrClosed
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s database: %w", c.target.Driver, err)
	}
	return nil
}

func (c *Connection) ListTables(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrClosed
	}

	rows, err := c.db.QueryContext(ctx, c.dialect.ListTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

func (c *Connection) ListColumns(ctx context.Context, table string) ([]schema.Column, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return nil, ErrClosed
	}

	rows, err := c.db.QueryContext(ctx, c.dialect.ListColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]schema.Column, 0)
	for rows.Next() {
		var column schema.Column
		var dataType sql.NullString
		if err := rows.Scan(&column.Name, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Type = dataType.String
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return columns, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execute runs statement exactly as given and collects every row.
func (c *Connection) Execute(ctx context.Context, statement string) (query.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil {
		return query.Result{}, ErrClosed
	}
	if c.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	var q queryer = c.db
	if c.target.ReadOnly && c.dialect.ReadOnlyTx {
		tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return query.Result{}, fmt.Errorf("begin read-only transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		q = tx
	}

	rows, err := q.QueryContext(ctx, statement)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, values, err := scanRows(rows)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{Columns: columns, Rows: values, Duration: time.Since(start)}, nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func scanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	values := make([][]any, 0)
	for rows.Next() {
		row := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range row {
			scanTargets[i] = &row[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		values = append(values, normalizeValues(row))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, values, nil
}

func normalizeValues(values []any) []any {
	for i, value := range values {
		if typed, ok := value.([]byte); ok {
			values[i] = string(typed)
		}
	}
	return values
}
