package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joacominatel/lossim/internal/database"
)

// DefaultBatchSize is the number of per-key statements queued in one pgx batch.
const DefaultBatchSize = 500

// Driver implements the database.Driver interface for PostgreSQL.
type Driver struct {
	pool      *pgxpool.Pool
	dbName    string
	batchSize int
}

var _ database.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithBatchSize sets how many statements are pipelined per round trip.
func WithBatchSize(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// New creates a new PostgreSQL driver.
func New(opts ...Option) *Driver {
	d := &Driver{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect establishes a single-connection pool to PostgreSQL.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse dsn: %w", err)
	}

	// One logical connection for the whole run.
	cfg.MaxConns = 1
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	d.pool = pool
	d.dbName = cfg.ConnConfig.Database
	return nil
}

// Close closes the connection pool.
func (d *Driver) Close() error {
	if d.pool != nil {
		d.pool.Close()
		d.pool = nil
	}
	return nil
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("not connected")
	}
	return d.pool.Ping(ctx)
}

// ListTables returns all table and view names in a schema.
func (d *Driver) ListTables(ctx context.Context, schema string) ([]string, error) {
	rows, err := d.pool.Query(ctx, queryListTables, schema)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetColumns returns column metadata for a table.
func (d *Driver) GetColumns(ctx context.Context, schema, table string) ([]database.Column, error) {
	rows, err := d.pool.Query(ctx, queryGetColumns, schema, table)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}
	defer rows.Close()

	var columns []database.Column
	for rows.Next() {
		var col database.Column
		var nullable string
		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &col.Default, &col.OrdinalPos, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		col.IsNullable = nullable == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// FetchColumn returns every value of a column. The whole set is loaded into memory.
func (d *Driver) FetchColumn(ctx context.Context, schema, table, column string) ([]any, error) {
	rows, err := d.pool.Query(ctx, selectColumnSQL(schema, table, column))
	if err != nil {
		return nil, fmt.Errorf("fetch column: %w", err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		v, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}
		values = append(values, v[0])
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch column: %w", err)
	}
	return values, nil
}

// CloneTable creates target as a structural copy of source.
func (d *Driver) CloneTable(ctx context.Context, schema, source, target string) error {
	if _, err := d.pool.Exec(ctx, cloneTableSQL(schema, source, target)); err != nil {
		return fmt.Errorf("clone table: %w", err)
	}
	return nil
}

// CopyRows runs INSERT ... SELECT per key inside one transaction.
func (d *Driver) CopyRows(ctx context.Context, schema, source, target, keyColumn string, keys []any) (int64, error) {
	n, err := d.execPerKey(ctx, copyRowSQL(schema, source, target, keyColumn), keys)
	if err != nil {
		return 0, fmt.Errorf("copy rows: %w", err)
	}
	return n, nil
}

// DeleteRows runs DELETE per key inside one transaction.
func (d *Driver) DeleteRows(ctx context.Context, schema, table, keyColumn string, keys []any) (int64, error) {
	n, err := d.execPerKey(ctx, deleteRowSQL(schema, table, keyColumn), keys)
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	return n, nil
}

// execPerKey queues stmt once per key in pgx batches of batchSize and
// commits only if every statement succeeded.
func (d *Driver) execPerKey(ctx context.Context, stmt string, keys []any) (int64, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	// No-op once committed.
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	for start := 0; start < len(keys); start += d.batchSize {
		end := min(start+d.batchSize, len(keys))

		batch := &pgx.Batch{}
		for _, key := range keys[start:end] {
			batch.Queue(stmt, key)
		}

		br := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return 0, fmt.Errorf("key %v: %w", keys[i], err)
			}
			affected += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}

// ExecuteQuery runs a SQL query and returns the results.
func (d *Driver) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	start := time.Now()

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var resultRows [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = database.FormatValue(v)
		}
		resultRows = append(resultRows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &database.QueryResult{
		Columns:  columns,
		Rows:     resultRows,
		RowCount: len(resultRows),
		Duration: time.Since(start),
	}, nil
}

// Exec runs a statement outside the migration operations, such as schema
// setup or seeding, and returns the rows affected.
func (d *Driver) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	if d.pool == nil {
		return 0, fmt.Errorf("not connected")
	}
	tag, err := d.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

// QuoteTable returns the sanitized schema-qualified table name.
func (d *Driver) QuoteTable(schema, table string) string {
	return quoteTable(schema, table)
}

// DatabaseName returns the name of the connected database.
func (d *Driver) DatabaseName() string {
	return d.dbName
}
