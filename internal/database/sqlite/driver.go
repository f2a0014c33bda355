// Package sqlite implements database.Driver on top of the pure-Go
// modernc.org/sqlite engine. The schema argument of every method is ignored:
// a SQLite file has a single user schema.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/joacominatel/lossim/internal/database"
	_ "modernc.org/sqlite"
)

// Driver implements the database.Driver interface for SQLite.
type Driver struct {
	db  *sql.DB
	dsn string
}

var _ database.Driver = (*Driver)(nil)

// New creates a new SQLite driver.
func New() *Driver {
	return &Driver{}
}

// Connect opens the database file (or ":memory:") on a single connection.
func (d *Driver) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	// An in-memory database only lives as long as its one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping: %w", err)
	}

	d.db = db
	d.dsn = dsn
	return nil
}

// Close closes the database.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	return err
}

// Ping checks if the connection is alive.
func (d *Driver) Ping(ctx context.Context) error {
	if d.db == nil {
		return fmt.Errorf("not connected")
	}
	return d.db.PingContext(ctx)
}

// ListTables returns all user table and view names.
func (d *Driver) ListTables(ctx context.Context, _ string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, queryListTables)
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
func (d *Driver) GetColumns(ctx context.Context, _ string, table string) ([]database.Column, error) {
	info, err := d.tableInfo(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("get columns: %w", err)
	}

	columns := make([]database.Column, len(info))
	for i, c := range info {
		columns[i] = database.Column{
			Name:       c.name,
			DataType:   c.declType,
			IsNullable: !c.notNull && c.pkOrder == 0,
			IsPrimary:  c.pkOrder > 0,
			Default:    c.dflt,
			OrdinalPos: c.cid + 1,
		}
	}
	return columns, nil
}

// FetchColumn returns every value of a column.
func (d *Driver) FetchColumn(ctx context.Context, _ string, table, column string) ([]any, error) {
	rows, err := d.db.QueryContext(ctx, selectColumnSQL(table, column))
	if err != nil {
		return nil, fmt.Errorf("fetch column: %w", err)
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("read value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch column: %w", err)
	}
	return values, nil
}

// CloneTable creates target from the stored definition of source, so column
// types, constraints, collations and explicit indexes (partial and expression
// indexes included) carry over. Index names are prefixed with target.
func (d *Driver) CloneTable(ctx context.Context, _ string, source, target string) error {
	var ddl sql.NullString
	err := d.db.QueryRowContext(ctx, queryTableDDL, source).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !ddl.Valid) {
		return fmt.Errorf("clone table: no such table: %s", source)
	}
	if err != nil {
		return fmt.Errorf("clone table: %w", err)
	}

	create, err := renameTableDDL(ddl.String, target)
	if err != nil {
		return fmt.Errorf("clone table: %w", err)
	}

	indexes, err := d.indexes(ctx, source)
	if err != nil {
		return fmt.Errorf("clone table: %w", err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clone table: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("clone table: %w", err)
	}
	for _, idx := range indexes {
		stmt, err := renameIndexDDL(idx.ddl, target+"_"+idx.name, target)
		if err != nil {
			return fmt.Errorf("clone index %s: %w", idx.name, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clone index %s: %w", idx.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clone table: commit: %w", err)
	}
	return nil
}

// CopyRows runs INSERT ... SELECT per key inside one transaction.
func (d *Driver) CopyRows(ctx context.Context, _ string, source, target, keyColumn string, keys []any) (int64, error) {
	n, err := d.execPerKey(ctx, copyRowSQL(source, target, keyColumn), keys)
	if err != nil {
		return 0, fmt.Errorf("copy rows: %w", err)
	}
	return n, nil
}

// DeleteRows runs DELETE per key inside one transaction.
func (d *Driver) DeleteRows(ctx context.Context, _ string, table, keyColumn string, keys []any) (int64, error) {
	n, err := d.execPerKey(ctx, deleteRowSQL(table, keyColumn), keys)
	if err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	return n, nil
}

// execPerKey prepares stmt once and executes it for every key. Nothing is
// committed unless all executions succeed.
func (d *Driver) execPerKey(ctx context.Context, stmt string, keys []any) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer prepared.Close()

	var affected int64
	for _, key := range keys {
		res, err := prepared.ExecContext(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("key %v: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}

// ExecuteQuery runs a SQL query and returns the results.
func (d *Driver) ExecuteQuery(ctx context.Context, query string) (*database.QueryResult, error) {
	start := time.Now()

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var resultRows [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
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
	if d.db == nil {
		return 0, fmt.Errorf("not connected")
	}
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return res.RowsAffected()
}

// QuoteTable returns the quoted table name.
func (d *Driver) QuoteTable(_ string, table string) string {
	return quoteIdent(table)
}

// DatabaseName returns the DSN the driver was opened with.
func (d *Driver) DatabaseName() string {
	return d.dsn
}

func (d *Driver) tableInfo(ctx context.Context, table string) ([]tableColumn, error) {
	rows, err := d.db.QueryContext(ctx, queryTableInfo, table)
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	var cols []tableColumn
	for rows.Next() {
		var c tableColumn
		var notNull int
		if err := rows.Scan(&c.cid, &c.name, &c.declType, &notNull, &c.dflt, &c.pkOrder); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.notNull = notNull != 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// indexes lists the explicit indexes of table with their stored DDL.
func (d *Driver) indexes(ctx context.Context, table string) ([]tableIndex, error) {
	rows, err := d.db.QueryContext(ctx, queryIndexDDL, table)
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	defer rows.Close()

	var list []tableIndex
	for rows.Next() {
		var idx tableIndex
		if err := rows.Scan(&idx.name, &idx.ddl); err != nil {
			return nil, fmt.Errorf("scan index: %w", err)
		}
		list = append(list, idx)
	}
	return list, rows.Err()
}
