package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/joacominatel/lossim/internal/database"
)

// DefaultSchema is the schema searched when none is configured.
const DefaultSchema = "public"

// maxIdentifierLen matches PostgreSQL's NAMEDATALEN-1.
const maxIdentifierLen = 63

// Migrator moves rows between a table and its backup over one connection.
// Every operation returns an error; none of them retries or continues on failure.
//
// Connect, Simulate, Snapshot and Disconnect are serialized: Disconnect waits
// for a simulation running on another goroutine to return before closing the
// connection under it.
type Migrator struct {
	driver    database.Driver
	schema    string
	logger    *slog.Logger
	busy      sync.Mutex
	connected bool
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithSchema sets the schema tables are resolved in.
func WithSchema(schema string) Option {
	return func(m *Migrator) {
		if schema != "" {
			m.schema = schema
		}
	}
}

// WithLogger sets the logger operations report to.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMigrator creates a migrator on top of a driver.
func NewMigrator(driver database.Driver, opts ...Option) *Migrator {
	m := &Migrator{
		driver: driver,
		schema: DefaultSchema,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect establishes the database connection.
func (m *Migrator) Connect(ctx context.Context, dsn string) error {
	m.busy.Lock()
	defer m.busy.Unlock()

	if err := m.driver.Connect(ctx, dsn); err != nil {
		m.logger.Error("connect failed", slog.Any("err", err))
		return &ErrConnection{Cause: err}
	}
	m.connected = true
	m.logger.Info("connected", slog.String("database", m.driver.DatabaseName()))
	return nil
}

// Disconnect closes the database connection.
func (m *Migrator) Disconnect() error {
	m.busy.Lock()
	defer m.busy.Unlock()

	m.connected = false
	return m.driver.Close()
}

// DatabaseName returns the current database name.
func (m *Migrator) DatabaseName() string {
	return m.driver.DatabaseName()
}

// Schema returns the schema the migrator operates in.
func (m *Migrator) Schema() string {
	return m.schema
}

// ListTables returns the tables visible in the active schema.
func (m *Migrator) ListTables(ctx context.Context) ([]string, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}
	tables, err := m.driver.ListTables(ctx, m.schema)
	if err != nil {
		return nil, &ErrQuery{Op: "list tables", Query: m.schema, Cause: err}
	}
	return tables, nil
}

// LoadColumns fetches column metadata for a table.
func (m *Migrator) LoadColumns(ctx context.Context, table string) ([]database.Column, error) {
	if err := m.check(table); err != nil {
		return nil, err
	}
	cols, err := m.driver.GetColumns(ctx, m.schema, table)
	if err != nil {
		return nil, &ErrQuery{Op: "load columns", Query: table, Cause: err}
	}
	return cols, nil
}

// FetchPrimaryKeys returns every value of keyField in table. The whole key
// set is held in memory.
func (m *Migrator) FetchPrimaryKeys(ctx context.Context, table, keyField string) ([]any, error) {
	if err := m.check(table, keyField); err != nil {
		return nil, err
	}
	keys, err := m.driver.FetchColumn(ctx, m.schema, table, keyField)
	if err != nil {
		return nil, &ErrQuery{Op: "fetch keys", Query: table, Cause: err}
	}
	m.logger.Debug("fetched keys", slog.String("table", table), slog.Int("count", len(keys)))
	return keys, nil
}

// CreateBackupTable clones source under desired, or under desired_v1,
// desired_v2, ... when the name is taken. It returns the name created.
func (m *Migrator) CreateBackupTable(ctx context.Context, source, desired string) (string, error) {
	if err := m.check(source, desired); err != nil {
		return "", err
	}

	tables, err := m.ListTables(ctx)
	if err != nil {
		return "", err
	}

	name := desired
	for n := 1; slices.Contains(tables, name); n++ {
		name = desired + "_v" + strconv.Itoa(n)
	}
	if err := ValidateIdentifier(name); err != nil {
		return "", err
	}
	if name != desired {
		m.logger.Warn("backup table name taken",
			slog.String("requested", desired), slog.String("using", name))
	}

	if err := m.driver.CloneTable(ctx, m.schema, source, name); err != nil {
		return "", &ErrQuery{Op: "create backup table", Query: name, Cause: err}
	}
	m.logger.Info("backup table created", slog.String("source", source), slog.String("table", name))
	return name, nil
}

// CopyRows copies the rows of source matching keys into dest, all or nothing.
func (m *Migrator) CopyRows(ctx context.Context, source, dest, keyField string, keys []any) (int64, error) {
	return m.copyRows(ctx, "copy rows", source, dest, keyField, keys)
}

// RestoreRows moves the rows matching keys from backup back into table, all or nothing.
func (m *Migrator) RestoreRows(ctx context.Context, backup, table, keyField string, keys []any) (int64, error) {
	return m.copyRows(ctx, "restore rows", backup, table, keyField, keys)
}

// DeleteRows deletes the rows of table matching keys, all or nothing.
func (m *Migrator) DeleteRows(ctx context.Context, table, keyField string, keys []any) (int64, error) {
	if err := m.check(table, keyField); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.driver.DeleteRows(ctx, m.schema, table, keyField, keys)
	if err != nil {
		return 0, &ErrQuery{Op: "delete rows", Query: table, Cause: err}
	}
	m.logger.Info("rows deleted", slog.String("table", table), slog.Int64("rows", n))
	return n, nil
}

// Snapshot reads up to limit rows of table. A limit <= 0 reads every row.
func (m *Migrator) Snapshot(ctx context.Context, table string, limit int) (*database.QueryResult, error) {
	m.busy.Lock()
	defer m.busy.Unlock()

	if err := m.check(table); err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + m.driver.QuoteTable(m.schema, table)
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}
	result, err := m.driver.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, &ErrQuery{Op: "snapshot", Query: query, Cause: err}
	}
	return result, nil
}

func (m *Migrator) copyRows(ctx context.Context, op, source, dest, keyField string, keys []any) (int64, error) {
	if err := m.check(source, dest, keyField); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := m.driver.CopyRows(ctx, m.schema, source, dest, keyField, keys)
	if err != nil {
		return 0, &ErrQuery{Op: op, Query: source + " -> " + dest, Cause: err}
	}
	m.logger.Info(op, slog.String("from", source), slog.String("to", dest), slog.Int64("rows", n))
	return n, nil
}

// check verifies the migrator is connected and every identifier is usable.
func (m *Migrator) check(idents ...string) error {
	if !m.connected {
		return ErrNotConnected
	}
	for _, id := range idents {
		if err := ValidateIdentifier(id); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIdentifier reports whether name can be used as a table or column name.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	case len(name) > maxIdentifierLen:
		return fmt.Errorf("%w: %q longer than %d bytes", ErrInvalidIdentifier, name, maxIdentifierLen)
	case slices.Contains([]byte(name), 0):
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidIdentifier, name)
	}
	return nil
}
