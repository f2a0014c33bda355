package database

import "context"

// Driver defines the interface for database operations.
// A driver holds a single connection and is used by one goroutine at a time.
type Driver interface {
	// Connect establishes a connection to the database.
	Connect(ctx context.Context, dsn string) error

	// Close closes the database connection.
	Close() error

	// Ping checks if the connection is alive.
	Ping(ctx context.Context) error

	// ListTables returns every table and view name in a schema.
	ListTables(ctx context.Context, schema string) ([]string, error)

	// GetColumns returns all columns for a table.
	GetColumns(ctx context.Context, schema, table string) ([]Column, error)

	// FetchColumn returns every value of column in table, in query order.
	FetchColumn(ctx context.Context, schema, table, column string) ([]any, error)

	// CloneTable creates target with the structure of source, including
	// constraints and indexes where the engine supports it.
	CloneTable(ctx context.Context, schema, source, target string) error

	// CopyRows inserts the rows of source matching each key into target.
	// All keys are processed in one transaction; any failure rolls back
	// every insert of the call.
	CopyRows(ctx context.Context, schema, source, target, keyColumn string, keys []any) (int64, error)

	// DeleteRows deletes the rows of table matching each key, in one transaction.
	DeleteRows(ctx context.Context, schema, table, keyColumn string, keys []any) (int64, error)

	// ExecuteQuery runs a SQL query and returns results.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// QuoteTable returns the quoted, schema-qualified name of a table.
	QuoteTable(schema, table string) string

	// DatabaseName returns the name of the connected database.
	DatabaseName() string
}
