package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// SQL queries for PostgreSQL metadata introspection.
const (
	// Views and foreign tables share the relation namespace, so they are
	// listed along with base tables.
	queryListTables = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`

	queryGetColumns = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable,
			COALESCE(c.column_default, ''),
			c.ordinal_position,
			CASE WHEN pk.column_name IS NOT NULL THEN true ELSE false END AS is_primary
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT ku.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage ku
				ON tc.constraint_name = ku.constraint_name
				AND tc.table_schema = ku.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = $1
				AND tc.table_name = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1
		  AND c.table_name = $2
		ORDER BY c.ordinal_position`
)

// Statement builders for the data-moving operations. Identifiers are
// sanitized by pgx; key values are always bound as parameters.

func quoteTable(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func selectColumnSQL(schema, table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s",
		pgx.Identifier{column}.Sanitize(), quoteTable(schema, table))
}

func cloneTableSQL(schema, source, target string) string {
	return fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING ALL)",
		quoteTable(schema, target), quoteTable(schema, source))
}

func copyRowSQL(schema, source, target, keyColumn string) string {
	return fmt.Sprintf("INSERT INTO %s SELECT * FROM %s WHERE %s = $1",
		quoteTable(schema, target), quoteTable(schema, source), pgx.Identifier{keyColumn}.Sanitize())
}

func deleteRowSQL(schema, table, keyColumn string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteTable(schema, table), pgx.Identifier{keyColumn}.Sanitize())
}
