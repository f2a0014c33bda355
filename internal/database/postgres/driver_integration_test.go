package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/lossim/internal/app"
	"github.com/joacominatel/lossim/internal/database/postgres"
)

// dsnEnv names a throwaway database the integration tests may write to.
const dsnEnv = "LOSSIM_TEST_POSTGRES_DSN"

// setupSchema connects a migrator to a fresh schema that is dropped when the
// test ends. The batch size is small so multi-key calls span several batches.
func setupSchema(t *testing.T, stmts ...string) (*app.Migrator, *postgres.Driver, string) {
	t.Helper()
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s not set", dsnEnv)
	}
	ctx := context.Background()

	schema := "lossim_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	drv := postgres.New(postgres.WithBatchSize(2))
	m := app.NewMigrator(drv, app.WithSchema(schema))
	if err := m.Connect(ctx, dsn); err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := drv.Exec(ctx, "CREATE SCHEMA "+pgx.Identifier{schema}.Sanitize()); err != nil {
		_ = m.Disconnect()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = drv.Exec(context.Background(), "DROP SCHEMA "+pgx.Identifier{schema}.Sanitize()+" CASCADE")
		_ = m.Disconnect()
	})

	for _, s := range stmts {
		stmt := fmt.Sprintf(s, pgx.Identifier{schema}.Sanitize())
		if _, err := drv.Exec(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return m, drv, schema
}

func rowsOf(t *testing.T, m *app.Migrator, table string) []string {
	t.Helper()
	res, err := m.Snapshot(context.Background(), table, 0)
	if err != nil {
		t.Fatalf("snapshot %s: %v", table, err)
	}
	rows := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = strings.Join(r, "|")
	}
	slices.Sort(rows)
	return rows
}

// Statements take the schema as their only format argument.
var customersSchema = []string{
	`CREATE TABLE %[1]s.customers (customer_id integer PRIMARY KEY, name text, email text UNIQUE)`,
	`INSERT INTO %[1]s.customers VALUES (1, 'a', 'a@x'), (2, 'b', 'b@x'), (3, 'c', 'c@x')`,
}

func TestPostgresCustomersRoundTrip(t *testing.T) {
	m, _, _ := setupSchema(t, customersSchema...)
	ctx := context.Background()

	all, err := m.FetchPrimaryKeys(ctx, "customers", "customer_id")
	if err != nil {
		t.Fatalf("FetchPrimaryKeys: %v", err)
	}
	app.SortKeys(all)
	if !slices.Equal(all, []any{int32(1), int32(2), int32(3)}) {
		t.Fatalf("unexpected keys: %#v", all)
	}

	// keys go back to the server exactly as they were read
	keys := []any{all[0], all[2]}

	backup, err := m.CreateBackupTable(ctx, "customers", "customers_backup")
	if err != nil {
		t.Fatalf("CreateBackupTable: %v", err)
	}
	if n, err := m.CopyRows(ctx, "customers", backup, "customer_id", keys); err != nil || n != 2 {
		t.Fatalf("CopyRows: n=%d err=%v", n, err)
	}
	if n, err := m.DeleteRows(ctx, "customers", "customer_id", keys); err != nil || n != 2 {
		t.Fatalf("DeleteRows: n=%d err=%v", n, err)
	}
	if got := rowsOf(t, m, "customers"); !slices.Equal(got, []string{"2|b|b@x"}) {
		t.Fatalf("after delete customers = %v", got)
	}
	if n, err := m.RestoreRows(ctx, backup, "customers", "customer_id", keys); err != nil || n != 2 {
		t.Fatalf("RestoreRows: n=%d err=%v", n, err)
	}

	if got := rowsOf(t, m, "customers"); !slices.Equal(got, []string{"1|a|a@x", "2|b|b@x", "3|c|c@x"}) {
		t.Fatalf("customers = %v", got)
	}
	if got := rowsOf(t, m, backup); !slices.Equal(got, []string{"1|a|a@x", "3|c|c@x"}) {
		t.Fatalf("%s = %v", backup, got)
	}
}

func TestPostgresBackupNameSkipsTablesAndViews(t *testing.T) {
	m, _, _ := setupSchema(t, append(customersSchema,
		`CREATE VIEW %[1]s.customers_backup AS SELECT customer_id FROM %[1]s.customers`)...)
	ctx := context.Background()

	for _, want := range []string{"customers_backup_v1", "customers_backup_v2"} {
		got, err := m.CreateBackupTable(ctx, "customers", "customers_backup")
		if err != nil {
			t.Fatalf("CreateBackupTable: %v", err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestPostgresCloneKeepsConstraints(t *testing.T) {
	m, drv, schema := setupSchema(t, customersSchema...)
	ctx := context.Background()

	backup, err := m.CreateBackupTable(ctx, "customers", "customers_backup")
	if err != nil {
		t.Fatalf("CreateBackupTable: %v", err)
	}
	if _, err := m.CopyRows(ctx, "customers", backup, "customer_id", []any{int32(1)}); err != nil {
		t.Fatalf("CopyRows: %v", err)
	}

	dup := fmt.Sprintf(`INSERT INTO %s VALUES (9, 'z', 'a@x')`, pgx.Identifier{schema, backup}.Sanitize())
	if _, err := drv.Exec(ctx, dup); err == nil {
		t.Fatalf("expected unique violation on cloned table")
	}
}

func TestPostgresCopyRowsAllOrNothingAcrossBatches(t *testing.T) {
	m, _, _ := setupSchema(t, customersSchema...)
	ctx := context.Background()

	backup, err := m.CreateBackupTable(ctx, "customers", "customers_backup")
	if err != nil {
		t.Fatalf("CreateBackupTable: %v", err)
	}
	if _, err := m.CopyRows(ctx, "customers", backup, "customer_id", []any{int32(3)}); err != nil {
		t.Fatalf("CopyRows: %v", err)
	}

	// with two keys per batch, the duplicate lands in the second batch after
	// the first one has already run
	_, err = m.CopyRows(ctx, "customers", backup, "customer_id", []any{int32(1), int32(2), int32(3)})
	var qerr *app.ErrQuery
	if !errors.As(err, &qerr) {
		t.Fatalf("expected ErrQuery, got %v", err)
	}
	if got := rowsOf(t, m, backup); !slices.Equal(got, []string{"3|c|c@x"}) {
		t.Fatalf("partial copy committed: %v", got)
	}

	n, err := m.DeleteRows(ctx, "customers", "customer_id", []any{int32(1), int32(2), int32(3)})
	if err != nil || n != 3 {
		t.Fatalf("DeleteRows: n=%d err=%v", n, err)
	}
}

func TestPostgresSimulate(t *testing.T) {
	m, _, _ := setupSchema(t, customersSchema...)

	report, err := m.Simulate(context.Background(), app.Plan{
		Table:       "customers",
		KeyField:    "customer_id",
		BackupTable: "customers_backup",
		SampleSize:  3,
		Seed:        7,
		Verify:      true,
	}, nil)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if report.Copied != 3 || report.Deleted != 3 || report.Restored != 3 || !report.Verified {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := rowsOf(t, m, "customers"); len(got) != 3 {
		t.Fatalf("customers = %v", got)
	}
}
