package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joacominatel/lossim/internal/app"
	"github.com/joacominatel/lossim/internal/config"
	"github.com/joacominatel/lossim/internal/database/sqlite"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestResolveConnection(t *testing.T) {
	cfg := &config.Config{
		Connections: []config.Connection{
			{Name: "first", Host: "a", Database: "one"},
			{Name: "second", Host: "b", Database: "two"},
		},
		Preferences: config.Preferences{DefaultConnection: "second"},
	}

	conn, err := resolveConnection(cfg, options{})
	if err != nil || conn.Name != "second" {
		t.Fatalf("default connection: %+v %v", conn, err)
	}

	conn, err = resolveConnection(cfg, options{connection: "first"})
	if err != nil || conn.Name != "first" {
		t.Fatalf("named connection: %+v %v", conn, err)
	}

	if _, err := resolveConnection(cfg, options{connection: "missing"}); err == nil {
		t.Fatalf("expected error for unknown profile")
	}

	conn, err = resolveConnection(cfg, options{dsn: "sqlite://local.db"})
	if err != nil || conn.DriverName() != config.DriverSQLite {
		t.Fatalf("dsn connection: %+v %v", conn, err)
	}

	if _, err := resolveConnection(&config.Config{}, options{}); err == nil {
		t.Fatalf("expected error with no connection configured")
	}
}

func TestResolveConnectionSavesOnlyTheProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("simulation:\n  table: orders\n  sample_size: 3\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// as if --table and --sample had been passed
	cfg.Simulation.Table = "customers"
	cfg.Simulation.SampleSize = 40
	o := options{configPath: path, dsn: "sqlite://shop.db", save: true}

	if _, err := resolveConnection(cfg, o); err != nil {
		t.Fatalf("resolveConnection: %v", err)
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if saved.FindConnection("sqlite-shop.db") == nil {
		t.Fatalf("profile not saved: %+v", saved.Connections)
	}
	if saved.Simulation.Table != "orders" || saved.Simulation.SampleSize != 3 {
		t.Fatalf("run flags persisted: %+v", saved.Simulation)
	}
}

func TestRunPlainAgainstSQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	seed := sqlite.New()
	if err := seed.Connect(ctx, path); err != nil {
		t.Fatalf("connect: %v", err)
	}
	for _, s := range []string{
		`CREATE TABLE customers (customer_id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO customers VALUES (1, 'a'), (2, 'b'), (3, 'c'), (4, 'd')`,
	} {
		if _, err := seed.Exec(ctx, s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := seed.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	conn := config.Connection{Name: "shop", Driver: config.DriverSQLite, Database: path}
	migrator := app.NewMigrator(newDriver(conn, 0))
	defer migrator.Disconnect()

	rep, err := runPlain(ctx, migrator, app.Plan{
		Table:       "customers",
		KeyField:    "customer_id",
		BackupTable: "customers_backup",
		SampleSize:  2,
		Verify:      true,
	}, conn)
	if err != nil {
		t.Fatalf("runPlain: %v", err)
	}
	if !rep.Verified || rep.Restored != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}
}
