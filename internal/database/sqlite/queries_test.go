package sqlite

import "testing"

func TestRenameTableDDL(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
		want string
	}{
		{
			name: "bare name",
			ddl:  `CREATE TABLE acct (id INTEGER PRIMARY KEY, bal INTEGER CHECK (bal >= 0))`,
			want: `CREATE TABLE "acct_backup" (id INTEGER PRIMARY KEY, bal INTEGER CHECK (bal >= 0))`,
		},
		{
			name: "quoted name with parenthesis",
			ddl:  `CREATE TABLE "a (b)"(x TEXT COLLATE NOCASE)`,
			want: `CREATE TABLE "acct_backup"(x TEXT COLLATE NOCASE)`,
		},
		{
			name: "bracket and backtick names",
			ddl:  "CREATE TABLE [x y] (`z` INTEGER)",
			want: "CREATE TABLE \"acct_backup\" (`z` INTEGER)",
		},
		{
			name: "if not exists",
			ddl:  `CREATE TABLE IF NOT EXISTS acct (id INTEGER) WITHOUT ROWID`,
			want: `CREATE TABLE "acct_backup" (id INTEGER) WITHOUT ROWID`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renameTableDDL(tt.ddl, "acct_backup")
			if err != nil {
				t.Fatalf("renameTableDDL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := renameTableDDL(`CREATE VIEW v AS SELECT 1`, "x"); err == nil {
		t.Fatalf("expected error for a non-table definition")
	}
}

func TestRenameIndexDDL(t *testing.T) {
	tests := []struct {
		name string
		ddl  string
		want string
	}{
		{
			name: "partial unique",
			ddl:  `CREATE UNIQUE INDEX users_live_email ON users (email) WHERE deleted = 0`,
			want: `CREATE UNIQUE INDEX "b_users_live_email" ON "b" (email) WHERE deleted = 0`,
		},
		{
			name: "expression",
			ddl:  `CREATE INDEX "lower email" ON "users"(lower(email))`,
			want: `CREATE INDEX "b_users_live_email" ON "b"(lower(email))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renameIndexDDL(tt.ddl, "b_users_live_email", "b")
			if err != nil {
				t.Fatalf("renameIndexDDL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStatementsQualifyKeyColumn(t *testing.T) {
	if got, want := deleteRowSQL("items", "id"), `DELETE FROM "items" WHERE "items"."id" = ?`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := copyRowSQL("items", "items_b", "id"), `INSERT INTO "items_b" SELECT * FROM "items" WHERE "items"."id" = ?`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := selectColumnSQL("items", "id"), `SELECT "items"."id" FROM "items"`; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
