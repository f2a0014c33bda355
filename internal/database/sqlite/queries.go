package sqlite

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// Views share the table namespace, so they are listed too.
	queryListTables = `
		SELECT name
		FROM sqlite_master
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	queryTableInfo = `
		SELECT cid, name, type, "notnull", COALESCE(dflt_value, ''), pk
		FROM pragma_table_info(?)
		ORDER BY cid`

	queryTableDDL = `
		SELECT sql
		FROM sqlite_master
		WHERE type = 'table' AND name = ?`

	// Automatic indexes have no sql: the table DDL recreates them.
	queryIndexDDL = `
		SELECT name, sql
		FROM sqlite_master
		WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL
		ORDER BY name`
)

var (
	createTablePrefix = regexp.MustCompile(`(?is)^\s*CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?`)
	createIndexPrefix = regexp.MustCompile(`(?is)^\s*CREATE\s+(UNIQUE\s+)?INDEX\s+(?:IF\s+NOT\s+EXISTS\s+)?`)
	onKeyword         = regexp.MustCompile(`(?is)^\s*ON\s+`)
)

// quoteIdent quotes an identifier, doubling embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnRef qualifies column with its table. A qualified reference to a
// missing column is an error instead of a string literal.
func columnRef(table, column string) string {
	return quoteIdent(table) + "." + quoteIdent(column)
}

// tableColumn is one row of pragma_table_info.
type tableColumn struct {
	cid      int
	name     string
	declType string
	notNull  bool
	dflt     string
	pkOrder  int
}

// tableIndex is an explicit CREATE INDEX statement stored in sqlite_master.
type tableIndex struct {
	name string
	ddl  string
}

// renameTableDDL rewrites the stored CREATE TABLE statement of a table so it
// creates target instead. Column definitions and table constraints are kept
// as written.
func renameTableDDL(ddl, target string) (string, error) {
	loc := createTablePrefix.FindStringIndex(ddl)
	if loc == nil {
		return "", fmt.Errorf("unrecognised table definition %.40q", ddl)
	}
	rest, err := skipName(ddl[loc[1]:])
	if err != nil {
		return "", fmt.Errorf("table definition: %w", err)
	}
	return "CREATE TABLE " + quoteIdent(target) + rest, nil
}

// renameIndexDDL rewrites a stored CREATE INDEX statement to build index on
// target. Columns, expressions and the WHERE clause of a partial index are
// kept as written.
func renameIndexDDL(ddl, index, target string) (string, error) {
	m := createIndexPrefix.FindStringSubmatchIndex(ddl)
	if m == nil {
		return "", fmt.Errorf("unrecognised index definition %.40q", ddl)
	}
	rest, err := skipName(ddl[m[1]:])
	if err != nil {
		return "", fmt.Errorf("index definition: %w", err)
	}
	on := onKeyword.FindStringIndex(rest)
	if on == nil {
		return "", fmt.Errorf("index definition: missing ON in %.40q", ddl)
	}
	rest, err = skipName(rest[on[1]:])
	if err != nil {
		return "", fmt.Errorf("index definition: %w", err)
	}

	kind := "INDEX"
	if m[2] >= 0 {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s %s ON %s%s", kind, quoteIdent(index), quoteIdent(target), rest), nil
}

// skipName consumes a possibly schema-qualified name and returns the rest.
func skipName(s string) (string, error) {
	rest, err := skipIdent(s)
	if err != nil {
		return "", err
	}
	if t := strings.TrimLeft(rest, " \t\r\n"); strings.HasPrefix(t, ".") {
		return skipIdent(strings.TrimLeft(t[1:], " \t\r\n"))
	}
	return rest, nil
}

// skipIdent consumes one identifier in any of SQLite's quoting styles.
func skipIdent(s string) (string, error) {
	if s == "" {
		return "", errors.New("missing name")
	}
	switch open := s[0]; open {
	case '"', '`', '\'':
		for i := 1; i < len(s); i++ {
			if s[i] != open {
				continue
			}
			if i+1 < len(s) && s[i+1] == open {
				i++
				continue
			}
			return s[i+1:], nil
		}
		return "", errors.New("unterminated name")
	case '[':
		if i := strings.IndexByte(s, ']'); i > 0 {
			return s[i+1:], nil
		}
		return "", errors.New("unterminated name")
	}

	i := 0
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	if i == 0 {
		return "", fmt.Errorf("missing name near %.20q", s)
	}
	return s[i:], nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func selectColumnSQL(table, column string) string {
	return fmt.Sprintf("SELECT %s FROM %s", columnRef(table, column), quoteIdent(table))
}

func copyRowSQL(source, target, keyColumn string) string {
	return fmt.Sprintf("INSERT INTO %s SELECT * FROM %s WHERE %s = ?",
		quoteIdent(target), quoteIdent(source), columnRef(source, keyColumn))
}

func deleteRowSQL(table, keyColumn string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(table), columnRef(table, keyColumn))
}
