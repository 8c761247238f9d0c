package sqlstore

import (
	"fmt"
	"strings"

	"github.com/loykin/curator/internal/resource"
)

// Dialect holds the SQL differences between the supported engines.
type Dialect struct {
	Name     string
	bindvar  func(n int) string
	idColumn string
	types    map[resource.FieldType]string
	timeType string
}

var SQLite = Dialect{
	Name:     "sqlite",
	bindvar:  func(int) string { return "?" },
	idColumn: `"id" INTEGER PRIMARY KEY AUTOINCREMENT`,
	types: map[resource.FieldType]string{
		resource.TypeString: "TEXT",
		resource.TypeFloat:  "REAL",
		resource.TypeInt:    "INTEGER",
		resource.TypeBool:   "BOOLEAN",
	},
	timeType: "TIMESTAMP",
}

var Postgres = Dialect{
	Name:     "postgres",
	bindvar:  func(n int) string { return fmt.Sprintf("$%d", n) },
	idColumn: `"id" BIGSERIAL PRIMARY KEY`,
	types: map[resource.FieldType]string{
		resource.TypeString: "TEXT",
		resource.TypeFloat:  "DOUBLE PRECISION",
		resource.TypeInt:    "BIGINT",
		resource.TypeBool:   "BOOLEAN",
	},
	timeType: "TIMESTAMPTZ",
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// binds returns n placeholders starting at position from.
func (d Dialect) binds(from, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = d.bindvar(from + i)
	}
	return out
}

func (d Dialect) createTable(table string, kind *resource.Kind) string {
	cols := []string{d.idColumn}
	for _, f := range kind.Fields {
		cols = append(cols, quote(f.Name)+" "+d.types[f.Type])
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(table), strings.Join(cols, ", "))
}

func (d Dialect) createUsers(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		"id" TEXT PRIMARY KEY,
		"username" TEXT NOT NULL UNIQUE,
		"password_hash" TEXT NOT NULL,
		"roles" TEXT NOT NULL,
		"active" BOOLEAN NOT NULL,
		"created_at" %s NOT NULL,
		"updated_at" %s NOT NULL
	)`, quote(table), d.timeType, d.timeType)
}
