package database

import (
	"context"
	"database/sql"
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
)

//go:embed schema.sql
var schema string

// Statements splits the embedded schema into individual statements so it
// can run without multiStatements on the DSN.
func Statements() []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Migrate creates any missing tables.  Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range Statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			head, _, _ := strings.Cut(stmt, "(")
			return eris.Wrapf(err, "migrate: %s", strings.TrimSpace(head))
		}
	}
	return nil
}
