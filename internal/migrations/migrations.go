// Package migrations embeds the goose SQL migrations for MySQL and ClickHouse.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql clickhouse/*.sql
var FS embed.FS

// Dialect names accepted by Up.
const (
	DialectMySQL      = "mysql"
	DialectClickHouse = "clickhouse"
)

// Up applies every pending migration of dialect to db.
func Up(db *sql.DB, dialect string) error {
	if dialect != DialectMySQL && dialect != DialectClickHouse {
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose: failed to set dialect: %w", err)
	}
	return goose.Up(db, dialect)
}
