package migrate

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// BootstrapSQLite creates the schema on a sqlite connection. Goose migrations
// target postgres; sqlite is only used for local runs and repository tests.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("bootstrap sqlite schema: %w", err)
	}
	return nil
}
