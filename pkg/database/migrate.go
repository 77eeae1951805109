package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables the booking core needs. Every statement is
// idempotent, so it runs on each start.
func Migrate(ctx context.Context, db PgxIface) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
