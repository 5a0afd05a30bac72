package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS gallery_snapshots (
		namespace   TEXT PRIMARY KEY,
		items       JSONB NOT NULL DEFAULT '[]'::jsonb,
		version     BIGINT NOT NULL DEFAULT 1,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_gallery_snapshots_updated_at ON gallery_snapshots(updated_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
