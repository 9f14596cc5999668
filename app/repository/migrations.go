package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
		transaction_ref VARCHAR(128) NOT NULL PRIMARY KEY,
		checkout_handle VARCHAR(128) NOT NULL UNIQUE,
		merchant_handle VARCHAR(128) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		course_type VARCHAR(64) NOT NULL,
		phone VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		receipt VARCHAR(32) NULL,
		error_description TEXT NULL,
		processing_ms BIGINT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_courses (
		user_id VARCHAR(64) NOT NULL,
		course_type VARCHAR(64) NOT NULL,
		transaction_ref VARCHAR(128) NOT NULL,
		granted_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, course_type)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_callbacks (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		checkout_handle VARCHAR(128) NOT NULL,
		result_code BIGINT NULL,
		payload_json TEXT NOT NULL,
		outcome VARCHAR(16) NOT NULL,
		error TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// Migrate creates the schema. The statements are valid for both MySQL and SQLite.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
