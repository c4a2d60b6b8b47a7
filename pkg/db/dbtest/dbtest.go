// Package dbtest opens isolated in-memory sqlite databases carrying the
// application schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kitea/hunt-backend/pkg/db"
)

// schema mirrors the goose migrations using sqlite types.
var schema = []string{
	`CREATE TABLE hunt_locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		lat NUMERIC NOT NULL DEFAULT 0,
		lng NUMERIC NOT NULL DEFAULT 0,
		page_path TEXT,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		total_scans INTEGER NOT NULL DEFAULT 0,
		token_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE nfc_tags (
		id TEXT PRIMARY KEY,
		uid TEXT,
		tag_uid TEXT,
		hunt_location_id TEXT REFERENCES hunt_locations(id),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME
	)`,
	`CREATE TABLE scans (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		location_id TEXT NOT NULL REFERENCES hunt_locations(id),
		tag_uid TEXT NOT NULL,
		scan_number INTEGER NOT NULL,
		scanned_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_scans_user_location ON scans (user_id, location_id)`,
	`CREATE UNIQUE INDEX ux_scans_location_number ON scans (location_id, scan_number)`,
	`CREATE TABLE nft_tokens (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		hunt_location_id TEXT,
		scan_id TEXT,
		is_founder BOOLEAN NOT NULL DEFAULT 0,
		token_id TEXT NOT NULL,
		edition_number INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		transaction_hash TEXT,
		contract_address TEXT NOT NULL DEFAULT '',
		chain TEXT NOT NULL DEFAULT '',
		claimed_at DATETIME,
		minted_at DATETIME,
		last_error TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_nft_tokens_user_location ON nft_tokens (user_id, hunt_location_id) WHERE hunt_location_id IS NOT NULL`,
	`CREATE UNIQUE INDEX ux_nft_tokens_user_founder ON nft_tokens (user_id) WHERE is_founder`,
	`CREATE TABLE profiles (
		id TEXT PRIMARY KEY,
		email TEXT,
		first_name TEXT,
		last_name TEXT,
		date_of_birth DATE,
		mobile_number TEXT,
		wallet_address TEXT UNIQUE,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		founder_number INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		image_url TEXT,
		price NUMERIC NOT NULL,
		currency TEXT NOT NULL DEFAULT 'aud',
		is_active BOOLEAN NOT NULL DEFAULT 1,
		requires_scan BOOLEAN NOT NULL DEFAULT 0,
		required_location_id TEXT,
		hunt_location_id TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_unlocks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		unlocked_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_product_unlocks_user_product ON product_unlocks (user_id, product_id)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		stripe_session_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		total_amount NUMERIC NOT NULL,
		currency TEXT NOT NULL,
		payment_intent_id TEXT,
		shipping_name TEXT,
		shipping_address TEXT,
		paid_at DATETIME,
		failure_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_amount NUMERIC NOT NULL
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// Open returns a fresh database with the full schema applied.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// Client wraps Open in the application's db.Client.
func Client(t testing.TB) (*db.Client, *gorm.DB) {
	t.Helper()
	conn := Open(t)
	return db.FromGorm(conn), conn
}
