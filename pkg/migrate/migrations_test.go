package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kitea/hunt-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks ...string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestEnumsMigration(t *testing.T) {
	content := readMigration(t, "create_enums")
	assertContains(t, content,
		"CREATE TYPE mint_status_enum AS ENUM ('pending', 'minting', 'minted')",
		"CREATE TYPE order_status_enum AS ENUM ('pending', 'paid', 'failed')",
		"CREATE TYPE event_type_enum AS ENUM ('mint_requested', 'wallet_attached', 'order_paid')",
		"CREATE TYPE outbox_dlq_error_reason_enum",
	)
}

func TestScansMigrationEnforcesOneScanPerUserLocation(t *testing.T) {
	content := readMigration(t, "create_scans_table")
	assertContains(t, content,
		"CREATE TABLE IF NOT EXISTS scans",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_scans_user_location ON scans (user_id, location_id)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_scans_location_number ON scans (location_id, scan_number)",
	)
}

func TestNFTTokensMigrationKeysOneRecordPerLocationOrFounder(t *testing.T) {
	content := readMigration(t, "create_nft_tokens_table")
	assertContains(t, content,
		"status mint_status_enum NOT NULL DEFAULT 'pending'",
		"ux_nft_tokens_user_location ON nft_tokens (user_id, hunt_location_id) WHERE hunt_location_id IS NOT NULL",
		"ux_nft_tokens_user_founder ON nft_tokens (user_id) WHERE is_founder",
		"chk_nft_tokens_minted_has_hash",
	)
}

func TestProfilesAndUnlocksMigrations(t *testing.T) {
	assertContains(t, readMigration(t, "create_profiles_table"),
		"ux_profiles_wallet_address ON profiles (wallet_address)",
	)
	assertContains(t, readMigration(t, "create_products_and_unlocks"),
		"requires_scan boolean NOT NULL DEFAULT false",
		"required_location_id uuid REFERENCES hunt_locations(id)",
		"ux_product_unlocks_user_product ON product_unlocks (user_id, product_id)",
	)
}

func TestOrdersAndOutboxMigrations(t *testing.T) {
	assertContains(t, readMigration(t, "create_orders_tables"),
		"ux_orders_stripe_session_id ON orders (stripe_session_id)",
		"status order_status_enum NOT NULL DEFAULT 'pending'",
		"CREATE TABLE IF NOT EXISTS order_items",
	)
	assertContains(t, readMigration(t, "create_outbox_tables"),
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"idx_outbox_events_unpublished",
		"CREATE TABLE IF NOT EXISTS outbox_dlq",
	)
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Tag Notes")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_tag_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestCreateSQLMigrationScaffoldsTableChanges(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "create_tag_notes_table")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertContains(t, string(data),
		"CREATE TABLE IF NOT EXISTS tag_notes (",
		"id uuid PRIMARY KEY DEFAULT gen_random_uuid()",
		"DROP TABLE IF EXISTS tag_notes;",
	)

	path, err = migrate.CreateSQLMigration(dir, "add nickname to profiles")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	assertContains(t, string(data),
		"ALTER TABLE profiles ADD COLUMN IF NOT EXISTS nickname text;",
		"ALTER TABLE profiles DROP COLUMN IF EXISTS nickname;",
	)
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("scaffolded migrations should validate: %v", err)
	}
}

func TestCreateSQLMigrationOrdersAfterNewestVersion(t *testing.T) {
	dir := t.TempDir()
	future := "-- +goose Up\n-- +goose StatementBegin\n-- +goose StatementEnd\n-- +goose Down\n-- +goose StatementBegin\n-- +goose StatementEnd\n"
	if err := os.WriteFile(filepath.Join(dir, "29990101000000_future.sql"), []byte(future), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	path, err := migrate.CreateSQLMigration(dir, "backfill_editions")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if got := filepath.Base(path); got != "29990101000001_backfill_editions.sql" {
		t.Fatalf("expected version after the newest file, got %s", got)
	}
}

func TestMintingClaimIndexMigration(t *testing.T) {
	content := readMigration(t, "index_minting_claims")
	assertContains(t, content,
		"ON nft_tokens (claimed_at) WHERE status = 'minting'",
		"DROP INDEX IF EXISTS idx_nft_tokens_minting_claimed_at;",
	)
}
