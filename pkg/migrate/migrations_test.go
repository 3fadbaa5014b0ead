package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/settlement-core/pkg/migrate"
)

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestEmbeddedMatchesDisk(t *testing.T) {
	embedded, err := fs.Glob(migrate.Embedded, "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("expected embedded migrations to mirror disk, got %d vs %d", len(embedded), len(onDisk))
	}
}

func TestSettlementConstraintsPresent(t *testing.T) {
	checks := map[string][]string{
		"*_create_catalog_tables.sql": {
			"CHECK (available_qty >= 0)",
			"UNIQUE (buyer_id, product_id)",
			"DROP TABLE IF EXISTS inventory_items",
		},
		"*_create_escrow_payments.sql": {
			"CONSTRAINT ux_escrow_payments_order UNIQUE (order_id)",
			"DROP TABLE IF EXISTS escrow_payments",
		},
		"*_create_seller_payouts.sql": {
			"CONSTRAINT ux_seller_payouts_seller_order UNIQUE (seller_id, order_id)",
			"net_cents = gross_cents - platform_commission_cents - payment_processing_fee_cents",
		},
		"*_create_orders.sql": {
			"total_cents = subtotal_cents + shipping_cents + tax_cents",
			"line_total_cents = unit_price_cents * quantity",
		},
	}

	for pattern, wants := range checks {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil || len(matches) != 1 {
			t.Fatalf("expected exactly one migration for %s, got %v (err=%v)", pattern, matches, err)
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		for _, want := range wants {
			if !strings.Contains(string(data), want) {
				t.Errorf("%s missing %q", matches[0], want)
			}
		}
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Payout Index!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_payout_index.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	write("20260101000000_ok.sql", "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	if err := migrate.ValidateFS(os.DirFS(dir)); err != nil {
		t.Fatalf("expected valid dir, got %v", err)
	}

	write("20260101000000_dup.sql", "-- +goose Up\n-- +goose Down\n")
	if err := migrate.ValidateFS(os.DirFS(dir)); err == nil {
		t.Fatal("expected duplicate version error")
	}
	os.Remove(filepath.Join(dir, "20260101000000_dup.sql"))

	write("20260102000000_reversed.sql", "-- +goose Down\n-- +goose Up\n")
	if err := migrate.ValidateFS(os.DirFS(dir)); err == nil {
		t.Fatal("expected ordering error")
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	sub, err := fs.Sub(migrate.Embedded, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	if err := migrate.ValidateFS(sub); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}
