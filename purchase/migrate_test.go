package purchase

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
)

func TestMigrateFreshDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), version)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM suppliers`).Scan(&n); err != nil {
		t.Fatalf("renamed cache table missing: %v", err)
	}
}

func TestMigrateUpgradesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("raw open: %v", err)
	}
	for i, stmts := range migrations[:3] {
		if _, err := db.Exec(stmts); err != nil {
			t.Fatalf("apply legacy migration %d: %v", i+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, 3)); err != nil {
		t.Fatalf("stamp legacy version: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO purchases (local_id, contact_id, status) VALUES ('legacy-1', 77, 'ordered')`); err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("upgrade open: %v", err)
	}
	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("close store: %v", cerr)
		}
	})

	p, err := store.GetPurchase(context.Background(), "legacy-1")
	if err != nil {
		t.Fatalf("read upgraded row: %v", err)
	}
	if p.SupplierID != 77 {
		t.Fatalf("renamed supplier column must carry the old value, got %d", p.SupplierID)
	}
}

func TestMigrateReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	store, ctx := openStoreAt(t, path)
	p := storePurchase(t, ctx, store, "PO-KEEP")
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	again, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		if cerr := again.Close(); cerr != nil {
			t.Fatalf("close reopened store: %v", cerr)
		}
	})
	got, err := again.GetPurchase(ctx, p.LocalID)
	if err != nil || got.RefNo != "PO-KEEP" {
		t.Fatalf("expected the stored row back, got %+v err=%v", got, err)
	}
}

func openStoreAt(t *testing.T, path string) (*Store, context.Context) {
	t.Helper()
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store, context.Background()
}
