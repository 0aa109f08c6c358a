package purchase

import (
	"database/sql"
	"fmt"
)

// migrations run in order on open, guarded by PRAGMA user_version, so each
// step applies exactly once per database. Fresh databases replay the whole
// list, which keeps the historical renames working for both new and upgraded
// installs. Append only; never edit or reorder shipped entries.
var migrations = []string{
	// 1: purchase headers and sync metadata. The supplier column carried the
	// service's wire name at the time.
	`CREATE TABLE IF NOT EXISTS purchases (
  local_id TEXT PRIMARY KEY,
  remote_id INTEGER,
  contact_id INTEGER NOT NULL DEFAULT 0,
  location_id INTEGER NOT NULL DEFAULT 0,
  ref_no TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'ordered',
  transaction_date INTEGER NOT NULL DEFAULT 0,
  total_before_tax TEXT NOT NULL DEFAULT '0',
  discount_type TEXT NOT NULL DEFAULT 'fixed',
  discount_amount TEXT NOT NULL DEFAULT '0',
  tax_id INTEGER,
  tax_amount TEXT NOT NULL DEFAULT '0',
  final_total TEXT NOT NULL DEFAULT '0',
  additional_notes TEXT NOT NULL DEFAULT '',
  synced INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS system (
  k TEXT PRIMARY KEY,
  v TEXT NOT NULL
);`,

	// 2: owned line and payment rows
	`CREATE TABLE IF NOT EXISTS purchase_lines (
  local_id TEXT PRIMARY KEY,
  purchase_local_id TEXT NOT NULL REFERENCES purchases(local_id),
  product_id INTEGER NOT NULL DEFAULT 0,
  variation_id INTEGER NOT NULL DEFAULT 0,
  quantity TEXT NOT NULL DEFAULT '0',
  unit_price TEXT NOT NULL DEFAULT '0',
  discount_type TEXT NOT NULL DEFAULT '',
  discount_amount TEXT NOT NULL DEFAULT '0',
  tax_id INTEGER,
  tax_amount TEXT NOT NULL DEFAULT '0',
  lot_number TEXT NOT NULL DEFAULT '',
  mfg_date INTEGER,
  exp_date INTEGER,
  order_line_id INTEGER
);
CREATE TABLE IF NOT EXISTS purchase_payments (
  local_id TEXT PRIMARY KEY,
  purchase_local_id TEXT NOT NULL REFERENCES purchases(local_id),
  remote_id INTEGER,
  amount TEXT NOT NULL DEFAULT '0',
  method TEXT NOT NULL DEFAULT '',
  paid_on INTEGER NOT NULL DEFAULT 0,
  account_id INTEGER,
  note TEXT NOT NULL DEFAULT ''
);`,

	// 3: reference caches
	`CREATE TABLE IF NOT EXISTS supplier_cache (
  remote_id INTEGER PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  business_name TEXT NOT NULL DEFAULT '',
  mobile TEXT NOT NULL DEFAULT '',
  doc TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS product_cache (
  remote_id INTEGER PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  sku TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  doc TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS location_cache (
  remote_id INTEGER PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  doc TEXT NOT NULL DEFAULT '{}'
);`,

	// 4: the supplier column loses the wire name
	`ALTER TABLE purchases RENAME COLUMN contact_id TO supplier_id;`,

	// 5: shipping fields
	`ALTER TABLE purchases ADD COLUMN shipping_charges TEXT NOT NULL DEFAULT '0';
ALTER TABLE purchases ADD COLUMN shipping_details TEXT NOT NULL DEFAULT '';`,

	// 6: cache tables lose their suffix
	`ALTER TABLE supplier_cache RENAME TO suppliers;
ALTER TABLE product_cache RENAME TO products;
ALTER TABLE location_cache RENAME TO locations;`,

	// 7: lookup indexes
	`CREATE INDEX IF NOT EXISTS idx_purchases_synced ON purchases(synced);
CREATE INDEX IF NOT EXISTS idx_purchases_remote ON purchases(remote_id);
CREATE INDEX IF NOT EXISTS idx_lines_purchase ON purchase_lines(purchase_local_id);
CREATE INDEX IF NOT EXISTS idx_payments_purchase ON purchase_payments(purchase_local_id);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);`,
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if err := applyMigration(s.db, i+1, migrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, stmts string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.Exec(stmts); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("migration %d: set version: %w", version, err)
	}
	return tx.Commit()
}
