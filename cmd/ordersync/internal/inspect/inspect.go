package inspect

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// Inspector provides read-only access to the purchase tables for introspection.
type Inspector struct {
	db *sql.DB
}

// Open opens the SQLite database located at path.
func Open(path string) (*Inspector, error) {
	if path == "" {
		return nil, errors.New("db path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Inspector{db: db}, nil
}

// Close releases resources held by Inspector.
func (i *Inspector) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

// SummaryRow represents the purchase counts for one status.
type SummaryRow struct {
	Status   string
	Count    int
	Unsynced int
}

// Summary returns per-status purchase counts with the unsynced share.
func (i *Inspector) Summary(ctx context.Context) ([]SummaryRow, error) {
	rows, err := i.db.QueryContext(ctx, `
SELECT status, COUNT(*), SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END)
FROM purchases
GROUP BY status
ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Status, &r.Count, &r.Unsynced); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PendingRow captures a purchase header still waiting for a push.
type PendingRow struct {
	LocalID    string
	RemoteID   int64
	SupplierID int64
	RefNo      string
	Status     string
	Total      string
	Updated    int64
}

// Pending returns unsynced purchase headers, oldest change first.
func (i *Inspector) Pending(ctx context.Context, limit int) ([]PendingRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := i.db.QueryContext(ctx, `
SELECT local_id, remote_id, supplier_id, ref_no, status, final_total, updated_at
FROM purchases
WHERE synced = 0
ORDER BY updated_at ASC, local_id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []PendingRow
	for rows.Next() {
		var r PendingRow
		var remoteID sql.NullInt64
		if err := rows.Scan(&r.LocalID, &remoteID, &r.SupplierID, &r.RefNo, &r.Status, &r.Total, &r.Updated); err != nil {
			return nil, err
		}
		r.RemoteID = remoteID.Int64
		out = append(out, r)
	}
	return out, rows.Err()
}
