package purchase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store persists purchases, their owned rows, and the reference caches
// locally. All writes go through a single connection, so concurrent callers
// queue instead of racing.
type Store struct {
	db *sql.DB
}

// OpenStore opens/creates the SQLite database and runs pending migrations.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`PRAGMA foreign_keys=ON`,
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return s.migrate()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

const purchaseCols = `local_id, remote_id, supplier_id, location_id, ref_no, status,
transaction_date, total_before_tax, discount_type, discount_amount, tax_id, tax_amount,
shipping_charges, shipping_details, final_total, additional_notes, synced, created_at, updated_at`

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func decFromDB(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// CreatePurchase inserts a new unsynced header and its lines in one
// transaction. Missing local IDs are assigned here.
func (s *Store) CreatePurchase(ctx context.Context, p *Purchase, lines []PurchaseLine) error {
	if p.LocalID == "" {
		p.LocalID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Synced = false
	p.RemoteID = nil

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertHeader(ctx, tx, p); err != nil {
		return err
	}
	if err := insertLines(ctx, tx, p.LocalID, lines); err != nil {
		return err
	}
	return tx.Commit()
}

func insertHeader(ctx context.Context, tx *sql.Tx, p *Purchase) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO purchases(`+purchaseCols+`)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.LocalID, nullInt(p.RemoteID), p.SupplierID, p.LocationID, p.RefNo, string(p.Status),
		p.TransactionDate.Unix(), p.TotalBeforeTax.String(), string(p.DiscountType), p.DiscountAmount.String(),
		nullInt(p.TaxID), p.TaxAmount.String(), p.ShippingCharges.String(), p.ShippingDetails,
		p.FinalTotal.String(), p.AdditionalNotes, boolToInt(p.Synced), p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	return err
}

func insertLines(ctx context.Context, tx *sql.Tx, purchaseID string, lines []PurchaseLine) error {
	if len(lines) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO purchase_lines(local_id, purchase_local_id, product_id, variation_id, quantity,
  unit_price, discount_type, discount_amount, tax_id, tax_amount, lot_number, mfg_date, exp_date, order_line_id)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := range lines {
		ln := &lines[i]
		if ln.LocalID == "" {
			ln.LocalID = ulid.Make().String()
		}
		ln.PurchaseLocalID = purchaseID
		if _, err := stmt.ExecContext(ctx,
			ln.LocalID, ln.PurchaseLocalID, ln.ProductID, ln.VariationID, ln.Quantity.String(),
			ln.UnitPrice.String(), string(ln.DiscountType), ln.DiscountAmount.String(),
			nullInt(ln.TaxID), ln.TaxAmount.String(), ln.LotNumber, nullUnix(ln.MfgDate), nullUnix(ln.ExpDate),
			nullInt(ln.OrderLineID),
		); err != nil {
			return err
		}
	}
	return nil
}

func insertPayments(ctx context.Context, tx *sql.Tx, purchaseID string, payments []PurchasePayment) error {
	if len(payments) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO purchase_payments(local_id, purchase_local_id, remote_id, amount, method, paid_on, account_id, note)
VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i := range payments {
		pay := &payments[i]
		if pay.LocalID == "" {
			pay.LocalID = ulid.Make().String()
		}
		pay.PurchaseLocalID = purchaseID
		if _, err := stmt.ExecContext(ctx,
			pay.LocalID, pay.PurchaseLocalID, nullInt(pay.RemoteID), pay.Amount.String(),
			pay.Method, pay.PaidOn.Unix(), nullInt(pay.AccountID), pay.Note,
		); err != nil {
			return err
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(r rowScanner) (Purchase, error) {
	var (
		p                  Purchase
		remoteID, taxID    sql.NullInt64
		status, discType   string
		txDate, cAt, uAt   int64
		totalBT, discAmt   string
		taxAmt, shipCh     string
		finalTotal         string
		synced             int
	)
	if err := r.Scan(&p.LocalID, &remoteID, &p.SupplierID, &p.LocationID, &p.RefNo, &status,
		&txDate, &totalBT, &discType, &discAmt, &taxID, &taxAmt,
		&shipCh, &p.ShippingDetails, &finalTotal, &p.AdditionalNotes, &synced, &cAt, &uAt,
	); err != nil {
		return Purchase{}, err
	}
	p.RemoteID = intPtr(remoteID)
	p.TaxID = intPtr(taxID)
	p.Status = Status(status)
	p.DiscountType = DiscountType(discType)
	p.TransactionDate = time.Unix(txDate, 0).UTC()
	p.CreatedAt = time.Unix(cAt, 0).UTC()
	p.UpdatedAt = time.Unix(uAt, 0).UTC()
	p.Synced = synced != 0

	var err error
	if p.TotalBeforeTax, err = decFromDB(totalBT); err != nil {
		return Purchase{}, err
	}
	if p.DiscountAmount, err = decFromDB(discAmt); err != nil {
		return Purchase{}, err
	}
	if p.TaxAmount, err = decFromDB(taxAmt); err != nil {
		return Purchase{}, err
	}
	if p.ShippingCharges, err = decFromDB(shipCh); err != nil {
		return Purchase{}, err
	}
	if p.FinalTotal, err = decFromDB(finalTotal); err != nil {
		return Purchase{}, err
	}
	return p, nil
}

func collectPurchases(rows *sql.Rows) ([]Purchase, error) {
	defer func() {
		_ = rows.Close()
	}()
	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPurchase returns one header by local id.
func (s *Store) GetPurchase(ctx context.Context, localID string) (Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseCols+` FROM purchases WHERE local_id = ?`, localID)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Purchase{}, ErrNotFound
	}
	return p, err
}

// PurchaseByRemoteID returns the header carrying the given remote id.
func (s *Store) PurchaseByRemoteID(ctx context.Context, remoteID int64) (Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseCols+` FROM purchases WHERE remote_id = ?`, remoteID)
	p, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Purchase{}, ErrNotFound
	}
	return p, err
}

// Unsynced returns headers waiting for sync, oldest first.
func (s *Store) Unsynced(ctx context.Context) ([]Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+purchaseCols+` FROM purchases WHERE synced = 0 ORDER BY created_at ASC, local_id ASC`)
	if err != nil {
		return nil, err
	}
	return collectPurchases(rows)
}

// LocalFilter narrows local header queries. Zero values match everything.
// Only the filters that can be evaluated without the remote service exist
// here.
type LocalFilter struct {
	SupplierID int64
	Status     Status
}

// ListLocal returns local headers newest first.
func (s *Store) ListLocal(ctx context.Context, f LocalFilter) ([]Purchase, error) {
	q := `SELECT ` + purchaseCols + ` FROM purchases`
	var conds []string
	var args []any
	if f.SupplierID != 0 {
		conds = append(conds, `supplier_id = ?`)
		args = append(args, f.SupplierID)
	}
	if f.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(f.Status))
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY transaction_date DESC, local_id ASC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectPurchases(rows)
}

// UpdatePurchase rewrites the header fields and replaces its lines, flipping
// the row back to unsynced. The remote identifier is untouched so the next
// sync run issues an update instead of a create.
func (s *Store) UpdatePurchase(ctx context.Context, p *Purchase, lines []PurchaseLine) error {
	p.UpdatedAt = time.Now().UTC()
	p.Synced = false

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE purchases SET supplier_id=?, location_id=?, ref_no=?, status=?, transaction_date=?,
  total_before_tax=?, discount_type=?, discount_amount=?, tax_id=?, tax_amount=?,
  shipping_charges=?, shipping_details=?, final_total=?, additional_notes=?, synced=0, updated_at=?
WHERE local_id=?`,
		p.SupplierID, p.LocationID, p.RefNo, string(p.Status), p.TransactionDate.Unix(),
		p.TotalBeforeTax.String(), string(p.DiscountType), p.DiscountAmount.String(),
		nullInt(p.TaxID), p.TaxAmount.String(), p.ShippingCharges.String(), p.ShippingDetails,
		p.FinalTotal.String(), p.AdditionalNotes, p.UpdatedAt.Unix(), p.LocalID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_lines WHERE purchase_local_id = ?`, p.LocalID); err != nil {
		return err
	}
	if err := insertLines(ctx, tx, p.LocalID, lines); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateStatus sets just the lifecycle status. markSynced keeps the row
// synced (the change already reached the service); otherwise the row flips
// unsynced so the next run pushes it.
func (s *Store) UpdateStatus(ctx context.Context, localID string, status Status, markSynced bool) error {
	synced := 0
	if markSynced {
		synced = 1
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE purchases SET status=?, synced=?, updated_at=? WHERE local_id=?`,
		string(status), synced, time.Now().UTC().Unix(), localID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSynced records the remote identifier and flips the header to synced in
// one transaction. A non-nil payments slice replaces the local payment rows
// with the remote-confirmed ones; nil leaves them alone.
func (s *Store) MarkSynced(ctx context.Context, localID string, remoteID int64, payments []PurchasePayment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE purchases SET remote_id=?, synced=1, updated_at=? WHERE local_id=?`,
		remoteID, time.Now().UTC().Unix(), localID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if payments != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_payments WHERE purchase_local_id = ?`, localID); err != nil {
			return err
		}
		if err := insertPayments(ctx, tx, localID, payments); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeletePurchase removes a header with everything it owns. Lines go first,
// then payments, then the header row.
func (s *Store) DeletePurchase(ctx context.Context, localID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := deleteOwned(ctx, tx, localID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE local_id = ?`, localID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func deleteOwned(ctx context.Context, tx *sql.Tx, localID string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_lines WHERE purchase_local_id = ?`, localID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM purchase_payments WHERE purchase_local_id = ?`, localID)
	return err
}

// DeletePurchases removes multiple headers with their owned rows in one
// transaction. Missing ids are skipped.
func (s *Store) DeletePurchases(ctx context.Context, localIDs []string) error {
	if len(localIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, id := range localIDs {
		if err := deleteOwned(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE local_id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LinesByPurchase returns the line rows of one header in insertion order.
func (s *Store) LinesByPurchase(ctx context.Context, localID string) ([]PurchaseLine, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT local_id, purchase_local_id, product_id, variation_id, quantity, unit_price,
  discount_type, discount_amount, tax_id, tax_amount, lot_number, mfg_date, exp_date, order_line_id
FROM purchase_lines WHERE purchase_local_id = ? ORDER BY local_id ASC`, localID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []PurchaseLine
	for rows.Next() {
		var (
			ln               PurchaseLine
			qty, price       string
			discType         string
			discAmt, taxAmt  string
			taxID, orderLine sql.NullInt64
			mfg, exp         sql.NullInt64
		)
		if err := rows.Scan(&ln.LocalID, &ln.PurchaseLocalID, &ln.ProductID, &ln.VariationID, &qty, &price,
			&discType, &discAmt, &taxID, &taxAmt, &ln.LotNumber, &mfg, &exp, &orderLine,
		); err != nil {
			return nil, err
		}
		ln.DiscountType = DiscountType(discType)
		ln.TaxID = intPtr(taxID)
		ln.OrderLineID = intPtr(orderLine)
		ln.MfgDate = unixPtr(mfg)
		ln.ExpDate = unixPtr(exp)
		if ln.Quantity, err = decFromDB(qty); err != nil {
			return nil, err
		}
		if ln.UnitPrice, err = decFromDB(price); err != nil {
			return nil, err
		}
		if ln.DiscountAmount, err = decFromDB(discAmt); err != nil {
			return nil, err
		}
		if ln.TaxAmount, err = decFromDB(taxAmt); err != nil {
			return nil, err
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}

// PaymentsByPurchase returns the payment rows of one header in insertion
// order.
func (s *Store) PaymentsByPurchase(ctx context.Context, localID string) ([]PurchasePayment, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT local_id, purchase_local_id, remote_id, amount, method, paid_on, account_id, note
FROM purchase_payments WHERE purchase_local_id = ? ORDER BY local_id ASC`, localID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []PurchasePayment
	for rows.Next() {
		var (
			pay             PurchasePayment
			remoteID, accID sql.NullInt64
			amount          string
			paidOn          int64
		)
		if err := rows.Scan(&pay.LocalID, &pay.PurchaseLocalID, &remoteID, &amount, &pay.Method, &paidOn, &accID, &pay.Note); err != nil {
			return nil, err
		}
		pay.RemoteID = intPtr(remoteID)
		pay.AccountID = intPtr(accID)
		pay.PaidOn = time.Unix(paidOn, 0).UTC()
		if pay.Amount, err = decFromDB(amount); err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}

// AddPayment stages a payment row and flips the owning header unsynced so
// the next sync run carries it to the service.
func (s *Store) AddPayment(ctx context.Context, pay *PurchasePayment) error {
	if pay.PurchaseLocalID == "" {
		return errors.New("payment needs a purchase local id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
UPDATE purchases SET synced=0, updated_at=? WHERE local_id=?`,
		time.Now().UTC().Unix(), pay.PurchaseLocalID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := insertPayments(ctx, tx, pay.PurchaseLocalID, []PurchasePayment{*pay}); err != nil {
		return err
	}
	// keep the caller's copy in step with the minted id
	if pay.LocalID == "" {
		row := tx.QueryRowContext(ctx, `
SELECT local_id FROM purchase_payments WHERE purchase_local_id=? ORDER BY local_id DESC LIMIT 1`, pay.PurchaseLocalID)
		if err := row.Scan(&pay.LocalID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertRemote mirrors a fetched remote purchase into the local store so
// offline reads stay complete. Rows with pending local edits are left alone;
// remote data lands only on synced rows or as new rows.
func (s *Store) UpsertRemote(ctx context.Context, rp RemotePurchase) error {
	if rp.ID == 0 {
		return &APIError{Op: "mirror purchase", Err: ErrMalformedResponse, Detail: "remote purchase without id"}
	}
	existing, err := s.PurchaseByRemoteID(ctx, int64(rp.ID))
	switch {
	case errors.Is(err, ErrNotFound):
		return s.insertRemote(ctx, rp)
	case err != nil:
		return err
	case !existing.Synced:
		return nil
	default:
		return s.updateFromRemote(ctx, existing.LocalID, rp)
	}
}

func (s *Store) insertRemote(ctx context.Context, rp RemotePurchase) error {
	p := PurchaseFromRemote(rp)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertHeader(ctx, tx, &p); err != nil {
		return err
	}
	if len(rp.Lines) > 0 {
		lines := make([]PurchaseLine, 0, len(rp.Lines))
		for _, rl := range rp.Lines {
			lines = append(lines, LineFromRemote(rl))
		}
		if err := insertLines(ctx, tx, p.LocalID, lines); err != nil {
			return err
		}
	}
	if len(rp.PaymentLines) > 0 {
		pays := make([]PurchasePayment, 0, len(rp.PaymentLines))
		for _, rpay := range rp.PaymentLines {
			pays = append(pays, PaymentFromRemote(rpay))
		}
		if err := insertPayments(ctx, tx, p.LocalID, pays); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) updateFromRemote(ctx context.Context, localID string, rp RemotePurchase) error {
	p := PurchaseFromRemote(rp)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
UPDATE purchases SET supplier_id=?, location_id=?, ref_no=?, status=?, transaction_date=?,
  total_before_tax=?, discount_type=?, discount_amount=?, tax_id=?, tax_amount=?,
  shipping_charges=?, shipping_details=?, final_total=?, additional_notes=?, synced=1, updated_at=?
WHERE local_id=?`,
		p.SupplierID, p.LocationID, p.RefNo, string(p.Status), p.TransactionDate.Unix(),
		p.TotalBeforeTax.String(), string(p.DiscountType), p.DiscountAmount.String(),
		nullInt(p.TaxID), p.TaxAmount.String(), p.ShippingCharges.String(), p.ShippingDetails,
		p.FinalTotal.String(), p.AdditionalNotes, time.Now().UTC().Unix(), localID,
	); err != nil {
		return err
	}
	if len(rp.Lines) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_lines WHERE purchase_local_id = ?`, localID); err != nil {
			return err
		}
		lines := make([]PurchaseLine, 0, len(rp.Lines))
		for _, rl := range rp.Lines {
			lines = append(lines, LineFromRemote(rl))
		}
		if err := insertLines(ctx, tx, localID, lines); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceSuppliers atomically swaps the supplier cache for the fetched set
// and stamps its last-sync time in the same transaction. Duplicate remote
// ids collapse to the last record.
func (s *Store) ReplaceSuppliers(ctx context.Context, recs []Supplier, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO suppliers(remote_id, name, business_name, mobile, doc) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.RemoteID, r.Name, r.BusinessName, r.Mobile, docOrEmpty(r.Doc)); err != nil {
			return err
		}
	}
	if err := setStateTx(ctx, tx, lastSyncKey(RefSuppliers), strconv.FormatInt(at.Unix(), 10)); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceProducts atomically swaps the product cache, like ReplaceSuppliers.
func (s *Store) ReplaceProducts(ctx context.Context, recs []Product, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO products(remote_id, name, sku, type, doc) VALUES(?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.RemoteID, r.Name, r.SKU, r.Type, docOrEmpty(r.Doc)); err != nil {
			return err
		}
	}
	if err := setStateTx(ctx, tx, lastSyncKey(RefProducts), strconv.FormatInt(at.Unix(), 10)); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceLocations atomically swaps the location cache, like
// ReplaceSuppliers.
func (s *Store) ReplaceLocations(ctx context.Context, recs []Location, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM locations`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO locations(remote_id, name, doc) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = stmt.Close()
	}()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.RemoteID, r.Name, docOrEmpty(r.Doc)); err != nil {
			return err
		}
	}
	if err := setStateTx(ctx, tx, lastSyncKey(RefLocations), strconv.FormatInt(at.Unix(), 10)); err != nil {
		return err
	}
	return tx.Commit()
}

func docOrEmpty(doc []byte) string {
	if len(doc) == 0 {
		return "{}"
	}
	return string(doc)
}

// SearchSuppliers matches name or business name, case-insensitive, ordered
// by name. An empty term returns the whole cache.
func (s *Store) SearchSuppliers(ctx context.Context, term string) ([]Supplier, error) {
	like := "%" + strings.ToLower(term) + "%"
	rows, err := s.db.QueryContext(ctx, `
SELECT remote_id, name, business_name, mobile, doc FROM suppliers
WHERE lower(name) LIKE ? OR lower(business_name) LIKE ?
ORDER BY name ASC`, like, like)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Supplier
	for rows.Next() {
		var r Supplier
		var doc string
		if err := rows.Scan(&r.RemoteID, &r.Name, &r.BusinessName, &r.Mobile, &doc); err != nil {
			return nil, err
		}
		r.Doc = []byte(doc)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchProducts matches name or SKU, case-insensitive, ordered by name. An
// empty term returns the whole cache.
func (s *Store) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	like := "%" + strings.ToLower(term) + "%"
	rows, err := s.db.QueryContext(ctx, `
SELECT remote_id, name, sku, type, doc FROM products
WHERE lower(name) LIKE ? OR lower(sku) LIKE ?
ORDER BY name ASC`, like, like)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Product
	for rows.Next() {
		var r Product
		var doc string
		if err := rows.Scan(&r.RemoteID, &r.Name, &r.SKU, &r.Type, &doc); err != nil {
			return nil, err
		}
		r.Doc = []byte(doc)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Locations returns the cached business locations ordered by name.
func (s *Store) Locations(ctx context.Context) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT remote_id, name, doc FROM locations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []Location
	for rows.Next() {
		var r Location
		var doc string
		if err := rows.Scan(&r.RemoteID, &r.Name, &doc); err != nil {
			return nil, err
		}
		r.Doc = []byte(doc)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SupplierName resolves a cached supplier display name, empty when unknown.
func (s *Store) SupplierName(ctx context.Context, remoteID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM suppliers WHERE remote_id = ?`, remoteID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// LocationName resolves a cached location display name, empty when unknown.
func (s *Store) LocationName(ctx context.Context, remoteID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM locations WHERE remote_id = ?`, remoteID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return name, err
}

// GetState fetches sync metadata with default fallback.
func (s *Store) GetState(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM system WHERE k = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	return v, err
}

// SetState updates sync metadata.
func (s *Store) SetState(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO system(k,v) VALUES(?,?)
ON CONFLICT(k) DO UPDATE SET v=excluded.v`, key, val)
	return err
}

func setStateTx(ctx context.Context, tx *sql.Tx, key, val string) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO system(k,v) VALUES(?,?)
ON CONFLICT(k) DO UPDATE SET v=excluded.v`, key, val)
	return err
}

func lastSyncKey(entity RefEntity) string {
	return "last_sync:" + string(entity)
}

// LastSync returns when the given reference cache was last replaced, zero
// when it never was.
func (s *Store) LastSync(ctx context.Context, entity RefEntity) (time.Time, error) {
	v, err := s.GetState(ctx, lastSyncKey(entity), "")
	if err != nil || v == "" {
		return time.Time{}, err
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, nil
	}
	return time.Unix(sec, 0).UTC(), nil
}

// SetLastSync stamps the refresh time of one reference cache.
func (s *Store) SetLastSync(ctx context.Context, entity RefEntity, at time.Time) error {
	return s.SetState(ctx, lastSyncKey(entity), strconv.FormatInt(at.Unix(), 10))
}

// EnsureDeviceID returns the stable device identifier, generating and
// persisting one on first use.
func (s *Store) EnsureDeviceID(ctx context.Context) (string, error) {
	id, err := s.GetState(ctx, "device_id", "")
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.SetState(ctx, "device_id", id); err != nil {
		return "", err
	}
	return id, nil
}

// PendingCount returns the number of purchases waiting to sync.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases WHERE synced = 0`).Scan(&count)
	return count, err
}

// SyncStatus contains current local sync state.
type SyncStatus struct {
	PendingPurchases int
	TotalPurchases   int
	SupplierCount    int
	ProductCount     int
	LocationCount    int
}

// SyncStatus returns current local sync state.
func (s *Store) SyncStatus(ctx context.Context) (SyncStatus, error) {
	var st SyncStatus
	var err error
	if st.PendingPurchases, err = s.PendingCount(ctx); err != nil {
		return SyncStatus{}, err
	}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM purchases`, &st.TotalPurchases},
		{`SELECT COUNT(*) FROM suppliers`, &st.SupplierCount},
		{`SELECT COUNT(*) FROM products`, &st.ProductCount},
		{`SELECT COUNT(*) FROM locations`, &st.LocationCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return SyncStatus{}, err
		}
	}
	return st, nil
}
