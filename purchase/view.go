// ABOUTME: Merged local+remote purchase listings with offline degradation.
// ABOUTME: Fetched pages are mirrored into the store so offline reads stay complete.
package purchase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RowSource says which side produced a listing row or page.
type RowSource string

const (
	SourceRemote RowSource = "remote"
	SourceLocal  RowSource = "local"
)

// PurchaseSummary is one listing row. LocalID is empty for remote rows not
// yet mirrored locally; RemoteID is nil for rows the service has never seen.
type PurchaseSummary struct {
	LocalID         string
	RemoteID        *int64
	SupplierID      int64
	SupplierName    string
	LocationID      int64
	LocationName    string
	RefNo           string
	Status          Status
	PaymentStatus   string
	TransactionDate time.Time
	FinalTotal      decimal.Decimal
	Synced          bool
	Source          RowSource
}

// RemoteKey implements RemoteKeyed so merged rows can run through the dedupe
// pass.
func (s PurchaseSummary) RemoteKey() int64 {
	if s.RemoteID == nil {
		return 0
	}
	return *s.RemoteID
}

// ListPage is one page of merged listing rows.
type ListPage struct {
	Purchases   []PurchaseSummary
	Source      RowSource // remote when the service answered, local otherwise
	CurrentPage int
	LastPage    int
	Total       int
}

// Views builds the merged purchase listings and details callers see. The
// caller never needs to know which rows are local-only, pending, or
// confirmed.
type Views struct {
	store  *Store
	client *Client
	conn   Connectivity
	log    *zap.Logger
}

// NewViews wires a view builder. Nil conn defaults to always-online, nil log
// to a nop.
func NewViews(store *Store, client *Client, conn Connectivity, log *zap.Logger) *Views {
	if conn == nil {
		conn = AlwaysOnline
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Views{store: store, client: client, conn: conn, log: log}
}

// List returns one page of purchases. Online, the remote page is ground
// truth for everything it knows: its rows are deduped, mirrored into the
// store, and shown first; local rows with pending work the page does not
// represent are appended. Offline, or when the fetch fails, the listing
// degrades to local rows with the locally evaluable filters applied.
func (v *Views) List(ctx context.Context, f ListFilter) (ListPage, error) {
	if v.conn.Online(ctx) {
		page, err := v.client.ListPurchases(ctx, f)
		if err == nil {
			return v.mergeRemote(ctx, f, page)
		}
		v.log.Warn("remote list failed, serving local rows", zap.Error(err))
	}
	return v.localOnly(ctx, f)
}

type refKey struct {
	supplierID int64
	refNo      string
}

func (v *Views) mergeRemote(ctx context.Context, f ListFilter, page PurchasePage) (ListPage, error) {
	remotes := DedupeByRemoteID(page.Data)
	v.mirror(ctx, f, page, remotes)

	out := ListPage{
		Source:      SourceRemote,
		CurrentPage: page.CurrentPage,
		LastPage:    page.LastPage,
		Total:       page.Total,
	}

	seen := make(map[int64]struct{}, len(remotes))
	seenRef := make(map[refKey]struct{}, len(remotes))
	for _, rp := range remotes {
		seen[int64(rp.ID)] = struct{}{}
		if rp.RefNo != "" {
			seenRef[refKey{int64(rp.ContactID), rp.RefNo}] = struct{}{}
		}
	}

	// Load locals after the mirror pass so fresh rows carry local ids too.
	locals, err := v.store.ListLocal(ctx, LocalFilter{})
	if err != nil {
		return ListPage{}, err
	}
	localByRemote := make(map[int64]Purchase, len(locals))
	for _, p := range locals {
		if p.RemoteID != nil {
			localByRemote[*p.RemoteID] = p
		}
	}

	for _, rp := range remotes {
		sum := v.summaryFromRemote(ctx, rp)
		if p, ok := localByRemote[int64(rp.ID)]; ok {
			sum.LocalID = p.LocalID
			sum.Synced = p.Synced
		}
		out.Purchases = append(out.Purchases, sum)
	}

	// Pending local work the page does not represent: match by remote id
	// when present, else by supplier + reference number.
	for _, p := range locals {
		if p.Synced || !matchesLocally(f, p) {
			continue
		}
		if p.RemoteID != nil {
			if _, ok := seen[*p.RemoteID]; ok {
				continue
			}
		} else if p.RefNo != "" {
			if _, ok := seenRef[refKey{p.SupplierID, p.RefNo}]; ok {
				continue
			}
		}
		out.Purchases = append(out.Purchases, v.summaryFromLocal(ctx, p))
	}
	return out, nil
}

// mirror upserts the fetched rows into the store so they survive going
// offline. When an unfiltered fetch covers the whole remote set, mirror rows
// that vanished from the service are pruned; rows with pending local work
// always survive.
func (v *Views) mirror(ctx context.Context, f ListFilter, page PurchasePage, remotes []RemotePurchase) {
	for _, rp := range remotes {
		if err := v.store.UpsertRemote(ctx, rp); err != nil {
			v.log.Warn("mirror purchase failed",
				zap.Int64("remote_id", int64(rp.ID)), zap.Error(err))
		}
	}

	if !f.unfiltered() || f.Page > 1 || page.LastPage > 1 {
		return
	}
	keep := make(map[int64]struct{}, len(remotes))
	for _, rp := range remotes {
		keep[int64(rp.ID)] = struct{}{}
	}
	locals, err := v.store.ListLocal(ctx, LocalFilter{})
	if err != nil {
		v.log.Warn("prune scan failed", zap.Error(err))
		return
	}
	doomed := PruneCandidates(locals, keep)
	if len(doomed) == 0 {
		return
	}
	if err := v.store.DeletePurchases(ctx, doomed); err != nil {
		v.log.Warn("prune failed", zap.Error(err))
		return
	}
	v.log.Info("pruned vanished mirror rows", zap.Int("count", len(doomed)))
}

func (v *Views) localOnly(ctx context.Context, f ListFilter) (ListPage, error) {
	locals, err := v.store.ListLocal(ctx, LocalFilter{SupplierID: f.SupplierID, Status: f.Status})
	if err != nil {
		return ListPage{}, err
	}
	out := ListPage{
		Source:      SourceLocal,
		CurrentPage: 1,
		LastPage:    1,
		Total:       len(locals),
	}
	for _, p := range locals {
		out.Purchases = append(out.Purchases, v.summaryFromLocal(ctx, p))
	}
	return out, nil
}

// matchesLocally applies the filters that can be evaluated without the
// service. The rest pass by best effort.
func matchesLocally(f ListFilter, p Purchase) bool {
	if f.SupplierID != 0 && p.SupplierID != f.SupplierID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}

func (v *Views) summaryFromRemote(ctx context.Context, rp RemotePurchase) PurchaseSummary {
	id := int64(rp.ID)
	sum := PurchaseSummary{
		RemoteID:        &id,
		SupplierID:      int64(rp.ContactID),
		SupplierName:    rp.ContactName,
		LocationID:      int64(rp.LocationID),
		LocationName:    rp.LocationName,
		RefNo:           rp.RefNo,
		Status:          rp.Status,
		PaymentStatus:   rp.PaymentStatus,
		TransactionDate: parseRemoteTime(rp.TransactionDate),
		FinalTotal:      rp.FinalTotal,
		Synced:          true,
		Source:          SourceRemote,
	}
	if sum.SupplierName == "" {
		if name, err := v.store.SupplierName(ctx, sum.SupplierID); err == nil {
			sum.SupplierName = name
		}
	}
	if sum.LocationName == "" {
		if name, err := v.store.LocationName(ctx, sum.LocationID); err == nil {
			sum.LocationName = name
		}
	}
	return sum
}

func (v *Views) summaryFromLocal(ctx context.Context, p Purchase) PurchaseSummary {
	sum := PurchaseSummary{
		LocalID:         p.LocalID,
		RemoteID:        p.RemoteID,
		SupplierID:      p.SupplierID,
		LocationID:      p.LocationID,
		RefNo:           p.RefNo,
		Status:          p.Status,
		TransactionDate: p.TransactionDate,
		FinalTotal:      p.FinalTotal,
		Synced:          p.Synced,
		Source:          SourceLocal,
	}
	if name, err := v.store.SupplierName(ctx, p.SupplierID); err == nil {
		sum.SupplierName = name
	}
	if name, err := v.store.LocationName(ctx, p.LocationID); err == nil {
		sum.LocationName = name
	}
	return sum
}

// PurchaseDetail is one fully loaded purchase.
type PurchaseDetail struct {
	Purchase     Purchase
	Lines        []PurchaseLine
	Payments     []PurchasePayment
	SupplierName string
	LocationName string
}

// Detail loads one purchase with its lines, payments, and resolved display
// names. For synced rows with the service reachable, the remote copy is
// fetched and mirrored first so the detail reflects service truth; any
// remote failure falls back to the local copy.
func (v *Views) Detail(ctx context.Context, localID string) (PurchaseDetail, error) {
	p, err := v.store.GetPurchase(ctx, localID)
	if err != nil {
		return PurchaseDetail{}, err
	}

	if p.RemoteID != nil && p.Synced && v.conn.Online(ctx) {
		rp, ferr := v.client.GetPurchase(ctx, *p.RemoteID)
		switch {
		case ferr != nil:
			v.log.Warn("remote detail failed, serving local copy",
				zap.Int64("remote_id", *p.RemoteID), zap.Error(ferr))
		default:
			if merr := v.store.UpsertRemote(ctx, rp); merr != nil {
				v.log.Warn("mirror purchase failed",
					zap.Int64("remote_id", int64(rp.ID)), zap.Error(merr))
			} else if p, err = v.store.GetPurchase(ctx, localID); err != nil {
				return PurchaseDetail{}, err
			}
		}
	}

	out := PurchaseDetail{Purchase: p}
	if out.Lines, err = v.store.LinesByPurchase(ctx, localID); err != nil {
		return PurchaseDetail{}, err
	}
	if out.Payments, err = v.store.PaymentsByPurchase(ctx, localID); err != nil {
		return PurchaseDetail{}, err
	}
	if out.SupplierName, err = v.store.SupplierName(ctx, p.SupplierID); err != nil {
		return PurchaseDetail{}, err
	}
	if out.LocationName, err = v.store.LocationName(ctx, p.LocationID); err != nil {
		return PurchaseDetail{}, err
	}
	return out, nil
}
