// ABOUTME: Sequential push of unsynced purchases to the remote service.
// ABOUTME: Auth failures abort the run; everything else is recorded per record.
package purchase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SyncEvents provides hooks for observability during sync runs.
type SyncEvents struct {
	OnStart    func(pending int)               // called once, before the first attempt
	OnPurchase func(localID string, err error) // called after each attempt
	OnComplete func(Result)                    // called when the run finishes
}

// Result aggregates one sync run.
type Result struct {
	Synced     int
	Failed     int
	Aborted    bool             // the walk stopped before the last pending record
	NeedsLogin bool             // credential missing or rejected
	Errors     map[string]error // local id -> classified failure
}

// Engine pushes locally modified purchases to the remote service and
// reconciles each row with the response.
type Engine struct {
	store  *Store
	client *Client
	conn   Connectivity
	auth   AuthStatus
	log    *zap.Logger
}

// NewEngine wires an engine over the store and client. Nil probes default to
// always-online and always-authenticated, nil log to a nop.
func NewEngine(store *Store, client *Client, conn Connectivity, auth AuthStatus, log *zap.Logger) *Engine {
	if conn == nil {
		conn = AlwaysOnline
	}
	if auth == nil {
		auth = AuthStatusFunc(func(context.Context) bool { return true })
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, client: client, conn: conn, auth: auth, log: log}
}

// SyncPending walks the unsynced purchases oldest first and pushes each one:
// create when no remote id is known yet, update otherwise. Each success is
// persisted before the next record is considered, so a rerun after a crash
// issues updates instead of duplicate creates.
//
// An error return means the run could not start (offline, unauthenticated,
// store failure) or was cancelled between records. Failures inside a run are
// reported through Result: a 401 mid-run sets Aborted and NeedsLogin and
// leaves the remaining records untouched; every other failure is recorded
// for its record and the walk continues.
func (e *Engine) SyncPending(ctx context.Context, events ...*SyncEvents) (Result, error) {
	var ev *SyncEvents
	if len(events) > 0 {
		ev = events[0]
	}
	res := Result{Errors: map[string]error{}}

	if !e.conn.Online(ctx) {
		return res, ErrNoConnectivity
	}
	if !e.auth.Authenticated(ctx) {
		res.NeedsLogin = true
		return res, ErrUnauthorized
	}

	pending, err := e.store.Unsynced(ctx)
	if err != nil {
		return res, err
	}
	if ev != nil && ev.OnStart != nil {
		ev.OnStart(len(pending))
	}

	for _, p := range pending {
		// Cancellation is honored between records, never inside one.
		if err := ctx.Err(); err != nil {
			res.Aborted = true
			return res, err
		}

		err := e.syncOne(ctx, p)
		if ev != nil && ev.OnPurchase != nil {
			ev.OnPurchase(p.LocalID, err)
		}
		if err == nil {
			res.Synced++
			continue
		}
		res.Failed++
		res.Errors[p.LocalID] = err
		e.log.Warn("purchase sync failed",
			zap.String("local_id", p.LocalID), zap.Error(err))
		if errors.Is(err, ErrUnauthorized) {
			res.Aborted = true
			res.NeedsLogin = true
			break
		}
	}

	if ev != nil && ev.OnComplete != nil {
		ev.OnComplete(res)
	}
	e.log.Info("sync run complete",
		zap.Int("synced", res.Synced),
		zap.Int("failed", res.Failed),
		zap.Bool("aborted", res.Aborted))
	return res, nil
}

func (e *Engine) syncOne(ctx context.Context, p Purchase) error {
	lines, err := e.store.LinesByPurchase(ctx, p.LocalID)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return ErrEmptyPurchase
	}
	payments, err := e.store.PaymentsByPurchase(ctx, p.LocalID)
	if err != nil {
		return err
	}

	var sub SubmitResult
	if p.RemoteID == nil {
		sub, err = e.client.CreatePurchase(ctx, p, lines, payments)
	} else {
		sub, err = e.client.UpdatePurchase(ctx, *p.RemoteID, p, lines, payments)
	}
	if err != nil {
		return err
	}

	// The remote copy of the payment rows is authoritative once returned.
	var confirmed []PurchasePayment
	if len(sub.Payments) > 0 {
		confirmed = make([]PurchasePayment, 0, len(sub.Payments))
		for _, rp := range sub.Payments {
			confirmed = append(confirmed, PaymentFromRemote(rp))
		}
	}
	return e.store.MarkSynced(ctx, p.LocalID, sub.RemoteID, confirmed)
}

// Delete removes a purchase everywhere it exists. Rows the service already
// knows need it reachable; the remote copy goes first so a local failure can
// be retried without leaving an orphaned remote record. Local-only rows are
// removed immediately, connectivity or not.
func (e *Engine) Delete(ctx context.Context, localID string) error {
	p, err := e.store.GetPurchase(ctx, localID)
	if err != nil {
		return err
	}
	if p.RemoteID != nil {
		if !e.conn.Online(ctx) {
			return ErrNoConnectivity
		}
		if err := e.client.DeletePurchase(ctx, *p.RemoteID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return e.store.DeletePurchase(ctx, localID)
}

// SetStatus records a status change locally first, then pushes it right away
// when the row is already synced and the service is reachable. A failed push
// leaves the row unsynced so the next run carries the change.
func (e *Engine) SetStatus(ctx context.Context, localID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown purchase status %q", status)
	}
	p, err := e.store.GetPurchase(ctx, localID)
	if err != nil {
		return err
	}
	if err := e.store.UpdateStatus(ctx, localID, status, false); err != nil {
		return err
	}
	if p.RemoteID == nil || !p.Synced || !e.conn.Online(ctx) {
		return nil
	}
	if err := e.client.UpdatePurchaseStatus(ctx, *p.RemoteID, status); err != nil {
		e.log.Warn("status push failed, retrying on next sync",
			zap.String("local_id", localID), zap.Error(err))
		return nil
	}
	return e.store.UpdateStatus(ctx, localID, status, true)
}
