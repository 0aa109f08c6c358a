package inspect

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ordersync/purchase"
)

func TestSummaryAndPending(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "orders.db")

	// Seed through the real store so the inspector reads the shipped schema.
	store, err := purchase.OpenStore(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	staged := purchase.NewPurchase(7, 3, purchase.StatusOrdered, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	staged.RefNo = "PO-A"
	staged.FinalTotal = decimal.RequireFromString("180.00")
	if err := store.CreatePurchase(ctx, &staged, []purchase.PurchaseLine{
		purchase.NewLine(101, 201, decimal.NewFromInt(3), decimal.RequireFromString("60.00")),
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	shipped := purchase.NewPurchase(7, 3, purchase.StatusReceived, time.Date(2024, 3, 16, 10, 0, 0, 0, time.UTC))
	shipped.RefNo = "PO-B"
	if err := store.CreatePurchase(ctx, &shipped, nil); err != nil {
		t.Fatalf("create purchase: %v", err)
	}
	if err := store.MarkSynced(ctx, shipped.LocalID, 555, nil); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	insp, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open inspector: %v", err)
	}
	defer func() {
		if cerr := insp.Close(); cerr != nil {
			t.Fatalf("close inspector: %v", cerr)
		}
	}()

	summary, err := insp.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(summary))
	}
	if summary[0].Status != "ordered" || summary[0].Count != 1 || summary[0].Unsynced != 1 {
		t.Fatalf("unexpected ordered row %+v", summary[0])
	}
	if summary[1].Status != "received" || summary[1].Count != 1 || summary[1].Unsynced != 0 {
		t.Fatalf("unexpected received row %+v", summary[1])
	}

	pending, err := insp.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending row, got %d", len(pending))
	}
	if pending[0].LocalID != staged.LocalID || pending[0].RefNo != "PO-A" {
		t.Fatalf("unexpected pending row %+v", pending[0])
	}
	if pending[0].RemoteID != 0 {
		t.Fatalf("never-pushed rows carry no remote id, got %d", pending[0].RemoteID)
	}
	if pending[0].Total != "180" {
		t.Fatalf("unexpected total %q", pending[0].Total)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}
