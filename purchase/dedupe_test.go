package purchase

import "testing"

func TestDedupeLastPayloadWinsFirstSlot(t *testing.T) {
	page := []RemotePurchase{
		{ID: 1, RefNo: "first-1"},
		{ID: 2, RefNo: "first-2"},
		{ID: 1, RefNo: "second-1"},
		{ID: 3, RefNo: "only-3"},
		{ID: 2, RefNo: "second-2"},
	}
	out := DedupeByRemoteID(page)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	wantIDs := []int64{1, 2, 3}
	wantRefs := []string{"second-1", "second-2", "only-3"}
	for i, rp := range out {
		if int64(rp.ID) != wantIDs[i] || rp.RefNo != wantRefs[i] {
			t.Fatalf("entry %d: expected id=%d ref=%s, got id=%d ref=%s",
				i, wantIDs[i], wantRefs[i], rp.ID, rp.RefNo)
		}
	}
}

func TestDedupePassesEntriesWithoutKeyThrough(t *testing.T) {
	page := []RemotePurchase{
		{ID: 0, RefNo: "a"},
		{ID: 0, RefNo: "b"},
		{ID: 4, RefNo: "c"},
		{ID: 4, RefNo: "d"},
	}
	out := DedupeByRemoteID(page)
	if len(out) != 3 {
		t.Fatalf("expected both keyless entries kept, got %d", len(out))
	}
	if out[0].RefNo != "a" || out[1].RefNo != "b" || out[2].RefNo != "d" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestPruneCandidatesProtectLocalWork(t *testing.T) {
	id10, id11, id12 := int64(10), int64(11), int64(12)
	locals := []Purchase{
		{LocalID: "pending-edit", RemoteID: &id10, Synced: false},
		{LocalID: "never-synced", RemoteID: nil, Synced: false},
		{LocalID: "still-remote", RemoteID: &id11, Synced: true},
		{LocalID: "vanished", RemoteID: &id12, Synced: true},
	}
	keep := map[int64]struct{}{11: {}}

	out := PruneCandidates(locals, keep)
	if len(out) != 1 || out[0] != "vanished" {
		t.Fatalf("only the vanished synced mirror may be pruned, got %v", out)
	}
}
