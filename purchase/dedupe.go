package purchase

// RemoteKeyed is anything carrying a remote identifier. Zero means no remote
// identity yet.
type RemoteKeyed interface {
	RemoteKey() int64
}

// DedupeByRemoteID collapses entries sharing a remote identifier. The last
// occurrence wins (later entries are fresher under concurrent pagination)
// but it keeps the slot of the first, so relative order is stable. Entries
// without a remote identifier pass through untouched.
func DedupeByRemoteID[T RemoteKeyed](items []T) []T {
	if len(items) < 2 {
		return items
	}
	out := make([]T, 0, len(items))
	slot := make(map[int64]int, len(items))
	for _, it := range items {
		key := it.RemoteKey()
		if key == 0 {
			out = append(out, it)
			continue
		}
		if i, ok := slot[key]; ok {
			out[i] = it
			continue
		}
		slot[key] = len(out)
		out = append(out, it)
	}
	return out
}

// PruneCandidates returns the local ids of mirror rows that vanished from
// the service: synced, remote id set, and that id absent from keep. Rows
// without a remote id and rows with pending local edits are never
// candidates; a prune must not lose local work.
func PruneCandidates(locals []Purchase, keep map[int64]struct{}) []string {
	var out []string
	for _, p := range locals {
		if p.RemoteID == nil || !p.Synced {
			continue
		}
		if _, ok := keep[*p.RemoteID]; ok {
			continue
		}
		out = append(out, p.LocalID)
	}
	return out
}
