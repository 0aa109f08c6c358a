// ABOUTME: Staleness-gated refresh of the supplier, product, and location caches.
// ABOUTME: Failures keep stale data; outcomes are explicit so callers can assert on them.
package purchase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAge is how old a reference cache may grow before RefreshIfStale
// refetches it.
const DefaultMaxAge = 24 * time.Hour

// RefEntity names one reference cache.
type RefEntity string

const (
	RefSuppliers RefEntity = "suppliers"
	RefProducts  RefEntity = "products"
	RefLocations RefEntity = "locations"
)

// RefreshOutcome reports which path a refresh attempt took.
type RefreshOutcome int

const (
	Refreshed       RefreshOutcome = iota // cache replaced with fetched records
	SkippedFresh                          // cache younger than maxAge, nothing done
	FailedKeptStale                       // refresh impossible or failed, stale rows kept
)

func (o RefreshOutcome) String() string {
	switch o {
	case Refreshed:
		return "refreshed"
	case SkippedFresh:
		return "skipped-fresh"
	case FailedKeptStale:
		return "failed-kept-stale"
	}
	return "unknown"
}

// RefreshResult is the outcome of one RefreshIfStale call. Err is set only
// for FailedKeptStale and is informational; the call itself never fails.
type RefreshResult struct {
	Entity  RefEntity
	Outcome RefreshOutcome
	Fetched int // records fetched when Outcome == Refreshed
	Err     error
}

// CacheManager keeps the reference caches fresh enough to serve lookups
// without blocking callers on the network. Stale data is preferred over no
// data: every failure keeps the existing rows.
type CacheManager struct {
	store  *Store
	client *Client
	conn   Connectivity
	auth   AuthStatus
	log    *zap.Logger
}

// NewCacheManager wires a manager over the store and client. Nil probes
// default to always-online and always-authenticated, nil log to a nop.
func NewCacheManager(store *Store, client *Client, conn Connectivity, auth AuthStatus, log *zap.Logger) *CacheManager {
	if conn == nil {
		conn = AlwaysOnline
	}
	if auth == nil {
		auth = AuthStatusFunc(func(context.Context) bool { return true })
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheManager{store: store, client: client, conn: conn, auth: auth, log: log}
}

// RefreshIfStale refetches one cache when its last sync is absent or older
// than maxAge. maxAge <= 0 means DefaultMaxAge. The probes are queried fresh
// on every call. The replace and the new last-sync stamp land in one store
// transaction.
func (m *CacheManager) RefreshIfStale(ctx context.Context, entity RefEntity, maxAge time.Duration) RefreshResult {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	res := RefreshResult{Entity: entity}

	last, err := m.store.LastSync(ctx, entity)
	if err != nil {
		res.Outcome = FailedKeptStale
		res.Err = err
		return res
	}
	if !last.IsZero() && time.Since(last) < maxAge {
		res.Outcome = SkippedFresh
		return res
	}
	if !m.conn.Online(ctx) {
		res.Outcome = FailedKeptStale
		res.Err = ErrNoConnectivity
		return res
	}
	if !m.auth.Authenticated(ctx) {
		res.Outcome = FailedKeptStale
		res.Err = ErrUnauthorized
		return res
	}

	n, err := m.refresh(ctx, entity)
	if err != nil {
		res.Outcome = FailedKeptStale
		res.Err = err
		m.log.Warn("reference refresh failed, keeping stale cache",
			zap.String("entity", string(entity)), zap.Error(err))
		return res
	}
	res.Outcome = Refreshed
	res.Fetched = n
	m.log.Info("reference cache refreshed",
		zap.String("entity", string(entity)), zap.Int("records", n))
	return res
}

func (m *CacheManager) refresh(ctx context.Context, entity RefEntity) (int, error) {
	now := time.Now().UTC()
	switch entity {
	case RefSuppliers:
		recs, err := m.client.FetchSuppliers(ctx, "")
		if err != nil {
			return 0, err
		}
		return len(recs), m.store.ReplaceSuppliers(ctx, recs, now)
	case RefProducts:
		recs, err := m.client.FetchProducts(ctx, "")
		if err != nil {
			return 0, err
		}
		return len(recs), m.store.ReplaceProducts(ctx, recs, now)
	case RefLocations:
		recs, err := m.client.FetchLocations(ctx)
		if err != nil {
			return 0, err
		}
		return len(recs), m.store.ReplaceLocations(ctx, recs, now)
	default:
		return 0, fmt.Errorf("unknown reference entity %q", entity)
	}
}

// RefreshAll fires the three refreshes concurrently and returns one result
// per entity, in suppliers/products/locations order.
func (m *CacheManager) RefreshAll(ctx context.Context, maxAge time.Duration) []RefreshResult {
	entities := []RefEntity{RefSuppliers, RefProducts, RefLocations}
	results := make([]RefreshResult, len(entities))
	var wg sync.WaitGroup
	for i, entity := range entities {
		wg.Add(1)
		go func(i int, entity RefEntity) {
			defer wg.Done()
			results[i] = m.RefreshIfStale(ctx, entity, maxAge)
		}(i, entity)
	}
	wg.Wait()
	return results
}

// SearchSuppliers queries the local supplier cache.
func (m *CacheManager) SearchSuppliers(ctx context.Context, term string) ([]Supplier, error) {
	return m.store.SearchSuppliers(ctx, term)
}

// SearchProducts queries the local product cache.
func (m *CacheManager) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	return m.store.SearchProducts(ctx, term)
}

// Locations returns the cached business locations.
func (m *CacheManager) Locations(ctx context.Context) ([]Location, error) {
	return m.store.Locations(ctx)
}
