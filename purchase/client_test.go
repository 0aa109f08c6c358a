package purchase

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClientSendsIdentityHeaders(t *testing.T) {
	env := newPurchaseTestEnv(t)
	if _, err := env.client.ListPurchases(env.ctx, ListFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}

	env.fake.mu.Lock()
	header := env.fake.lastHeader.Clone()
	env.fake.mu.Unlock()
	if got := header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("Authorization: got %q", got)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept: got %q", got)
	}
	if got := header.Get("X-Device-ID"); got != "dev-a" {
		t.Errorf("X-Device-ID: got %q", got)
	}
}

func TestClientEncodesListFilter(t *testing.T) {
	env := newPurchaseTestEnv(t)
	f := ListFilter{
		SupplierID:    7,
		Status:        StatusReceived,
		PaymentStatus: "due",
		RefNo:         "PO-9",
		StartDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Page:          2,
		PerPage:       25,
	}
	if _, err := env.client.ListPurchases(env.ctx, f); err != nil {
		t.Fatalf("list: %v", err)
	}

	env.fake.mu.Lock()
	query := env.fake.lastQuery
	env.fake.mu.Unlock()
	for _, tc := range []struct{ key, want string }{
		{"supplier_id", "7"},
		{"status", "received"},
		{"payment_status", "due"},
		{"ref_no", "PO-9"},
		{"start_date", "2024-03-01"},
		{"end_date", "2024-03-31"},
		{"page", "2"},
		{"per_page", "25"},
	} {
		if got := query.Get(tc.key); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.key, tc.want, got)
		}
	}
}

func TestClientSubmitsServiceWireFormat(t *testing.T) {
	env := newPurchaseTestEnv(t)
	p := NewPurchase(7, 3, StatusOrdered, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC))
	p.RefNo = "PO-W1"
	lines := []PurchaseLine{
		NewLine(101, 201, decimal.NewFromInt(10), decimal.RequireFromString("12.50")),
		NewLine(102, 202, decimal.NewFromInt(5), decimal.RequireFromString("20.00")),
	}
	pays := []PurchasePayment{NewPayment(decimal.RequireFromString("75.00"), "cash", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))}

	res, err := env.client.CreatePurchase(env.ctx, p, lines, pays)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.RemoteID != 555 {
		t.Fatalf("expected remote id 555, got %d", res.RemoteID)
	}

	env.fake.mu.Lock()
	body := env.fake.bodies[0]
	env.fake.mu.Unlock()
	if got := body["contact_id"]; got != float64(7) {
		t.Errorf("the supplier rides as contact_id, got %v", got)
	}
	if got := body["transaction_date"]; got != "2024-03-15 10:00:00" {
		t.Errorf("transaction_date: got %v", got)
	}
	wireLines, ok := body["purchases"].([]any)
	if !ok || len(wireLines) != 2 {
		t.Fatalf("lines ride under purchases, got %v", body["purchases"])
	}
	first, ok := wireLines[0].(map[string]any)
	if !ok || first["product_id"] != float64(101) || first["purchase_price"] != "12.50" {
		t.Errorf("unexpected first line: %v", wireLines[0])
	}
	wirePays, ok := body["payments"].([]any)
	if !ok || len(wirePays) != 1 {
		t.Fatalf("payments ride under payments, got %v", body["payments"])
	}
	pay, ok := wirePays[0].(map[string]any)
	if !ok || pay["method"] != "cash" || pay["paid_on"] != "2024-03-15 00:00:00" {
		t.Errorf("unexpected payment row: %v", wirePays[0])
	}
	if _, present := body["additional_notes"]; present {
		t.Error("empty optional fields must stay off the wire")
	}
}

func TestClientReadsEveryIdentifierShape(t *testing.T) {
	cases := []struct {
		name    string
		shape   string
		wantErr bool
	}{
		{"top-level id", "", false},
		{"string transaction id", "tx", false},
		{"id nested under data", "nested", false},
		{"transaction id nested under data", "nested_tx", false},
		{"no identifier at all", "noid", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newPurchaseTestEnv(t)
			env.fake.respShape = tc.shape
			p := env.stagePurchase(t, "PO-1")
			lines, err := env.store.LinesByPurchase(env.ctx, p.LocalID)
			if err != nil {
				t.Fatalf("lines: %v", err)
			}

			res, err := env.client.CreatePurchase(env.ctx, p, lines, nil)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Fatalf("expected ErrMalformedResponse, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.RemoteID != 555 {
				t.Fatalf("expected remote id 555, got %d", res.RemoteID)
			}
		})
	}
}

func TestClientClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{200, nil},
		{201, nil},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusServiceUnavailable, ErrServer},
		{http.StatusTeapot, ErrServer},
	}
	for _, tc := range cases {
		err := classifyStatus("list purchases", tc.status, []byte(`{"message":"nope"}`))
		if tc.want == nil {
			if err != nil {
				t.Errorf("status %d: expected success, got %v", tc.status, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClientCreateFailureCarriesOpAndStatus(t *testing.T) {
	env := newPurchaseTestEnv(t)
	env.fake.failNext = http.StatusUnauthorized
	env.fake.failNextBody = `{"message":"token expired"}`
	p := env.stagePurchase(t, "PO-1")

	_, err := env.client.CreatePurchase(env.ctx, p, []PurchaseLine{NewLine(101, 201, decimal.NewFromInt(1), decimal.NewFromInt(5))}, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an APIError, got %T", err)
	}
	if apiErr.Op != "create purchase" || apiErr.Status != http.StatusUnauthorized || apiErr.Detail != "token expired" {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
	creates, _ := env.fake.submitCounts()
	if creates != 0 {
		t.Fatalf("a rejected create must not count, got %d", creates)
	}
}

func TestClientDropsReferenceRecordsWithoutID(t *testing.T) {
	env := newPurchaseTestEnv(t)
	env.fake.suppliers = `{"data":[{"id":1,"name":"Acme Traders"},{"name":"Orphan Supplier"},{"id":0,"name":"Zero"}]}`
	env.fake.locations = `[{"name":"No ID"},{"id":4,"name":"Main Warehouse"}]`

	suppliers, err := env.client.FetchSuppliers(env.ctx, "")
	if err != nil {
		t.Fatalf("fetch suppliers: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0].RemoteID != 1 {
		t.Fatalf("records without an id must be dropped, got %+v", suppliers)
	}
	locations, err := env.client.FetchLocations(env.ctx)
	if err != nil {
		t.Fatalf("fetch locations: %v", err)
	}
	if len(locations) != 1 || locations[0].RemoteID != 4 {
		t.Fatalf("records without an id must be dropped, got %+v", locations)
	}
}

func TestClientFetchSuppliersSendsTerm(t *testing.T) {
	env := newPurchaseTestEnv(t)
	if _, err := env.client.FetchSuppliers(env.ctx, "acme"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	env.fake.mu.Lock()
	term := env.fake.lastQuery.Get("term")
	env.fake.mu.Unlock()
	if term != "acme" {
		t.Fatalf("expected the search term on the wire, got %q", term)
	}
}

func TestClientGetPurchaseUnwrapsEnvelope(t *testing.T) {
	env := newPurchaseTestEnv(t)
	env.fake.setGetBody(9, `{"data":{"id":9,"ref_no":"PO-9","contact_id":"7"}}`)

	rp, err := env.client.GetPurchase(env.ctx, 9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rp.ID != 9 || rp.RefNo != "PO-9" || rp.ContactID != 7 {
		t.Fatalf("unexpected record: %+v", rp)
	}
}

func TestClientReportsNetworkFailure(t *testing.T) {
	env := newPurchaseTestEnv(t)
	env.server.Close()

	_, err := env.client.ListPurchases(env.ctx, ListFilter{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Retries != 1 {
		t.Fatalf("reads report their attempt count, got %v", err)
	}
}
