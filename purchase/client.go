package purchase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client talks to the remote purchase service. Every request carries the
// bearer credential and JSON content headers; responses are classified into
// the package's error taxonomy before callers see them.
type Client struct {
	cfg     ClientConfig
	hc      *http.Client
	limiter *rate.Limiter
}

// NewClient builds a client with optional timeout override.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Token == nil {
		cfg.Token = StaticToken("")
	}
	to := cfg.Timeout
	if to == 0 {
		to = 15 * time.Second
	}
	rl := cfg.RateLimit
	if rl.Interval <= 0 {
		rl = DefaultRateLimitConfig()
	}
	if rl.Burst <= 0 {
		rl.Burst = 1
	}
	return &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: to},
		limiter: rate.NewLimiter(rate.Every(rl.Interval), rl.Burst),
	}
}

// SubmitResult is the outcome of a create or update call.
type SubmitResult struct {
	RemoteID int64
	Payments []RemotePayment // remote-confirmed payment rows when present
}

// purchasePayload is the request body for create and update calls. The
// service names the supplier "contact_id" on the wire and takes the line
// rows as an embedded "purchases" array.
type purchasePayload struct {
	ContactID       int64            `json:"contact_id"`
	LocationID      int64            `json:"location_id"`
	RefNo           string           `json:"ref_no,omitempty"`
	Status          Status           `json:"status"`
	TransactionDate string           `json:"transaction_date"`
	TotalBeforeTax  decimal.Decimal  `json:"total_before_tax"`
	DiscountType    DiscountType     `json:"discount_type"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	TaxID           *int64           `json:"tax_id"`
	TaxAmount       decimal.Decimal  `json:"tax_amount"`
	ShippingCharges decimal.Decimal  `json:"shipping_charges"`
	ShippingDetails string           `json:"shipping_details,omitempty"`
	FinalTotal      decimal.Decimal  `json:"final_total"`
	AdditionalNotes string           `json:"additional_notes,omitempty"`
	Lines           []linePayload    `json:"purchases"`
	Payments        []paymentPayload `json:"payments,omitempty"`
}

type linePayload struct {
	ProductID      int64           `json:"product_id"`
	VariationID    int64           `json:"variation_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	DiscountType   DiscountType    `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxID          *int64          `json:"tax_id"`
	TaxAmount      decimal.Decimal `json:"item_tax"`
	LotNumber      string          `json:"lot_number,omitempty"`
	MfgDate        string          `json:"mfg_date,omitempty"`
	ExpDate        string          `json:"exp_date,omitempty"`
	OrderLineID    *int64          `json:"purchase_order_line_id,omitempty"`
}

type paymentPayload struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidOn    string          `json:"paid_on"`
	AccountID *int64          `json:"account_id,omitempty"`
	Note      string          `json:"note,omitempty"`
}

func buildPurchasePayload(p Purchase, lines []PurchaseLine, payments []PurchasePayment) purchasePayload {
	out := purchasePayload{
		ContactID:       p.SupplierID,
		LocationID:      p.LocationID,
		RefNo:           p.RefNo,
		Status:          p.Status,
		TransactionDate: p.TransactionDate.Format(remoteTimeFormat),
		TotalBeforeTax:  p.TotalBeforeTax,
		DiscountType:    p.DiscountType,
		DiscountAmount:  p.DiscountAmount,
		TaxID:           p.TaxID,
		TaxAmount:       p.TaxAmount,
		ShippingCharges: p.ShippingCharges,
		ShippingDetails: p.ShippingDetails,
		FinalTotal:      p.FinalTotal,
		AdditionalNotes: p.AdditionalNotes,
		Lines:           make([]linePayload, 0, len(lines)),
	}
	for _, ln := range lines {
		out.Lines = append(out.Lines, linePayload{
			ProductID:      ln.ProductID,
			VariationID:    ln.VariationID,
			Quantity:       ln.Quantity,
			PurchasePrice:  ln.UnitPrice,
			DiscountType:   ln.DiscountType,
			DiscountAmount: ln.DiscountAmount,
			TaxID:          ln.TaxID,
			TaxAmount:      ln.TaxAmount,
			LotNumber:      ln.LotNumber,
			MfgDate:        formatRemoteDate(ln.MfgDate),
			ExpDate:        formatRemoteDate(ln.ExpDate),
			OrderLineID:    ln.OrderLineID,
		})
	}
	for _, pay := range payments {
		out.Payments = append(out.Payments, paymentPayload{
			Amount:    pay.Amount,
			Method:    pay.Method,
			PaidOn:    pay.PaidOn.Format(remoteTimeFormat),
			AccountID: pay.AccountID,
			Note:      pay.Note,
		})
	}
	return out
}

func formatRemoteDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// do issues one request and returns the raw body of a 2xx response. Every
// failure comes back classified.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}

	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	tok, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrUnauthorized, Detail: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.cfg.DeviceID)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrNetwork, Detail: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Op: op, Err: ErrNetwork, Detail: err.Error()}
	}
	if err := classifyStatus(op, resp.StatusCode, data); err != nil {
		return nil, err
	}
	return data, nil
}

// classifyStatus maps one HTTP status to the error taxonomy. All remote
// status classification funnels through here.
func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &APIError{Op: op, Status: status, Err: ErrUnauthorized, Detail: bodyDetail(body)}
	case status == http.StatusUnprocessableEntity:
		msg, fields := parseValidationBody(body)
		return &ValidationError{Op: op, Message: msg, Fields: fields}
	case status == http.StatusNotFound:
		return &APIError{Op: op, Status: status, Err: ErrNotFound, Detail: bodyDetail(body)}
	case status >= 500:
		return &APIError{Op: op, Status: status, Err: ErrServer, Detail: bodyDetail(body)}
	default:
		return &APIError{Op: op, Status: status, Err: ErrServer, Detail: bodyDetail(body)}
	}
}

func parseValidationBody(body []byte) (string, map[string][]string) {
	var payload struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return bodyDetail(body), nil
	}
	return payload.Message, payload.Errors
}

// bodyDetail extracts a short human-readable message from an error body.
func bodyDetail(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// CreatePurchase submits a new purchase with its lines and any staged
// payments. The response must carry the assigned identifier; a success
// without one is a malformed response and the caller must not mark the
// record synced. Not retried in-run: a create is not idempotent.
func (c *Client) CreatePurchase(ctx context.Context, p Purchase, lines []PurchaseLine, payments []PurchasePayment) (SubmitResult, error) {
	const op = "create purchase"
	data, err := c.do(ctx, op, http.MethodPost, "/purchase", nil, buildPurchasePayload(p, lines, payments))
	if err != nil {
		return SubmitResult{}, err
	}
	id, ok := extractRemoteID(data)
	if !ok {
		return SubmitResult{}, &APIError{Op: op, Err: ErrMalformedResponse, Detail: "no purchase identifier in response"}
	}
	return SubmitResult{RemoteID: id, Payments: extractPaymentLines(data)}, nil
}

// UpdatePurchase rewrites an already-known purchase. The identifier is
// already assigned, so a response without one is still a success.
func (c *Client) UpdatePurchase(ctx context.Context, remoteID int64, p Purchase, lines []PurchaseLine, payments []PurchasePayment) (SubmitResult, error) {
	const op = "update purchase"
	data, err := c.do(ctx, op, http.MethodPut, "/purchase/"+strconv.FormatInt(remoteID, 10), nil, buildPurchasePayload(p, lines, payments))
	if err != nil {
		return SubmitResult{}, err
	}
	res := SubmitResult{RemoteID: remoteID, Payments: extractPaymentLines(data)}
	if id, ok := extractRemoteID(data); ok {
		res.RemoteID = id
	}
	return res, nil
}

// DeletePurchase removes a purchase on the service.
func (c *Client) DeletePurchase(ctx context.Context, remoteID int64) error {
	_, err := c.do(ctx, "delete purchase", http.MethodDelete, "/purchase/"+strconv.FormatInt(remoteID, 10), nil, nil)
	return err
}

// UpdatePurchaseStatus sets the lifecycle status of a synced purchase.
func (c *Client) UpdatePurchaseStatus(ctx context.Context, remoteID int64, status Status) error {
	body := map[string]string{"status": string(status)}
	_, err := c.do(ctx, "update status", http.MethodPost, "/purchase/"+strconv.FormatInt(remoteID, 10)+"/status", nil, body)
	return err
}

// ListFilter narrows a purchase list request. Zero values mean "any".
type ListFilter struct {
	SupplierID    int64
	Status        Status
	PaymentStatus string
	RefNo         string
	StartDate     time.Time
	EndDate       time.Time
	Page          int
	PerPage       int
}

func (f ListFilter) query() url.Values {
	q := url.Values{}
	if f.SupplierID != 0 {
		q.Set("supplier_id", strconv.FormatInt(f.SupplierID, 10))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.PaymentStatus != "" {
		q.Set("payment_status", f.PaymentStatus)
	}
	if f.RefNo != "" {
		q.Set("ref_no", f.RefNo)
	}
	if !f.StartDate.IsZero() {
		q.Set("start_date", f.StartDate.Format("2006-01-02"))
	}
	if !f.EndDate.IsZero() {
		q.Set("end_date", f.EndDate.Format("2006-01-02"))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return q
}

// unfiltered reports whether the filter narrows the result set at all.
// Paging does not count.
func (f ListFilter) unfiltered() bool {
	return f.SupplierID == 0 && f.Status == "" && f.PaymentStatus == "" &&
		f.RefNo == "" && f.StartDate.IsZero() && f.EndDate.IsZero()
}

// ListPurchases fetches one page of purchases. Transient failures are
// retried; the read is idempotent.
func (c *Client) ListPurchases(ctx context.Context, f ListFilter) (PurchasePage, error) {
	const op = "list purchases"
	return WithRetry(ctx, c.cfg.GetRetryConfig(), op, func() (PurchasePage, error) {
		data, err := c.do(ctx, op, http.MethodGet, "/purchase", f.query(), nil)
		if err != nil {
			return PurchasePage{}, err
		}
		page, err := decodePurchasePage(data)
		if err != nil {
			return PurchasePage{}, &APIError{Op: op, Err: ErrMalformedResponse, Detail: err.Error()}
		}
		return page, nil
	})
}

// GetPurchase fetches one purchase by remote id.
func (c *Client) GetPurchase(ctx context.Context, remoteID int64) (RemotePurchase, error) {
	const op = "get purchase"
	return WithRetry(ctx, c.cfg.GetRetryConfig(), op, func() (RemotePurchase, error) {
		data, err := c.do(ctx, op, http.MethodGet, "/purchase/"+strconv.FormatInt(remoteID, 10), nil, nil)
		if err != nil {
			return RemotePurchase{}, err
		}
		rp, err := decodePurchase(data)
		if err != nil {
			return RemotePurchase{}, &APIError{Op: op, Err: ErrMalformedResponse, Detail: err.Error()}
		}
		return rp, nil
	})
}

// FetchSuppliers returns supplier reference records, optionally narrowed by a
// search term. Records without a usable id are dropped; they could never be
// referenced.
func (c *Client) FetchSuppliers(ctx context.Context, term string) ([]Supplier, error) {
	const op = "fetch suppliers"
	return WithRetry(ctx, c.cfg.GetRetryConfig(), op, func() ([]Supplier, error) {
		q := url.Values{}
		if term != "" {
			q.Set("term", term)
		}
		data, err := c.do(ctx, op, http.MethodGet, "/purchase/suppliers", q, nil)
		if err != nil {
			return nil, err
		}
		docs, err := decodeRefList(data)
		if err != nil {
			return nil, &APIError{Op: op, Err: ErrMalformedResponse, Detail: err.Error()}
		}
		out := make([]Supplier, 0, len(docs))
		for _, doc := range docs {
			rec := supplierFrom(doc)
			if rec.RemoteID == 0 {
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

// FetchProducts returns purchasable product reference records, optionally
// narrowed by a search term.
func (c *Client) FetchProducts(ctx context.Context, term string) ([]Product, error) {
	const op = "fetch products"
	return WithRetry(ctx, c.cfg.GetRetryConfig(), op, func() ([]Product, error) {
		q := url.Values{}
		if term != "" {
			q.Set("term", term)
		}
		data, err := c.do(ctx, op, http.MethodGet, "/purchase/products", q, nil)
		if err != nil {
			return nil, err
		}
		docs, err := decodeRefList(data)
		if err != nil {
			return nil, &APIError{Op: op, Err: ErrMalformedResponse, Detail: err.Error()}
		}
		out := make([]Product, 0, len(docs))
		for _, doc := range docs {
			rec := productFrom(doc)
			if rec.RemoteID == 0 {
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

// FetchLocations returns every business location.
func (c *Client) FetchLocations(ctx context.Context) ([]Location, error) {
	const op = "fetch locations"
	return WithRetry(ctx, c.cfg.GetRetryConfig(), op, func() ([]Location, error) {
		data, err := c.do(ctx, op, http.MethodGet, "/business-location", nil, nil)
		if err != nil {
			return nil, err
		}
		docs, err := decodeRefList(data)
		if err != nil {
			return nil, &APIError{Op: op, Err: ErrMalformedResponse, Detail: err.Error()}
		}
		out := make([]Location, 0, len(docs))
		for _, doc := range docs {
			rec := locationFrom(doc)
			if rec.RemoteID == 0 {
				continue
			}
			out = append(out, rec)
		}
		return out, nil
	})
}
