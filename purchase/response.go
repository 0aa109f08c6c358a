package purchase

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// FlexID is a numeric identifier that may arrive as a JSON number or as a
// quoted numeric string. Zero means absent.
type FlexID int64

func (f *FlexID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = FlexID(n)
	return nil
}

// RemotePurchase is the service's representation of one purchase.
type RemotePurchase struct {
	ID              FlexID          `json:"id"`
	ContactID       FlexID          `json:"contact_id"`
	ContactName     string          `json:"contact_name"`
	LocationID      FlexID          `json:"location_id"`
	LocationName    string          `json:"location_name"`
	RefNo           string          `json:"ref_no"`
	Status          Status          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	TransactionDate string          `json:"transaction_date"`
	TotalBeforeTax  decimal.Decimal `json:"total_before_tax"`
	DiscountType    DiscountType    `json:"discount_type"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	TaxID           *FlexID         `json:"tax_id"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	ShippingCharges decimal.Decimal `json:"shipping_charges"`
	ShippingDetails string          `json:"shipping_details"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	AdditionalNotes string          `json:"additional_notes"`
	Lines           []RemoteLine    `json:"purchase_lines"`
	PaymentLines    []RemotePayment `json:"payment_lines"`
}

// RemoteKey implements RemoteKeyed for dedupe runs over remote pages.
func (p RemotePurchase) RemoteKey() int64 { return int64(p.ID) }

// RemoteLine is a line row inside a remote purchase.
type RemoteLine struct {
	ID             FlexID          `json:"id"`
	ProductID      FlexID          `json:"product_id"`
	VariationID    FlexID          `json:"variation_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	DiscountType   DiscountType    `json:"discount_type"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxID          *FlexID         `json:"tax_id"`
	TaxAmount      decimal.Decimal `json:"item_tax"`
	LotNumber      string          `json:"lot_number"`
	MfgDate        string          `json:"mfg_date"`
	ExpDate        string          `json:"exp_date"`
	OrderLineID    *FlexID         `json:"purchase_order_line_id"`
}

// RemotePayment is a payment row inside a remote purchase response.
type RemotePayment struct {
	ID        FlexID          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	PaidOn    string          `json:"paid_on"`
	AccountID *FlexID         `json:"account_id"`
	Note      string          `json:"note"`
}

// PurchasePage is one page of remote purchase list results.
type PurchasePage struct {
	Data        []RemotePurchase
	CurrentPage int
	LastPage    int
	PerPage     int
	Total       int
}

// decodePurchasePage accepts both envelope shapes the service is known to
// return: {"data":[...],"current_page":N,...} and the nested variant
// {"data":{"data":[...],"current_page":N,...}}.
func decodePurchasePage(body []byte) (PurchasePage, error) {
	var outer struct {
		Data        json.RawMessage `json:"data"`
		CurrentPage int             `json:"current_page"`
		LastPage    int             `json:"last_page"`
		PerPage     int             `json:"per_page"`
		Total       int             `json:"total"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return PurchasePage{}, err
	}
	raw := bytes.TrimSpace(outer.Data)
	if len(raw) > 0 && raw[0] == '{' {
		return decodePurchasePage(raw)
	}
	page := PurchasePage{
		CurrentPage: outer.CurrentPage,
		LastPage:    outer.LastPage,
		PerPage:     outer.PerPage,
		Total:       outer.Total,
	}
	if len(raw) == 0 || string(raw) == "null" {
		return page, nil
	}
	if err := json.Unmarshal(raw, &page.Data); err != nil {
		return PurchasePage{}, err
	}
	return page, nil
}

// decodePurchase parses a single-purchase response. The object may be bare,
// wrapped in a data envelope, or wrapped in a one-element data list.
func decodePurchase(body []byte) (RemotePurchase, error) {
	raw := bytes.TrimSpace(body)
	var outer struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &outer); err == nil {
		d := bytes.TrimSpace(outer.Data)
		switch {
		case len(d) > 0 && d[0] == '{':
			raw = d
		case len(d) > 0 && d[0] == '[':
			var list []json.RawMessage
			if err := json.Unmarshal(d, &list); err == nil && len(list) > 0 {
				raw = bytes.TrimSpace(list[0])
			}
		}
	}
	var rp RemotePurchase
	if err := json.Unmarshal(raw, &rp); err != nil {
		return RemotePurchase{}, err
	}
	if rp.ID == 0 {
		return RemotePurchase{}, errors.New("purchase payload missing id")
	}
	return rp, nil
}

// extractRemoteID pulls the authoritative purchase identifier out of a create
// or update response. Known shapes, tried in order: top-level "id", top-level
// "transaction_id", nested "data.id", nested "data.transaction_id". All
// identifier extraction funnels through here.
func extractRemoteID(body []byte) (int64, bool) {
	var top struct {
		ID            *FlexID         `json:"id"`
		TransactionID *FlexID         `json:"transaction_id"`
		Data          json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return 0, false
	}
	if top.ID != nil && *top.ID != 0 {
		return int64(*top.ID), true
	}
	if top.TransactionID != nil && *top.TransactionID != 0 {
		return int64(*top.TransactionID), true
	}
	raw := bytes.TrimSpace(top.Data)
	if len(raw) > 0 && raw[0] == '{' {
		var inner struct {
			ID            *FlexID `json:"id"`
			TransactionID *FlexID `json:"transaction_id"`
		}
		if err := json.Unmarshal(raw, &inner); err == nil {
			if inner.ID != nil && *inner.ID != 0 {
				return int64(*inner.ID), true
			}
			if inner.TransactionID != nil && *inner.TransactionID != 0 {
				return int64(*inner.TransactionID), true
			}
		}
	}
	return 0, false
}

// extractPaymentLines returns the remote-confirmed payment rows of a create
// or update response, from the top level or the data envelope.
func extractPaymentLines(body []byte) []RemotePayment {
	var top struct {
		PaymentLines []RemotePayment `json:"payment_lines"`
		Data         json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil
	}
	if len(top.PaymentLines) > 0 {
		return top.PaymentLines
	}
	raw := bytes.TrimSpace(top.Data)
	if len(raw) > 0 && raw[0] == '{' {
		var inner struct {
			PaymentLines []RemotePayment `json:"payment_lines"`
		}
		if err := json.Unmarshal(raw, &inner); err == nil && len(inner.PaymentLines) > 0 {
			return inner.PaymentLines
		}
	}
	return nil
}

// decodeRefList returns the record objects of a reference response, which is
// either a bare array or wrapped in a data envelope.
func decodeRefList(body []byte) ([]json.RawMessage, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) > 0 && raw[0] == '{' {
		var outer struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &outer); err != nil {
			return nil, err
		}
		raw = bytes.TrimSpace(outer.Data)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// remoteTimeFormat is the timestamp layout the service uses.
const remoteTimeFormat = "2006-01-02 15:04:05"

func parseRemoteTime(s string) time.Time {
	for _, layout := range []string{remoteTimeFormat, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseRemoteDatePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseRemoteTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func idPtr(f *FlexID) *int64 {
	if f == nil || *f == 0 {
		return nil
	}
	v := int64(*f)
	return &v
}

// PurchaseFromRemote converts a fetched remote purchase into a local header
// marked synced, minting a fresh local ID.
func PurchaseFromRemote(rp RemotePurchase) Purchase {
	id := int64(rp.ID)
	now := time.Now().UTC()
	return Purchase{
		LocalID:         ulid.Make().String(),
		RemoteID:        &id,
		SupplierID:      int64(rp.ContactID),
		LocationID:      int64(rp.LocationID),
		RefNo:           rp.RefNo,
		Status:          rp.Status,
		TransactionDate: parseRemoteTime(rp.TransactionDate),
		TotalBeforeTax:  rp.TotalBeforeTax,
		DiscountType:    rp.DiscountType,
		DiscountAmount:  rp.DiscountAmount,
		TaxID:           idPtr(rp.TaxID),
		TaxAmount:       rp.TaxAmount,
		ShippingCharges: rp.ShippingCharges,
		ShippingDetails: rp.ShippingDetails,
		FinalTotal:      rp.FinalTotal,
		AdditionalNotes: rp.AdditionalNotes,
		Synced:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// LineFromRemote converts a remote line row to its local form.
func LineFromRemote(rl RemoteLine) PurchaseLine {
	return PurchaseLine{
		ProductID:      int64(rl.ProductID),
		VariationID:    int64(rl.VariationID),
		Quantity:       rl.Quantity,
		UnitPrice:      rl.PurchasePrice,
		DiscountType:   rl.DiscountType,
		DiscountAmount: rl.DiscountAmount,
		TaxID:          idPtr(rl.TaxID),
		TaxAmount:      rl.TaxAmount,
		LotNumber:      rl.LotNumber,
		MfgDate:        parseRemoteDatePtr(rl.MfgDate),
		ExpDate:        parseRemoteDatePtr(rl.ExpDate),
		OrderLineID:    idPtr(rl.OrderLineID),
	}
}

// PaymentFromRemote converts a remote-confirmed payment row to its local
// form, carrying the remote payment identifier.
func PaymentFromRemote(rp RemotePayment) PurchasePayment {
	return PurchasePayment{
		RemoteID:  idPtr(&rp.ID),
		Amount:    rp.Amount,
		Method:    rp.Method,
		PaidOn:    parseRemoteTime(rp.PaidOn),
		AccountID: idPtr(rp.AccountID),
		Note:      rp.Note,
	}
}

func supplierFrom(doc json.RawMessage) Supplier {
	var rec struct {
		ID           FlexID `json:"id"`
		Name         string `json:"name"`
		BusinessName string `json:"supplier_business_name"`
		Mobile       string `json:"mobile"`
		Text         string `json:"text"`
	}
	_ = json.Unmarshal(doc, &rec)
	name := rec.Name
	if name == "" {
		name = rec.Text
	}
	return Supplier{
		RemoteID:     int64(rec.ID),
		Name:         name,
		BusinessName: rec.BusinessName,
		Mobile:       rec.Mobile,
		Doc:          doc,
	}
}

func productFrom(doc json.RawMessage) Product {
	var rec struct {
		ID   FlexID `json:"id"`
		Name string `json:"name"`
		SKU  string `json:"sku"`
		Type string `json:"type"`
		Text string `json:"text"`
	}
	_ = json.Unmarshal(doc, &rec)
	name := rec.Name
	if name == "" {
		name = rec.Text
	}
	return Product{
		RemoteID: int64(rec.ID),
		Name:     name,
		SKU:      rec.SKU,
		Type:     rec.Type,
		Doc:      doc,
	}
}

func locationFrom(doc json.RawMessage) Location {
	var rec struct {
		ID   FlexID `json:"id"`
		Name string `json:"name"`
	}
	_ = json.Unmarshal(doc, &rec)
	return Location{
		RemoteID: int64(rec.ID),
		Name:     rec.Name,
		Doc:      doc,
	}
}
