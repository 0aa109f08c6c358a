package purchase

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a purchase order.
type Status string

const (
	StatusOrdered   Status = "ordered"
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusOrdered, StatusPending, StatusPartial, StatusReceived, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown purchase status %q", s)
	}
	return st, nil
}

// DiscountType selects how a discount amount is interpreted.
type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// Purchase is a locally stored purchase-order header.
//
// LocalID is assigned at creation and never reused. RemoteID stays nil until
// the first successful sync and is written at most once after that; a local
// edit flips Synced back to false but keeps RemoteID, so the next sync run
// issues an update instead of a create.
type Purchase struct {
	LocalID         string
	RemoteID        *int64
	SupplierID      int64
	LocationID      int64
	RefNo           string
	Status          Status
	TransactionDate time.Time
	TotalBeforeTax  decimal.Decimal
	DiscountType    DiscountType
	DiscountAmount  decimal.Decimal
	TaxID           *int64
	TaxAmount       decimal.Decimal
	ShippingCharges decimal.Decimal
	ShippingDetails string
	FinalTotal      decimal.Decimal
	AdditionalNotes string
	Synced          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPurchase builds an unsynced header with a fresh local ID.
func NewPurchase(supplierID, locationID int64, status Status, txDate time.Time) Purchase {
	now := time.Now().UTC()
	return Purchase{
		LocalID:         ulid.Make().String(),
		SupplierID:      supplierID,
		LocationID:      locationID,
		Status:          status,
		TransactionDate: txDate,
		DiscountType:    DiscountFixed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// PurchaseLine is a product row owned by exactly one header. Deleting the
// header removes its lines.
type PurchaseLine struct {
	LocalID         string
	PurchaseLocalID string
	ProductID       int64
	VariationID     int64
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	DiscountType    DiscountType
	DiscountAmount  decimal.Decimal
	TaxID           *int64
	TaxAmount       decimal.Decimal
	LotNumber       string
	MfgDate         *time.Time
	ExpDate         *time.Time
	OrderLineID     *int64 // originating order line, provenance only
}

// NewLine builds a line row with a fresh local ID.
func NewLine(productID, variationID int64, qty, unitPrice decimal.Decimal) PurchaseLine {
	return PurchaseLine{
		LocalID:     ulid.Make().String(),
		ProductID:   productID,
		VariationID: variationID,
		Quantity:    qty,
		UnitPrice:   unitPrice,
	}
}

// PurchasePayment is a payment row owned by one header. RemoteID is assigned
// by the service on sync, mirroring the header pattern.
type PurchasePayment struct {
	LocalID         string
	PurchaseLocalID string
	RemoteID        *int64
	Amount          decimal.Decimal
	Method          string
	PaidOn          time.Time
	AccountID       *int64
	Note            string
}

// NewPayment builds a payment row with a fresh local ID.
func NewPayment(amount decimal.Decimal, method string, paidOn time.Time) PurchasePayment {
	return PurchasePayment{
		LocalID: ulid.Make().String(),
		Amount:  amount,
		Method:  method,
		PaidOn:  paidOn,
	}
}

// Supplier is a cached snapshot of a remote supplier record. Doc keeps the
// payload exactly as fetched.
type Supplier struct {
	RemoteID     int64
	Name         string
	BusinessName string
	Mobile       string
	Doc          []byte
}

// Product is a cached snapshot of a purchasable product.
type Product struct {
	RemoteID int64
	Name     string
	SKU      string
	Type     string
	Doc      []byte
}

// Location is a cached snapshot of a business location.
type Location struct {
	RemoteID int64
	Name     string
	Doc      []byte
}
