package procurement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// ApprovalStatus is the approval state of a goods receipt.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "PENDING"
	StatusApproved ApprovalStatus = "APPROVED"
	StatusRejected ApprovalStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// PaymentMode enumerates how the supplier invoice is settled.
type PaymentMode string

const (
	PaymentCash       PaymentMode = "CASH"
	PaymentCard       PaymentMode = "CARD"
	PaymentUPI        PaymentMode = "UPI"
	PaymentCheque     PaymentMode = "CHEQUE"
	PaymentNetBanking PaymentMode = "NETBANKING"
	PaymentCredit     PaymentMode = "CREDIT"
)

// Valid reports whether the mode is recognised.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentUPI, PaymentCheque, PaymentNetBanking, PaymentCredit:
		return true
	}
	return false
}

// PaymentStatus tracks settlement of the supplier invoice.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentOverdue   PaymentStatus = "OVERDUE"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// PurchaseEntry is a goods receipt note header.
type PurchaseEntry struct {
	ID              int64
	GRNNumber       string
	SupplierID      int64
	PurchaseOrderID int64
	InvoiceNumber   string
	InvoiceDate     time.Time
	ReceivedDate    time.Time
	PaymentMode     PaymentMode
	PaymentStatus   PaymentStatus
	Status          ApprovalStatus
	CreatedBy       int64
	ApprovedBy      int64
	ApprovedAt      *time.Time
	Remarks         string
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Notes           string
	CreatedAt       time.Time
}

// PurchaseItem is one received line. Derived fields are always computed server side.
type PurchaseItem struct {
	ID              int64
	GRNID           int64
	MedicationID    int64
	BatchNumber     string
	ExpiryDate      time.Time
	PackQuantity    int64
	UnitsPerPack    int64
	PricePerPack    decimal.Decimal
	PricePerUnit    decimal.Decimal
	TotalUnits      int64
	TotalValue      decimal.Decimal
	Quantity        int64
	FreeQuantity    int64
	Packing         string
	MRP             decimal.Decimal
	PurchasePrice   decimal.Decimal
	PTR             decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	CGSTPercent     decimal.Decimal
	SGSTPercent     decimal.Decimal
	IGSTPercent     decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	MarginPercent   decimal.Decimal
	StockID         int64
}

// Totals aggregates header money fields from items.
type Totals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	GrandTotal     decimal.Decimal
}

// SumItems computes header totals. GrandTotal is the sum of packing total values.
func SumItems(items []PurchaseItem) Totals {
	var t Totals
	for _, item := range items {
		t.Subtotal = t.Subtotal.Add(item.PurchasePrice.Mul(decimal.NewFromInt(item.Quantity)))
		t.DiscountAmount = t.DiscountAmount.Add(item.DiscountAmount)
		t.TaxAmount = t.TaxAmount.Add(item.TaxAmount)
		t.TotalAmount = t.TotalAmount.Add(item.TotalAmount)
		t.GrandTotal = t.GrandTotal.Add(item.TotalValue)
	}
	t.Subtotal = t.Subtotal.Round(moneyScale)
	return t
}

// EntryDetail is the read projection of a GRN with related names and items.
type EntryDetail struct {
	PurchaseEntry
	SupplierName  string
	PONumber      string
	CreatedByName string
	ApprovedName  string
	Items         []ItemDetail
	// Approvals is filled for single-GRN reads only.
	Approvals     []shared.ApprovalLog
}

// ItemDetail is a purchase item joined with its medication name.
type ItemDetail struct {
	PurchaseItem
	MedicationName string
}

// ListFilters narrows GRN listings.
type ListFilters struct {
	Status     string
	SupplierID int64
	Search     string
	SortBy     string
	SortDir    string
}

// ListItem is one GRN row in listings.
type ListItem struct {
	ID            int64
	GRNNumber     string
	SupplierID    int64
	SupplierName  string
	InvoiceNumber string
	ReceivedDate  time.Time
	Status        ApprovalStatus
	PaymentStatus PaymentStatus
	ItemCount     int
	TotalAmount   decimal.Decimal
	CreatedAt     time.Time
}

// POReceipt reports the receipt progress of a purchase order.
type POReceipt struct {
	PurchaseOrderID int64
	ReceivedAmount  decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          string
}

// Purchase order receipt states.
const (
	POStatusApproved  = "APPROVED"
	POStatusPartial   = "PARTIAL"
	POStatusCompleted = "COMPLETED"
)

// ReceiptStatus derives the PO status from received versus ordered amount.
// A PO whose receipts were all rejected drops back to APPROVED; any other
// status (CANCELLED, DRAFT) is left alone when nothing was received.
func ReceiptStatus(received, total decimal.Decimal, current string) string {
	switch {
	case total.IsPositive() && received.GreaterThanOrEqual(total):
		return POStatusCompleted
	case received.IsPositive():
		return POStatusPartial
	case current == POStatusPartial || current == POStatusCompleted:
		return POStatusApproved
	default:
		return current
	}
}
