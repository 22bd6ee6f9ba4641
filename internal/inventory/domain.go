package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FreeQuantityPolicy decides whether free units join on-hand stock.
type FreeQuantityPolicy string

const (
	// FreeQuantityInclude adds free units to on-hand stock at zero cost.
	FreeQuantityInclude FreeQuantityPolicy = "include"
	// FreeQuantitySeparate tracks free units only in the free_quantity column.
	FreeQuantitySeparate FreeQuantityPolicy = "separate"
)

// ParseFreeQuantityPolicy validates a configured policy value.
func ParseFreeQuantityPolicy(raw string) (FreeQuantityPolicy, error) {
	switch p := FreeQuantityPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return FreeQuantityInclude, nil
	case FreeQuantityInclude, FreeQuantitySeparate:
		return p, nil
	default:
		return "", fmt.Errorf("inventory: unknown free quantity policy %q", raw)
	}
}

// StockKey identifies one stock record.
type StockKey struct {
	MedicationID int64
	BatchNumber  string
	ExpiryDate   time.Time
}

// Less orders keys so concurrent writers acquire locks in the same sequence.
func (k StockKey) Less(other StockKey) bool {
	if k.MedicationID != other.MedicationID {
		return k.MedicationID < other.MedicationID
	}
	if k.BatchNumber != other.BatchNumber {
		return k.BatchNumber < other.BatchNumber
	}
	return k.ExpiryDate.Before(other.ExpiryDate)
}

// StockRecord is the per-batch on-hand position of a medication.
type StockRecord struct {
	ID                 int64
	MedicationID       int64
	BatchNumber        string
	ExpiryDate         time.Time
	Quantity           int64
	ReceivedQuantity   int64
	FreeQuantity       int64
	PackQuantity       int64
	UnitsPerPack       int64
	PricePerPack       decimal.Decimal
	PricePerUnit       decimal.Decimal
	TotalValue         decimal.Decimal
	MRP                decimal.Decimal
	PTR                decimal.Decimal
	SupplierID         int64
	LastGRNID          int64
	LastPurchaseItemID int64
	UpdatedAt          time.Time
}

// Key returns the identity of the record.
func (s StockRecord) Key() StockKey {
	return StockKey{MedicationID: s.MedicationID, BatchNumber: s.BatchNumber, ExpiryDate: s.ExpiryDate}
}

// Movement is an append-only ledger row written for every synchronisation.
type Movement struct {
	ID             int64
	StockID        int64
	GRNID          int64
	PurchaseItemID int64
	QtyIn          int64
	FreeQtyIn      int64
	BalanceQty     int64
	UnitCost       decimal.Decimal
	BalanceValue   decimal.Decimal
	PostedAt       time.Time
}

// ReceiptLine is one persisted purchase item to fold into stock.
type ReceiptLine struct {
	MedicationID   int64
	BatchNumber    string
	ExpiryDate     time.Time
	Quantity       int64
	FreeQuantity   int64
	PackQuantity   int64
	UnitsPerPack   int64
	PricePerPack   decimal.Decimal
	PricePerUnit   decimal.Decimal
	TotalValue     decimal.Decimal
	MRP            decimal.Decimal
	PTR            decimal.Decimal
	SupplierID     int64
	GRNID          int64
	PurchaseItemID int64
}

// Key returns the stock identity targeted by the line.
func (l ReceiptLine) Key() StockKey {
	return StockKey{MedicationID: l.MedicationID, BatchNumber: l.BatchNumber, ExpiryDate: l.ExpiryDate}
}

// ErrStockNotFound indicates missing stock row.
var ErrStockNotFound = errors.New("inventory: stock record not found")

// ErrInvalidQuantity indicates a receipt line without units.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidKey indicates an incomplete stock key.
var ErrInvalidKey = errors.New("inventory: medication, batch and expiry required")
