package masterdata

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the referenced master record does not exist.
var ErrNotFound = errors.New("masterdata: not found")

// Supplier is a vendor delivering stock.
type Supplier struct {
	ID       int64
	Code     string
	Name     string
	GSTIN    string
	IsActive bool
}

// Medication is a stock-keeping item.
type Medication struct {
	ID          int64
	Name        string
	GenericName string
	HSNCode     string
	IsActive    bool
}

// PurchaseOrder is the commercial document a GRN may be received against.
type PurchaseOrder struct {
	ID             int64
	Number         string
	SupplierID     int64
	Status         string
	TotalAmount    decimal.Decimal
	ReceivedAmount decimal.Decimal
}
