package procurement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/masterdata"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/packing"
)

const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// ItemInput is one submitted line. Packing fields are pointers so absence is detectable.
type ItemInput struct {
	MedicationID    int64
	BatchNumber     string
	ExpiryDate      time.Time
	PackQuantity    *int64
	UnitsPerPack    *int64
	PricePerPack    *decimal.Decimal
	FreeQuantity    int64
	MRP             decimal.Decimal
	PurchasePrice   *decimal.Decimal
	PTR             decimal.Decimal
	DiscountPercent decimal.Decimal
	CGSTPercent     decimal.Decimal
	SGSTPercent     decimal.Decimal
	IGSTPercent     decimal.Decimal
}

// MedicationLookup resolves medications referenced by items.
type MedicationLookup interface {
	GetMedication(ctx context.Context, id int64) (masterdata.Medication, error)
}

// ItemBuilder validates and derives purchase items. It never persists.
type ItemBuilder struct {
	medications MedicationLookup
	clock       func() time.Time
}

// NewItemBuilder constructs an ItemBuilder. clock defaults to time.Now.
func NewItemBuilder(medications MedicationLookup, clock func() time.Time) *ItemBuilder {
	if clock == nil {
		clock = time.Now
	}
	return &ItemBuilder{medications: medications, clock: clock}
}

// Build validates in and returns the fully derived item. Validation errors are
// *FieldError; a failed medication lookup is returned as ErrPersistence.
func (b *ItemBuilder) Build(ctx context.Context, in ItemInput) (PurchaseItem, error) {
	if in.MedicationID <= 0 {
		return PurchaseItem{}, fieldErrf("medication_id", ErrInvalidRequest, "must be positive")
	}
	if b.medications != nil {
		if _, err := b.medications.GetMedication(ctx, in.MedicationID); err != nil {
			if errors.Is(err, masterdata.ErrNotFound) {
				return PurchaseItem{}, fieldErrf("medication_id", ErrNotFound, "medication %d", in.MedicationID)
			}
			return PurchaseItem{}, persistence("lookup medication", err)
		}
	}
	batch := strings.TrimSpace(in.BatchNumber)
	if batch == "" {
		return PurchaseItem{}, fieldErrf("batch_number", ErrInvalidRequest, "required")
	}
	if in.ExpiryDate.IsZero() {
		return PurchaseItem{}, fieldErrf("expiry_date", ErrInvalidRequest, "required")
	}
	expiry := dateOnly(in.ExpiryDate)
	if expiry.Before(dateOnly(b.clock())) {
		return PurchaseItem{}, fieldErrf("expiry_date", ErrInvalidRequest, "already expired")
	}

	switch {
	case in.PackQuantity == nil:
		return PurchaseItem{}, fieldErr("pack_quantity", &MissingPackingField{Field: "pack_quantity"})
	case in.UnitsPerPack == nil:
		return PurchaseItem{}, fieldErr("units_per_pack", &MissingPackingField{Field: "units_per_pack"})
	case in.PricePerPack == nil:
		return PurchaseItem{}, fieldErr("price_per_pack", &MissingPackingField{Field: "price_per_pack"})
	}
	derived, err := packing.Derive(*in.PackQuantity, *in.UnitsPerPack, *in.PricePerPack)
	if err != nil {
		return PurchaseItem{}, fieldErr(packingField(in), err)
	}
	if derived.TotalUnits <= 0 {
		return PurchaseItem{}, fieldErrf("units_per_pack", ErrInvalidPacking, "total units must be positive")
	}

	if in.FreeQuantity < 0 {
		return PurchaseItem{}, fieldErrf("free_quantity", ErrInvalidRequest, "must not be negative")
	}
	for _, pct := range []struct {
		field string
		value decimal.Decimal
	}{
		{"discount_percent", in.DiscountPercent},
		{"cgst_percent", in.CGSTPercent},
		{"sgst_percent", in.SGSTPercent},
		{"igst_percent", in.IGSTPercent},
	} {
		if pct.value.IsNegative() || pct.value.GreaterThan(hundred) {
			return PurchaseItem{}, fieldErrf(pct.field, ErrInvalidRequest, "must be between 0 and 100")
		}
	}
	if in.MRP.IsNegative() {
		return PurchaseItem{}, fieldErrf("mrp", ErrInvalidRequest, "must not be negative")
	}
	if in.PTR.IsNegative() {
		return PurchaseItem{}, fieldErrf("ptr", ErrInvalidRequest, "must not be negative")
	}
	purchasePrice := derived.PricePerUnit
	if in.PurchasePrice != nil {
		if !in.PurchasePrice.IsPositive() {
			return PurchaseItem{}, fieldErrf("purchase_price", ErrInvalidRequest, "must be positive")
		}
		purchasePrice = *in.PurchasePrice
	}
	if in.MRP.IsPositive() && purchasePrice.GreaterThan(in.MRP) {
		return PurchaseItem{}, fieldErrf("purchase_price", ErrInvalidRequest, "exceeds mrp %s", in.MRP.String())
	}

	item := PurchaseItem{
		MedicationID:    in.MedicationID,
		BatchNumber:     batch,
		ExpiryDate:      expiry,
		PackQuantity:    *in.PackQuantity,
		UnitsPerPack:    *in.UnitsPerPack,
		PricePerPack:    *in.PricePerPack,
		PricePerUnit:    derived.PricePerUnit,
		TotalUnits:      derived.TotalUnits,
		TotalValue:      derived.TotalValue,
		Quantity:        derived.TotalUnits,
		FreeQuantity:    in.FreeQuantity,
		Packing:         packing.Description(*in.PackQuantity, *in.UnitsPerPack),
		MRP:             in.MRP,
		PurchasePrice:   purchasePrice,
		PTR:             in.PTR,
		DiscountPercent: in.DiscountPercent,
		CGSTPercent:     in.CGSTPercent,
		SGSTPercent:     in.SGSTPercent,
		IGSTPercent:     in.IGSTPercent,
	}
	applyCharges(&item)
	return item, nil
}

// applyCharges derives discount, tax, line total and margin.
func applyCharges(item *PurchaseItem) {
	base := item.PurchasePrice.Mul(decimal.NewFromInt(item.Quantity))
	discount := base.Mul(item.DiscountPercent).Div(hundred)
	taxable := base.Sub(discount)
	taxRate := item.CGSTPercent.Add(item.SGSTPercent).Add(item.IGSTPercent)
	tax := taxable.Mul(taxRate).Div(hundred)

	item.DiscountAmount = discount.Round(moneyScale)
	item.TaxAmount = tax.Round(moneyScale)
	item.TotalAmount = taxable.Add(tax).Round(moneyScale)
	item.MarginPercent = decimal.Zero
	if item.MRP.IsPositive() {
		item.MarginPercent = item.MRP.Sub(item.PurchasePrice).Div(item.MRP).Mul(hundred).Round(moneyScale)
	}
}

func packingField(in ItemInput) string {
	switch {
	case *in.PackQuantity <= 0:
		return "pack_quantity"
	case *in.UnitsPerPack <= 0:
		return "units_per_pack"
	case !in.PricePerPack.IsPositive():
		return "price_per_pack"
	default:
		return "units_per_pack"
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
