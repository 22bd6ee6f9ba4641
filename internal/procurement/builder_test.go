package procurement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBuilder() *ItemBuilder {
	return NewItemBuilder(newMemoryMaster(), func() time.Time { return today })
}

func TestBuildDerivesChargesAndMargin(t *testing.T) {
	in := itemInput(10, "PCM-2401", 10, 10, "100.00")
	in.MRP = dec("12.50")
	in.DiscountPercent = dec("10")
	in.CGSTPercent = dec("6")
	in.SGSTPercent = dec("6")

	item, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "10.0000", item.PurchasePrice.StringFixed(4))
	require.EqualValues(t, 100, item.Quantity)
	require.Equal(t, "100.00", item.DiscountAmount.StringFixed(2))
	require.Equal(t, "108.00", item.TaxAmount.StringFixed(2))
	require.Equal(t, "1008.00", item.TotalAmount.StringFixed(2))
	require.Equal(t, "20.00", item.MarginPercent.StringFixed(2))
	require.Equal(t, "1000.00", item.TotalValue.StringFixed(2))
}

func TestBuildUsesExplicitPurchasePrice(t *testing.T) {
	in := itemInput(10, "PCM-2401", 1, 10, "100.00")
	in.PurchasePrice = ptr(dec("9.5"))
	item, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "9.5000", item.PurchasePrice.StringFixed(4))
	require.Equal(t, "10.0000", item.PricePerUnit.StringFixed(4))
	require.Equal(t, "95.00", item.TotalAmount.StringFixed(2))
}

func TestBuildTrimsBatchAndNormalisesExpiry(t *testing.T) {
	in := itemInput(10, "  PCM-9 ", 1, 10, "10.00")
	in.ExpiryDate = expiry.Add(13 * time.Hour)
	item, err := newTestBuilder().Build(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "PCM-9", item.BatchNumber)
	require.Equal(t, expiry, item.ExpiryDate)
}

func TestBuildValidationFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ItemInput)
		field  string
		want   error
	}{
		{"unknown medication", func(in *ItemInput) { in.MedicationID = 404 }, "medication_id", ErrNotFound},
		{"missing medication", func(in *ItemInput) { in.MedicationID = 0 }, "medication_id", ErrInvalidRequest},
		{"missing expiry", func(in *ItemInput) { in.ExpiryDate = time.Time{} }, "expiry_date", ErrInvalidRequest},
		{"expired", func(in *ItemInput) { in.ExpiryDate = today.AddDate(0, 0, -1) }, "expiry_date", ErrInvalidRequest},
		{"missing pack quantity", func(in *ItemInput) { in.PackQuantity = nil }, "pack_quantity", ErrInvalidRequest},
		{"missing units per pack", func(in *ItemInput) { in.UnitsPerPack = nil }, "units_per_pack", ErrInvalidRequest},
		{"zero pack quantity", func(in *ItemInput) { in.PackQuantity = ptr(int64(0)) }, "pack_quantity", ErrInvalidPacking},
		{"negative price", func(in *ItemInput) { in.PricePerPack = ptr(dec("-1")) }, "price_per_pack", ErrInvalidPacking},
		{"negative free quantity", func(in *ItemInput) { in.FreeQuantity = -1 }, "free_quantity", ErrInvalidRequest},
		{"discount over 100", func(in *ItemInput) { in.DiscountPercent = dec("100.01") }, "discount_percent", ErrInvalidRequest},
		{"negative igst", func(in *ItemInput) { in.IGSTPercent = dec("-5") }, "igst_percent", ErrInvalidRequest},
		{"purchase price above mrp", func(in *ItemInput) { in.MRP = dec("0.50") }, "purchase_price", ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := itemInput(10, "PCM-2401", 1, 10, "10.00")
			tc.mutate(&in)
			_, err := newTestBuilder().Build(context.Background(), in)
			require.ErrorIs(t, err, tc.want)
			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.field, fe.Field)
		})
	}
}

func TestBuildReportsLookupFailureAsPersistence(t *testing.T) {
	master := newMemoryMaster()
	master.lookupErr = errors.New("connection refused")
	_, err := NewItemBuilder(master, func() time.Time { return today }).Build(context.Background(), itemInput(10, "PCM-2401", 1, 10, "10.00"))
	require.ErrorIs(t, err, ErrPersistence)
	var fe *FieldError
	require.False(t, errors.As(err, &fe))
}
