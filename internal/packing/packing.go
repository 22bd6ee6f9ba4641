// Package packing converts pack-based purchase quantities into per-unit stock figures.
package packing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of decimal places kept for per-unit prices.
const PriceScale = 4

// ErrInvalidPacking indicates a non-positive or overflowing packing triple.
var ErrInvalidPacking = errors.New("packing: invalid packing values")

// Result holds the derived per-unit view of a packing triple.
type Result struct {
	PricePerUnit decimal.Decimal
	TotalUnits   int64
	TotalValue   decimal.Decimal
}

// Derive computes per-unit price, total units and total value.
// price_per_unit is rounded half-up to PriceScale places; total_value is exact.
func Derive(packQuantity, unitsPerPack int64, pricePerPack decimal.Decimal) (Result, error) {
	if packQuantity <= 0 {
		return Result{}, fmt.Errorf("%w: pack_quantity must be positive", ErrInvalidPacking)
	}
	if unitsPerPack <= 0 {
		return Result{}, fmt.Errorf("%w: units_per_pack must be positive", ErrInvalidPacking)
	}
	if !pricePerPack.IsPositive() {
		return Result{}, fmt.Errorf("%w: price_per_pack must be positive", ErrInvalidPacking)
	}
	if packQuantity > math.MaxInt64/unitsPerPack {
		return Result{}, fmt.Errorf("%w: total units overflow", ErrInvalidPacking)
	}
	return Result{
		PricePerUnit: pricePerPack.DivRound(decimal.NewFromInt(unitsPerPack), PriceScale),
		TotalUnits:   packQuantity * unitsPerPack,
		TotalValue:   pricePerPack.Mul(decimal.NewFromInt(packQuantity)),
	}, nil
}

// Description renders the human readable packing string stored alongside items.
func Description(packQuantity, unitsPerPack int64) string {
	return fmt.Sprintf("%d packs × %d units = %d total units", packQuantity, unitsPerPack, packQuantity*unitsPerPack)
}
