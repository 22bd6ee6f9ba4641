package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/packing"
)

// TxRepository exposes the stock operations available inside a caller's transaction.
type TxRepository interface {
	LockStockKey(ctx context.Context, key StockKey) error
	GetStockForUpdate(ctx context.Context, key StockKey) (StockRecord, error)
	InsertStock(ctx context.Context, stock StockRecord) (int64, error)
	UpdateStock(ctx context.Context, stock StockRecord) error
	InsertMovement(ctx context.Context, movement Movement) error
}

// SyncConfig groups synchroniser settings.
type SyncConfig struct {
	FreeQuantityPolicy FreeQuantityPolicy
	Clock              func() time.Time
}

// Synchronizer folds persisted purchase items into stock records.
type Synchronizer struct {
	policy FreeQuantityPolicy
	clock  func() time.Time
}

// NewSynchronizer builds a Synchronizer.
func NewSynchronizer(cfg SyncConfig) *Synchronizer {
	policy := cfg.FreeQuantityPolicy
	if policy == "" {
		policy = FreeQuantityInclude
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Synchronizer{policy: policy, clock: clock}
}

// Policy reports the configured free quantity policy.
func (s *Synchronizer) Policy() FreeQuantityPolicy {
	return s.policy
}

// Sync creates or increments the stock record for line. It must run inside the
// transaction that persisted the purchase item.
func (s *Synchronizer) Sync(ctx context.Context, tx TxRepository, line ReceiptLine) (StockRecord, error) {
	line.BatchNumber = strings.TrimSpace(line.BatchNumber)
	if line.MedicationID <= 0 || line.BatchNumber == "" || line.ExpiryDate.IsZero() {
		return StockRecord{}, ErrInvalidKey
	}
	if line.Quantity <= 0 || line.FreeQuantity < 0 {
		return StockRecord{}, ErrInvalidQuantity
	}
	key := line.Key()
	if err := tx.LockStockKey(ctx, key); err != nil {
		return StockRecord{}, fmt.Errorf("inventory: lock stock: %w", err)
	}

	onHandIn := line.Quantity
	if s.policy == FreeQuantityInclude {
		onHandIn += line.FreeQuantity
	}
	now := s.clock()

	stock, err := tx.GetStockForUpdate(ctx, key)
	switch {
	case err == nil:
		stock.TotalValue = onHandValue(stock).Add(line.TotalValue)
		stock.Quantity += onHandIn
		stock.ReceivedQuantity += line.Quantity
		stock.FreeQuantity += line.FreeQuantity
		stock.PricePerUnit = averageCost(stock.TotalValue, stock.Quantity, line.PricePerUnit)
		applyLatestReceipt(&stock, line, now)
		if err := tx.UpdateStock(ctx, stock); err != nil {
			return StockRecord{}, fmt.Errorf("inventory: update stock: %w", err)
		}
	case errors.Is(err, ErrStockNotFound):
		stock = StockRecord{
			MedicationID:     key.MedicationID,
			BatchNumber:      key.BatchNumber,
			ExpiryDate:       key.ExpiryDate,
			Quantity:         onHandIn,
			ReceivedQuantity: line.Quantity,
			FreeQuantity:     line.FreeQuantity,
			TotalValue:       line.TotalValue,
			PricePerUnit:     averageCost(line.TotalValue, onHandIn, line.PricePerUnit),
		}
		applyLatestReceipt(&stock, line, now)
		id, err := tx.InsertStock(ctx, stock)
		if err != nil {
			return StockRecord{}, fmt.Errorf("inventory: insert stock: %w", err)
		}
		stock.ID = id
	default:
		return StockRecord{}, fmt.Errorf("inventory: load stock: %w", err)
	}

	movement := Movement{
		StockID:        stock.ID,
		GRNID:          line.GRNID,
		PurchaseItemID: line.PurchaseItemID,
		QtyIn:          line.Quantity,
		FreeQtyIn:      line.FreeQuantity,
		BalanceQty:     stock.Quantity,
		UnitCost:       line.PricePerUnit,
		BalanceValue:   stock.TotalValue,
		PostedAt:       now,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return StockRecord{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return stock, nil
}

func applyLatestReceipt(stock *StockRecord, line ReceiptLine, now time.Time) {
	stock.PackQuantity = line.PackQuantity
	stock.UnitsPerPack = line.UnitsPerPack
	stock.PricePerPack = line.PricePerPack
	stock.MRP = line.MRP
	stock.PTR = line.PTR
	stock.SupplierID = line.SupplierID
	stock.LastGRNID = line.GRNID
	stock.LastPurchaseItemID = line.PurchaseItemID
	stock.UpdatedAt = now
}

// onHandValue values what is still on hand at its current average cost.
// Units consumed elsewhere leave the valuation with them.
func onHandValue(stock StockRecord) decimal.Decimal {
	if stock.Quantity <= 0 {
		return decimal.Zero
	}
	return stock.PricePerUnit.Mul(decimal.NewFromInt(stock.Quantity))
}

func averageCost(totalValue decimal.Decimal, qty int64, fallback decimal.Decimal) decimal.Decimal {
	if qty <= 0 {
		return fallback
	}
	return totalValue.DivRound(decimal.NewFromInt(qty), packing.PriceScale)
}
