package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// Repository reads stock data from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// StockFilter narrows stock listings.
type StockFilter struct {
	MedicationID int64
	BatchNumber  string
	Limit        int
	Offset       int
}

const stockColumns = `id, medication_id, batch_number, expiry_date, quantity, received_quantity, free_quantity,
pack_quantity, units_per_pack, price_per_pack, price_per_unit, total_value, mrp, ptr,
COALESCE(supplier_id,0), COALESCE(last_grn_id,0), COALESCE(last_purchase_item_id,0), updated_at`

func scanStock(row pgx.Row) (StockRecord, error) {
	var s StockRecord
	err := row.Scan(&s.ID, &s.MedicationID, &s.BatchNumber, &s.ExpiryDate, &s.Quantity, &s.ReceivedQuantity, &s.FreeQuantity,
		&s.PackQuantity, &s.UnitsPerPack, &s.PricePerPack, &s.PricePerUnit, &s.TotalValue, &s.MRP, &s.PTR,
		&s.SupplierID, &s.LastGRNID, &s.LastPurchaseItemID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockRecord{}, ErrStockNotFound
	}
	return s, err
}

// GetStock fetches a stock record by id.
func (r *Repository) GetStock(ctx context.Context, id int64) (StockRecord, error) {
	return scanStock(r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock WHERE id=$1`, id))
}

// ListStock lists stock records ordered by earliest expiry.
func (r *Repository) ListStock(ctx context.Context, filter StockFilter) ([]StockRecord, error) {
	limit, offset := shared.NormalizePage(filter.Limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM stock
WHERE ($1::bigint = 0 OR medication_id = $1) AND ($2 = '' OR batch_number = $2)
ORDER BY expiry_date ASC, id ASC
LIMIT $3 OFFSET $4`, filter.MedicationID, filter.BatchNumber, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []StockRecord{}
	for rows.Next() {
		rec, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListMovements returns the ledger for one stock record.
func (r *Repository) ListMovements(ctx context.Context, stockID int64, limit int) ([]Movement, error) {
	limit, _ = shared.NormalizePage(limit, 0)
	rows, err := r.pool.Query(ctx, `SELECT id, stock_id, COALESCE(grn_id,0), COALESCE(purchase_item_id,0), qty_in, free_qty_in, balance_qty, unit_cost, balance_value, posted_at
FROM stock_movements WHERE stock_id=$1 ORDER BY posted_at ASC, id ASC LIMIT $2`, stockID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.StockID, &m.GRNID, &m.PurchaseItemID, &m.QtyIn, &m.FreeQtyIn, &m.BalanceQty, &m.UnitCost, &m.BalanceValue, &m.PostedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds stock operations to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) LockStockKey(ctx context.Context, key StockKey) error {
	lockKey := shared.StockLockKey(key.MedicationID, key.BatchNumber, key.ExpiryDate)
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, lockKey)
	return err
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, key StockKey) (StockRecord, error) {
	return scanStock(r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock
WHERE medication_id=$1 AND batch_number=$2 AND expiry_date=$3 FOR UPDATE`, key.MedicationID, key.BatchNumber, key.ExpiryDate))
}

func (r *txRepository) InsertStock(ctx context.Context, s StockRecord) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock (medication_id, batch_number, expiry_date, quantity, received_quantity, free_quantity,
pack_quantity, units_per_pack, price_per_pack, price_per_unit, total_value, mrp, ptr, supplier_id, last_grn_id, last_purchase_item_id, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17) RETURNING id`,
		s.MedicationID, s.BatchNumber, s.ExpiryDate, s.Quantity, s.ReceivedQuantity, s.FreeQuantity,
		s.PackQuantity, s.UnitsPerPack, s.PricePerPack, s.PricePerUnit, s.TotalValue, s.MRP, s.PTR,
		nullInt(s.SupplierID), nullInt(s.LastGRNID), nullInt(s.LastPurchaseItemID), s.UpdatedAt).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateStock(ctx context.Context, s StockRecord) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock SET quantity=$2, received_quantity=$3, free_quantity=$4, pack_quantity=$5, units_per_pack=$6,
price_per_pack=$7, price_per_unit=$8, total_value=$9, mrp=$10, ptr=$11, supplier_id=$12, last_grn_id=$13, last_purchase_item_id=$14, updated_at=$15
WHERE id=$1`, s.ID, s.Quantity, s.ReceivedQuantity, s.FreeQuantity, s.PackQuantity, s.UnitsPerPack,
		s.PricePerPack, s.PricePerUnit, s.TotalValue, s.MRP, s.PTR, nullInt(s.SupplierID), nullInt(s.LastGRNID), nullInt(s.LastPurchaseItemID), s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (stock_id, grn_id, purchase_item_id, qty_in, free_qty_in, balance_qty, unit_cost, balance_value, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, m.StockID, nullInt(m.GRNID), nullInt(m.PurchaseItemID), m.QtyIn, m.FreeQtyIn, m.BalanceQty, m.UnitCost, m.BalanceValue, m.PostedAt)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
