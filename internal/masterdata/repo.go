package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads master data needed by goods receipt validation.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetSupplier returns a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, code, name, COALESCE(gstin,''), is_active FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.GSTIN, &s.IsActive)
	return s, notFound(err)
}

// GetMedication returns a medication by id.
func (r *Repository) GetMedication(ctx context.Context, id int64) (Medication, error) {
	var m Medication
	err := r.db.QueryRow(ctx, `SELECT id, name, COALESCE(generic_name,''), COALESCE(hsn_code,''), is_active FROM medications WHERE id = $1`, id).
		Scan(&m.ID, &m.Name, &m.GenericName, &m.HSNCode, &m.IsActive)
	return m, notFound(err)
}

// GetPurchaseOrder returns a purchase order header by id.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := r.db.QueryRow(ctx, `SELECT id, po_number, supplier_id, status, total_amount, received_amount FROM purchase_orders WHERE id = $1`, id).
		Scan(&po.ID, &po.Number, &po.SupplierID, &po.Status, &po.TotalAmount, &po.ReceivedAmount)
	return po, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
