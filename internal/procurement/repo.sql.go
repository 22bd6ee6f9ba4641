package procurement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/inventory"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextGRNSequence(ctx context.Context, day time.Time) (int, error)
	InsertEntry(ctx context.Context, entry PurchaseEntry) (int64, error)
	InsertItem(ctx context.Context, item PurchaseItem) (int64, error)
	LinkItemStock(ctx context.Context, itemID, stockID int64) error
	TransitionEntry(ctx context.Context, id int64, from, to ApprovalStatus, actorID int64, at time.Time, remarks string) (PurchaseEntry, bool, error)
	Stock() inventory.TxRepository
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction. Row and advisory
// locks order concurrent writers.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const entryColumns = `e.id, e.grn_number, e.supplier_id, COALESCE(e.purchase_order_id,0), e.invoice_number, e.invoice_date,
e.received_date, e.payment_mode, e.payment_status, e.status, e.created_by, COALESCE(e.approved_by,0), e.approved_at,
COALESCE(e.remarks,''), e.subtotal, e.discount_amount, e.tax_amount, e.total_amount, COALESCE(e.notes,''), e.created_at`

func entryDest(e *PurchaseEntry) []any {
	return []any{&e.ID, &e.GRNNumber, &e.SupplierID, &e.PurchaseOrderID, &e.InvoiceNumber, &e.InvoiceDate,
		&e.ReceivedDate, &e.PaymentMode, &e.PaymentStatus, &e.Status, &e.CreatedBy, &e.ApprovedBy, &e.ApprovedAt,
		&e.Remarks, &e.Subtotal, &e.DiscountAmount, &e.TaxAmount, &e.TotalAmount, &e.Notes, &e.CreatedAt}
}

// GetEntry returns a GRN header.
func (r *Repository) GetEntry(ctx context.Context, id int64) (PurchaseEntry, error) {
	var e PurchaseEntry
	err := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM purchase_entries e WHERE e.id=$1`, id).Scan(entryDest(&e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseEntry{}, ErrNotFound
		}
		return PurchaseEntry{}, err
	}
	return e, nil
}

// ListEntryHeaders loads headers for ids in one round-trip.
func (r *Repository) ListEntryHeaders(ctx context.Context, ids []int64) ([]EntryDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+`, s.name, COALESCE(po.po_number,''), COALESCE(cu.name,''), COALESCE(au.name,'')
FROM purchase_entries e
JOIN suppliers s ON s.id = e.supplier_id
LEFT JOIN purchase_orders po ON po.id = e.purchase_order_id
LEFT JOIN users cu ON cu.id = e.created_by
LEFT JOIN users au ON au.id = e.approved_by
WHERE e.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryDetail
	for rows.Next() {
		var d EntryDetail
		dest := append(entryDest(&d.PurchaseEntry), &d.SupplierName, &d.PONumber, &d.CreatedByName, &d.ApprovedName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const itemColumns = `i.id, i.grn_id, i.medication_id, i.batch_number, i.expiry_date, i.pack_quantity, i.units_per_pack,
i.price_per_pack, i.price_per_unit, i.total_units, i.total_value, i.quantity, i.free_quantity, i.packing, i.mrp,
i.purchase_price, i.ptr, i.discount_percent, i.discount_amount, i.cgst_percent, i.sgst_percent, i.igst_percent,
i.tax_amount, i.total_amount, i.margin_percent, COALESCE(i.stock_id,0)`

// ListEntryItems loads all items for ids in one round-trip.
func (r *Repository) ListEntryItems(ctx context.Context, ids []int64) ([]ItemDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+`, m.name
FROM purchase_items i
JOIN medications m ON m.id = i.medication_id
WHERE i.grn_id = ANY($1)
ORDER BY i.grn_id, i.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemDetail
	for rows.Next() {
		var d ItemDetail
		it := &d.PurchaseItem
		if err := rows.Scan(&it.ID, &it.GRNID, &it.MedicationID, &it.BatchNumber, &it.ExpiryDate, &it.PackQuantity, &it.UnitsPerPack,
			&it.PricePerPack, &it.PricePerUnit, &it.TotalUnits, &it.TotalValue, &it.Quantity, &it.FreeQuantity, &it.Packing, &it.MRP,
			&it.PurchasePrice, &it.PTR, &it.DiscountPercent, &it.DiscountAmount, &it.CGSTPercent, &it.SGSTPercent, &it.IGSTPercent,
			&it.TaxAmount, &it.TotalAmount, &it.MarginPercent, &it.StockID, &d.MedicationName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var sortColumns = map[string]string{
	"grn_number":    "e.grn_number",
	"received_date": "e.received_date",
	"total_amount":  "e.total_amount",
	"created_at":    "e.created_at",
	"supplier":      "s.name",
}

// ListEntries returns a page of GRNs and the total matching count.
func (r *Repository) ListEntries(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filters.Status != "" {
		add("e.status = $%d", filters.Status)
	}
	if filters.SupplierID > 0 {
		add("e.supplier_id = $%d", filters.SupplierID)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(e.grn_number ILIKE $%d OR e.invoice_number ILIKE $%d OR s.name ILIKE $%d)", n, n, n))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_entries e JOIN suppliers s ON s.id = e.supplier_id WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[filters.SortBy]
	if !ok {
		column = "e.created_at"
	}
	dir := "DESC"
	if strings.EqualFold(filters.SortDir, "asc") {
		dir = "ASC"
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT e.id, e.grn_number, e.supplier_id, s.name, e.invoice_number, e.received_date, e.status, e.payment_status,
(SELECT COUNT(*) FROM purchase_items i WHERE i.grn_id = e.id), e.total_amount, e.created_at
FROM purchase_entries e JOIN suppliers s ON s.id = e.supplier_id
WHERE %s ORDER BY %s %s, e.id %s LIMIT $%d OFFSET $%d`, where, column, dir, dir, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []ListItem{}
	for rows.Next() {
		var it ListItem
		if err := rows.Scan(&it.ID, &it.GRNNumber, &it.SupplierID, &it.SupplierName, &it.InvoiceNumber, &it.ReceivedDate,
			&it.Status, &it.PaymentStatus, &it.ItemCount, &it.TotalAmount, &it.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// RefreshPurchaseOrderReceipt recomputes received_amount from non-rejected GRNs.
func (r *Repository) RefreshPurchaseOrderReceipt(ctx context.Context, poID int64) (POReceipt, error) {
	var received, total decimal.Decimal
	var status string
	err := r.pool.QueryRow(ctx, `SELECT po.total_amount, po.status,
COALESCE((SELECT SUM(e.total_amount) FROM purchase_entries e WHERE e.purchase_order_id = po.id AND e.status <> 'REJECTED'), 0)
FROM purchase_orders po WHERE po.id=$1`, poID).Scan(&total, &status, &received)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return POReceipt{}, ErrNotFound
		}
		return POReceipt{}, err
	}
	next := ReceiptStatus(received, total, status)
	if _, err := r.pool.Exec(ctx, `UPDATE purchase_orders SET received_amount=$2, status=$3, updated_at=NOW() WHERE id=$1`, poID, received, next); err != nil {
		return POReceipt{}, err
	}
	return POReceipt{PurchaseOrderID: poID, ReceivedAmount: received, TotalAmount: total, Status: next}, nil
}

func (r *txRepo) NextGRNSequence(ctx context.Context, day time.Time) (int, error) {
	var seq int
	err := r.tx.QueryRow(ctx, `INSERT INTO grn_sequences (seq_date, last_value) VALUES ($1, 1)
ON CONFLICT (seq_date) DO UPDATE SET last_value = grn_sequences.last_value + 1
RETURNING last_value`, day).Scan(&seq)
	return seq, err
}

func (r *txRepo) InsertEntry(ctx context.Context, e PurchaseEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_entries (grn_number, supplier_id, purchase_order_id, invoice_number, invoice_date,
received_date, payment_mode, payment_status, status, created_by, subtotal, discount_amount, tax_amount, total_amount, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		e.GRNNumber, e.SupplierID, nullInt(e.PurchaseOrderID), e.InvoiceNumber, e.InvoiceDate,
		e.ReceivedDate, e.PaymentMode, e.PaymentStatus, e.Status, e.CreatedBy, e.Subtotal, e.DiscountAmount,
		e.TaxAmount, e.TotalAmount, e.Notes, e.CreatedAt).Scan(&id)
	return id, err
}

func (r *txRepo) InsertItem(ctx context.Context, it PurchaseItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_items (grn_id, medication_id, batch_number, expiry_date, pack_quantity, units_per_pack,
price_per_pack, price_per_unit, total_units, total_value, quantity, free_quantity, packing, mrp, purchase_price, ptr,
discount_percent, discount_amount, cgst_percent, sgst_percent, igst_percent, tax_amount, total_amount, margin_percent)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24) RETURNING id`,
		it.GRNID, it.MedicationID, it.BatchNumber, it.ExpiryDate, it.PackQuantity, it.UnitsPerPack,
		it.PricePerPack, it.PricePerUnit, it.TotalUnits, it.TotalValue, it.Quantity, it.FreeQuantity, it.Packing, it.MRP, it.PurchasePrice, it.PTR,
		it.DiscountPercent, it.DiscountAmount, it.CGSTPercent, it.SGSTPercent, it.IGSTPercent, it.TaxAmount, it.TotalAmount, it.MarginPercent).Scan(&id)
	return id, err
}

func (r *txRepo) LinkItemStock(ctx context.Context, itemID, stockID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_items SET stock_id=$2 WHERE id=$1`, itemID, stockID)
	return err
}

// TransitionEntry applies the change only when the row is still in from.
// The boolean reports whether a row was updated.
func (r *txRepo) TransitionEntry(ctx context.Context, id int64, from, to ApprovalStatus, actorID int64, at time.Time, remarks string) (PurchaseEntry, bool, error) {
	var e PurchaseEntry
	err := r.tx.QueryRow(ctx, `UPDATE purchase_entries e SET status=$3, approved_by=$4, approved_at=$5, remarks=NULLIF($6,'')
WHERE e.id=$1 AND e.status=$2
RETURNING `+entryColumns, id, from, to, actorID, at, remarks).Scan(entryDest(&e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseEntry{}, false, nil
		}
		return PurchaseEntry{}, false, err
	}
	return e, true, nil
}

func (r *txRepo) Stock() inventory.TxRepository {
	return inventory.NewTxRepository(r.tx)
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
