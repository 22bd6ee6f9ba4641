package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/inventory"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/masterdata"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, id int64) (PurchaseEntry, error)
	ListEntryHeaders(ctx context.Context, ids []int64) ([]EntryDetail, error)
	ListEntryItems(ctx context.Context, ids []int64) ([]ItemDetail, error)
	ListEntries(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error)
	RefreshPurchaseOrderReceipt(ctx context.Context, poID int64) (POReceipt, error)
}

// MasterDataPort resolves suppliers, medications and purchase orders.
type MasterDataPort interface {
	MedicationLookup
	GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error)
	GetPurchaseOrder(ctx context.Context, id int64) (masterdata.PurchaseOrder, error)
}

// StockSyncer folds persisted items into stock inside the caller's transaction.
type StockSyncer interface {
	Sync(ctx context.Context, tx inventory.TxRepository, line inventory.ReceiptLine) (inventory.StockRecord, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records and reads approval history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module string, ref uuid.UUID) ([]shared.ApprovalLog, error)
}

// IdempotencyPort reserves request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// EventPublisher hands post-commit work to the background queue.
// The reason names the GRN event (create, approve, reject) so each event on
// one GRN schedules its own refresh.
type EventPublisher interface {
	PurchaseOrderReceived(ctx context.Context, poID, grnID int64, reason string) error
}

// MetricsRecorder counts domain outcomes.
type MetricsRecorder interface {
	GRNCreated(items int)
	ApprovalOutcome(action, result string)
}

// ServiceConfig groups optional collaborators and tuning.
type ServiceConfig struct {
	Approvals           ApprovalPort
	Audit               AuditPort
	Idempotency         IdempotencyPort
	Events              EventPublisher
	Metrics             MetricsRecorder
	Logger              *slog.Logger
	MaxItems            int
	ApprovalParallelism int
	Clock               func() time.Time
}

// Service orchestrates goods receipt flows.
type Service struct {
	repo        RepositoryPort
	master      MasterDataPort
	stock       StockSyncer
	builder     *ItemBuilder
	approvals   ApprovalPort
	audit       AuditPort
	idempotency IdempotencyPort
	events      EventPublisher
	metrics     MetricsRecorder
	logger      *slog.Logger
	maxItems    int
	parallelism int
	clock       func() time.Time
}

const (
	idempotencyModule  = "grn"
	defaultMaxItems    = 200
	defaultParallelism = 4
)

// NewService constructs the goods receipt service.
func NewService(repo RepositoryPort, master MasterDataPort, stock StockSyncer, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		master:      master,
		stock:       stock,
		approvals:   cfg.Approvals,
		audit:       cfg.Audit,
		idempotency: cfg.Idempotency,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		maxItems:    cfg.MaxItems,
		parallelism: cfg.ApprovalParallelism,
		clock:       cfg.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxItems <= 0 {
		s.maxItems = defaultMaxItems
	}
	if s.parallelism <= 0 {
		s.parallelism = defaultParallelism
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	s.builder = NewItemBuilder(master, s.clock)
	return s
}

// CreatePurchaseEntryInput describes a GRN submission.
type CreatePurchaseEntryInput struct {
	SupplierID      int64
	PurchaseOrderID int64
	InvoiceNumber   string
	InvoiceDate     time.Time
	ReceivedDate    time.Time
	PaymentMode     PaymentMode
	Notes           string
	CreatedBy       int64
	IdempotencyKey  string
	Items           []ItemInput
}

// CreatedItem echoes the derived values of one persisted item.
type CreatedItem struct {
	ID           int64
	MedicationID int64
	BatchNumber  string
	PricePerUnit decimal.Decimal
	TotalUnits   int64
	TotalValue   decimal.Decimal
	Quantity     int64
	Packing      string
	TotalAmount  decimal.Decimal
	StockID      int64
}

// PurchaseEntrySummary is returned after a successful creation.
type PurchaseEntrySummary struct {
	ID          int64
	GRNNumber   string
	Status      ApprovalStatus
	ItemCount   int
	GrandTotal  decimal.Decimal
	Subtotal    decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Items       []CreatedItem
}

// CreatePurchaseEntry validates and atomically persists a GRN, its items and
// the resulting stock changes.
func (s *Service) CreatePurchaseEntry(ctx context.Context, input CreatePurchaseEntryInput) (PurchaseEntrySummary, error) {
	if err := s.validateHeader(ctx, &input); err != nil {
		return PurchaseEntrySummary{}, err
	}

	items := make([]PurchaseItem, 0, len(input.Items))
	for i, in := range input.Items {
		item, err := s.builder.Build(ctx, in)
		if err != nil {
			var fe *FieldError
			if errors.As(err, &fe) {
				return PurchaseEntrySummary{}, &ItemValidationError{Index: i + 1, Field: fe.Field, Err: fe.Err}
			}
			if errors.Is(err, ErrPersistence) {
				return PurchaseEntrySummary{}, err
			}
			return PurchaseEntrySummary{}, &ItemValidationError{Index: i + 1, Field: "item", Err: err}
		}
		items = append(items, item)
	}
	totals := SumItems(items)

	reserved := false
	if s.idempotency != nil && input.IdempotencyKey != "" {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return PurchaseEntrySummary{}, err
			}
			return PurchaseEntrySummary{}, persistence("reserve idempotency key", err)
		}
		reserved = true
	}

	now := s.clock()
	entry := PurchaseEntry{
		SupplierID:      input.SupplierID,
		PurchaseOrderID: input.PurchaseOrderID,
		InvoiceNumber:   input.InvoiceNumber,
		InvoiceDate:     dateOnly(input.InvoiceDate),
		ReceivedDate:    dateOnly(input.ReceivedDate),
		PaymentMode:     input.PaymentMode,
		PaymentStatus:   PaymentPending,
		Status:          StatusPending,
		CreatedBy:       input.CreatedBy,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.DiscountAmount,
		TaxAmount:       totals.TaxAmount,
		TotalAmount:     totals.TotalAmount,
		Notes:           input.Notes,
		CreatedAt:       now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		seq, err := tx.NextGRNSequence(ctx, entry.ReceivedDate)
		if err != nil {
			return persistence("allocate grn number", err)
		}
		entry.GRNNumber = FormatGRNNumber(entry.ReceivedDate, seq)
		entry.ID, err = tx.InsertEntry(ctx, entry)
		if err != nil {
			return persistence("insert grn", err)
		}
		for i := range items {
			items[i].GRNID = entry.ID
			items[i].ID, err = tx.InsertItem(ctx, items[i])
			if err != nil {
				return persistence(fmt.Sprintf("insert item %d", i+1), err)
			}
		}
		for _, i := range lockOrder(items) {
			item := items[i]
			rec, err := s.stock.Sync(ctx, tx.Stock(), inventory.ReceiptLine{
				MedicationID:   item.MedicationID,
				BatchNumber:    item.BatchNumber,
				ExpiryDate:     item.ExpiryDate,
				Quantity:       item.Quantity,
				FreeQuantity:   item.FreeQuantity,
				PackQuantity:   item.PackQuantity,
				UnitsPerPack:   item.UnitsPerPack,
				PricePerPack:   item.PricePerPack,
				PricePerUnit:   item.PricePerUnit,
				TotalValue:     item.TotalValue,
				MRP:            item.MRP,
				PTR:            item.PTR,
				SupplierID:     entry.SupplierID,
				GRNID:          entry.ID,
				PurchaseItemID: item.ID,
			})
			if err != nil {
				return persistence(fmt.Sprintf("sync stock for item %d", i+1), err)
			}
			if err := tx.LinkItemStock(ctx, item.ID, rec.ID); err != nil {
				return persistence("link stock", err)
			}
			items[i].StockID = rec.ID
		}
		return nil
	})
	if err != nil {
		if reserved {
			if delErr := s.idempotency.Delete(ctx, input.IdempotencyKey, idempotencyModule); delErr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", delErr))
			}
		}
		s.logger.Error("create grn", slog.Int64("supplier_id", input.SupplierID), slog.Any("error", err))
		if errors.Is(err, ErrPersistence) {
			return PurchaseEntrySummary{}, err
		}
		return PurchaseEntrySummary{}, persistence("create grn", err)
	}

	s.afterCreate(ctx, entry, items)
	return summarize(entry, items, totals), nil
}

func (s *Service) afterCreate(ctx context.Context, entry PurchaseEntry, items []PurchaseItem) {
	s.recordAudit(ctx, entry.CreatedBy, "GRN_CREATE", strconv.FormatInt(entry.ID, 10), map[string]any{
		"grn_number":   entry.GRNNumber,
		"supplier_id":  entry.SupplierID,
		"item_count":   len(items),
		"total_amount": entry.TotalAmount.StringFixed(moneyScale),
	})
	if s.metrics != nil {
		s.metrics.GRNCreated(len(items))
	}
	s.publishReceipt(ctx, entry, "create")
	s.logger.Info("grn created", slog.String("grn_number", entry.GRNNumber), slog.Int("items", len(items)))
}

func (s *Service) publishReceipt(ctx context.Context, entry PurchaseEntry, reason string) {
	if s.events == nil || entry.PurchaseOrderID <= 0 {
		return
	}
	if err := s.events.PurchaseOrderReceived(ctx, entry.PurchaseOrderID, entry.ID, reason); err != nil {
		s.logger.Warn("enqueue po receipt refresh", slog.Int64("po_id", entry.PurchaseOrderID),
			slog.String("reason", reason), slog.Any("error", err))
	}
}

func (s *Service) validateHeader(ctx context.Context, input *CreatePurchaseEntryInput) error {
	input.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	input.PaymentMode = PaymentMode(strings.ToUpper(strings.TrimSpace(string(input.PaymentMode))))
	switch {
	case input.SupplierID <= 0:
		return fmt.Errorf("%w: supplier_id is required", ErrInvalidRequest)
	case input.InvoiceNumber == "":
		return fmt.Errorf("%w: invoice_number is required", ErrInvalidRequest)
	case input.InvoiceDate.IsZero():
		return fmt.Errorf("%w: invoice_date is required", ErrInvalidRequest)
	case input.ReceivedDate.IsZero():
		return fmt.Errorf("%w: received_date is required", ErrInvalidRequest)
	case dateOnly(input.ReceivedDate).Before(dateOnly(input.InvoiceDate)):
		return fmt.Errorf("%w: received_date is before invoice_date", ErrInvalidRequest)
	case !input.PaymentMode.Valid():
		return fmt.Errorf("%w: payment_mode %q is not supported", ErrInvalidRequest, input.PaymentMode)
	case len(input.Items) == 0:
		return fmt.Errorf("%w: at least one item is required", ErrInvalidRequest)
	case len(input.Items) > s.maxItems:
		return fmt.Errorf("%w: at most %d items per receipt", ErrInvalidRequest, s.maxItems)
	}

	supplier, err := s.master.GetSupplier(ctx, input.SupplierID)
	if err != nil {
		if errors.Is(err, masterdata.ErrNotFound) {
			return fmt.Errorf("%w: supplier %d", ErrNotFound, input.SupplierID)
		}
		return persistence("lookup supplier", err)
	}
	if !supplier.IsActive {
		return fmt.Errorf("%w: supplier %d is inactive", ErrInvalidRequest, input.SupplierID)
	}
	if input.PurchaseOrderID > 0 {
		po, err := s.master.GetPurchaseOrder(ctx, input.PurchaseOrderID)
		if err != nil {
			if errors.Is(err, masterdata.ErrNotFound) {
				return fmt.Errorf("%w: purchase order %d", ErrNotFound, input.PurchaseOrderID)
			}
			return persistence("lookup purchase order", err)
		}
		if po.SupplierID != input.SupplierID {
			return fmt.Errorf("%w: purchase order %d belongs to another supplier", ErrInvalidRequest, input.PurchaseOrderID)
		}
	} else if input.PurchaseOrderID < 0 {
		return fmt.Errorf("%w: purchase_order_id must be positive", ErrInvalidRequest)
	}
	return nil
}

// lockOrder returns item indexes sorted by stock key so that concurrent
// receipts touching the same batches acquire locks in the same order.
func lockOrder(items []PurchaseItem) []int {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	key := func(i int) inventory.StockKey {
		return inventory.StockKey{MedicationID: items[i].MedicationID, BatchNumber: items[i].BatchNumber, ExpiryDate: items[i].ExpiryDate}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return key(order[a]).Less(key(order[b]))
	})
	return order
}

func summarize(entry PurchaseEntry, items []PurchaseItem, totals Totals) PurchaseEntrySummary {
	out := PurchaseEntrySummary{
		ID:          entry.ID,
		GRNNumber:   entry.GRNNumber,
		Status:      entry.Status,
		ItemCount:   len(items),
		GrandTotal:  totals.GrandTotal,
		Subtotal:    totals.Subtotal,
		TaxAmount:   totals.TaxAmount,
		TotalAmount: totals.TotalAmount,
		Items:       make([]CreatedItem, 0, len(items)),
	}
	for _, item := range items {
		out.Items = append(out.Items, CreatedItem{
			ID:           item.ID,
			MedicationID: item.MedicationID,
			BatchNumber:  item.BatchNumber,
			PricePerUnit: item.PricePerUnit,
			TotalUnits:   item.TotalUnits,
			TotalValue:   item.TotalValue,
			Quantity:     item.Quantity,
			Packing:      item.Packing,
			TotalAmount:  item.TotalAmount,
			StockID:      item.StockID,
		})
	}
	return out
}

// FormatGRNNumber renders GRN-YYYYMMDD-NNNN.
func FormatGRNNumber(day time.Time, seq int) string {
	return fmt.Sprintf("GRN-%s-%04d", day.Format("20060102"), seq)
}

// ListEntries returns a filtered page of GRNs.
func (s *Service) ListEntries(ctx context.Context, limit, offset int, filters ListFilters) ([]ListItem, int, error) {
	limit, offset = shared.NormalizePage(limit, offset)
	filters.Status = strings.ToUpper(strings.TrimSpace(filters.Status))
	if filters.Status != "" {
		switch ApprovalStatus(filters.Status) {
		case StatusPending, StatusApproved, StatusRejected:
		default:
			return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, filters.Status)
		}
	}
	items, total, err := s.repo.ListEntries(ctx, limit, offset, filters)
	if err != nil {
		return nil, 0, persistence("list grns", err)
	}
	return items, total, nil
}

// GetEntry returns the full projection of one GRN.
func (s *Service) GetEntry(ctx context.Context, id int64, requestedBy int64) (EntryDetail, error) {
	res, err := s.BulkDetails(ctx, BulkDetailsInput{IDs: []int64{id}, RequestedBy: requestedBy})
	if err != nil {
		return EntryDetail{}, err
	}
	if res.FoundCount == 0 {
		return EntryDetail{}, fmt.Errorf("%w: grn %d", ErrNotFound, id)
	}
	detail := res.Results[0]
	detail.Approvals = []shared.ApprovalLog{}
	if s.approvals != nil {
		logs, err := s.approvals.List(ctx, approvalModule, shared.ApprovalRef(approvalModule, id))
		if err != nil {
			return EntryDetail{}, persistence("load approval history", err)
		}
		if logs != nil {
			detail.Approvals = logs
		}
	}
	return detail, nil
}

// RefreshPurchaseOrderReceipt recomputes the received amount and status of a PO.
func (s *Service) RefreshPurchaseOrderReceipt(ctx context.Context, poID int64) (POReceipt, error) {
	if poID <= 0 {
		return POReceipt{}, fmt.Errorf("%w: purchase order id must be positive", ErrInvalidRequest)
	}
	receipt, err := s.repo.RefreshPurchaseOrderReceipt(ctx, poID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return POReceipt{}, err
		}
		return POReceipt{}, persistence("refresh purchase order", err)
	}
	return receipt, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: shared.EntityGRN, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
