package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/rbac"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// StockReader exposes read-only stock queries.
type StockReader interface {
	GetStock(ctx context.Context, id int64) (StockRecord, error)
	ListStock(ctx context.Context, filter StockFilter) ([]StockRecord, error)
	ListMovements(ctx context.Context, stockID int64, limit int) ([]Movement, error)
}

// Handler serves stock endpoints.
type Handler struct {
	logger *slog.Logger
	reader StockReader
	rbac   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, reader StockReader, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, reader: reader, rbac: rbac}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermStockView, shared.PermGRNView))
		r.Get("/", h.listStock)
		r.Get("/{id}", h.getStock)
		r.Get("/{id}/movements", h.listMovements)
	})
}

type stockResponse struct {
	ID               int64     `json:"id"`
	MedicationID     int64     `json:"medication_id"`
	BatchNumber      string    `json:"batch_number"`
	ExpiryDate       string    `json:"expiry_date"`
	Quantity         int64     `json:"quantity"`
	ReceivedQuantity int64     `json:"received_quantity"`
	FreeQuantity     int64     `json:"free_quantity"`
	PackQuantity     int64     `json:"pack_quantity"`
	UnitsPerPack     int64     `json:"units_per_pack"`
	PricePerPack     string    `json:"price_per_pack"`
	PricePerUnit     string    `json:"price_per_unit"`
	TotalValue       string    `json:"total_value"`
	MRP              string    `json:"mrp"`
	SupplierID       int64     `json:"supplier_id,omitempty"`
	LastGRNID        int64     `json:"last_grn_id,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toStockResponse(s StockRecord) stockResponse {
	return stockResponse{
		ID:               s.ID,
		MedicationID:     s.MedicationID,
		BatchNumber:      s.BatchNumber,
		ExpiryDate:       s.ExpiryDate.Format(time.DateOnly),
		Quantity:         s.Quantity,
		ReceivedQuantity: s.ReceivedQuantity,
		FreeQuantity:     s.FreeQuantity,
		PackQuantity:     s.PackQuantity,
		UnitsPerPack:     s.UnitsPerPack,
		PricePerPack:     s.PricePerPack.StringFixed(2),
		PricePerUnit:     s.PricePerUnit.StringFixed(4),
		TotalValue:       s.TotalValue.StringFixed(2),
		MRP:              s.MRP.StringFixed(2),
		SupplierID:       s.SupplierID,
		LastGRNID:        s.LastGRNID,
		UpdatedAt:        s.UpdatedAt,
	}
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	medicationID, _ := strconv.ParseInt(q.Get("medication_id"), 10, 64)
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	records, err := h.reader.ListStock(r.Context(), StockFilter{
		MedicationID: medicationID,
		BatchNumber:  q.Get("batch_number"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]stockResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toStockResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "stock id must be a positive integer")
		return
	}
	rec, err := h.reader.GetStock(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrStockNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get stock", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStockResponse(rec))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "stock id must be a positive integer")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.reader.ListMovements(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("list movements", slog.Int64("stock_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	type movementResponse struct {
		GRNID          int64     `json:"grn_id,omitempty"`
		PurchaseItemID int64     `json:"purchase_item_id,omitempty"`
		QtyIn          int64     `json:"qty_in"`
		FreeQtyIn      int64     `json:"free_qty_in"`
		BalanceQty     int64     `json:"balance_qty"`
		UnitCost       string    `json:"unit_cost"`
		BalanceValue   string    `json:"balance_value"`
		PostedAt       time.Time `json:"posted_at"`
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, movementResponse{
			GRNID:          m.GRNID,
			PurchaseItemID: m.PurchaseItemID,
			QtyIn:          m.QtyIn,
			FreeQtyIn:      m.FreeQtyIn,
			BalanceQty:     m.BalanceQty,
			UnitCost:       m.UnitCost.StringFixed(4),
			BalanceValue:   m.BalanceValue.StringFixed(2),
			PostedAt:       m.PostedAt,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock_id": id, "results": out})
}
