package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = time.DateOnly

type createItemRequest struct {
	MedicationID    int64            `json:"medication_id"`
	BatchNumber     string           `json:"batch_number"`
	ExpiryDate      string           `json:"expiry_date"`
	PackQuantity    *int64           `json:"pack_quantity"`
	UnitsPerPack    *int64           `json:"units_per_pack"`
	PricePerPack    *decimal.Decimal `json:"price_per_pack"`
	FreeQuantity    int64            `json:"free_quantity"`
	MRP             decimal.Decimal  `json:"mrp"`
	PurchasePrice   *decimal.Decimal `json:"purchase_price"`
	PTR             decimal.Decimal  `json:"ptr"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	CGSTPercent     decimal.Decimal  `json:"cgst_percent"`
	SGSTPercent     decimal.Decimal  `json:"sgst_percent"`
	IGSTPercent     decimal.Decimal  `json:"igst_percent"`
}

type createRequest struct {
	SupplierID      int64               `json:"supplier_id" validate:"required,gt=0"`
	PurchaseOrderID int64               `json:"purchase_order_id" validate:"gte=0"`
	InvoiceNumber   string              `json:"invoice_number" validate:"required,max=64"`
	InvoiceDate     string              `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	ReceivedDate    string              `json:"received_date" validate:"required,datetime=2006-01-02"`
	PaymentMode     string              `json:"payment_mode" validate:"required"`
	Notes           string              `json:"notes" validate:"max=1000"`
	Items           []createItemRequest `json:"items" validate:"required,min=1"`
}

// toInput converts the request after struct validation. Item date failures are
// reported against the offending item.
func (req createRequest) toInput(actorID int64, idempotencyKey string) (CreatePurchaseEntryInput, error) {
	invoiceDate, _ := time.Parse(dateLayout, req.InvoiceDate)
	receivedDate, _ := time.Parse(dateLayout, req.ReceivedDate)
	in := CreatePurchaseEntryInput{
		SupplierID:      req.SupplierID,
		PurchaseOrderID: req.PurchaseOrderID,
		InvoiceNumber:   req.InvoiceNumber,
		InvoiceDate:     invoiceDate,
		ReceivedDate:    receivedDate,
		PaymentMode:     PaymentMode(req.PaymentMode),
		Notes:           strings.TrimSpace(req.Notes),
		CreatedBy:       actorID,
		IdempotencyKey:  strings.TrimSpace(idempotencyKey),
		Items:           make([]ItemInput, 0, len(req.Items)),
	}
	for i, item := range req.Items {
		var expiry time.Time
		if strings.TrimSpace(item.ExpiryDate) != "" {
			parsed, err := time.Parse(dateLayout, strings.TrimSpace(item.ExpiryDate))
			if err != nil {
				return CreatePurchaseEntryInput{}, &ItemValidationError{
					Index: i + 1,
					Field: "expiry_date",
					Err:   fmt.Errorf("%w: expected YYYY-MM-DD", ErrInvalidRequest),
				}
			}
			expiry = parsed
		}
		in.Items = append(in.Items, ItemInput{
			MedicationID:    item.MedicationID,
			BatchNumber:     item.BatchNumber,
			ExpiryDate:      expiry,
			PackQuantity:    item.PackQuantity,
			UnitsPerPack:    item.UnitsPerPack,
			PricePerPack:    item.PricePerPack,
			FreeQuantity:    item.FreeQuantity,
			MRP:             item.MRP,
			PurchasePrice:   item.PurchasePrice,
			PTR:             item.PTR,
			DiscountPercent: item.DiscountPercent,
			CGSTPercent:     item.CGSTPercent,
			SGSTPercent:     item.SGSTPercent,
			IGSTPercent:     item.IGSTPercent,
		})
	}
	return in, nil
}

type bulkDetailsRequest struct {
	GRNIDs []int64 `json:"grn_ids" validate:"required,min=1,max=50,dive,gt=0"`
}

type bulkApproveRequest struct {
	GRNIDs  []int64 `json:"grn_ids" validate:"required,min=1,max=50,dive,gt=0"`
	Action  string  `json:"action" validate:"required,oneof=approve reject APPROVE REJECT"`
	Remarks string  `json:"remarks" validate:"max=500"`
}

type transitionRequest struct {
	Remarks string `json:"remarks" validate:"max=500"`
}

type createdItemResponse struct {
	ID           int64  `json:"id"`
	MedicationID int64  `json:"medication_id"`
	BatchNumber  string `json:"batch_number"`
	PricePerUnit string `json:"price_per_unit"`
	TotalUnits   int64  `json:"total_units"`
	TotalValue   string `json:"total_value"`
	Quantity     int64  `json:"quantity"`
	Packing      string `json:"packing"`
	TotalAmount  string `json:"total_amount"`
	StockID      int64  `json:"stock_id"`
}

type createResponse struct {
	ID          int64                 `json:"id"`
	GRNNumber   string                `json:"grn_number"`
	Status      ApprovalStatus        `json:"status"`
	ItemCount   int                   `json:"item_count"`
	Subtotal    string                `json:"subtotal"`
	TaxAmount   string                `json:"tax_amount"`
	TotalAmount string                `json:"total_amount"`
	GrandTotal  string                `json:"grand_total"`
	Items       []createdItemResponse `json:"items"`
}

func toCreateResponse(s PurchaseEntrySummary) createResponse {
	out := createResponse{
		ID:          s.ID,
		GRNNumber:   s.GRNNumber,
		Status:      s.Status,
		ItemCount:   s.ItemCount,
		Subtotal:    s.Subtotal.StringFixed(moneyScale),
		TaxAmount:   s.TaxAmount.StringFixed(moneyScale),
		TotalAmount: s.TotalAmount.StringFixed(moneyScale),
		GrandTotal:  s.GrandTotal.StringFixed(moneyScale),
		Items:       make([]createdItemResponse, 0, len(s.Items)),
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, createdItemResponse{
			ID:           it.ID,
			MedicationID: it.MedicationID,
			BatchNumber:  it.BatchNumber,
			PricePerUnit: it.PricePerUnit.StringFixed(4),
			TotalUnits:   it.TotalUnits,
			TotalValue:   it.TotalValue.StringFixed(moneyScale),
			Quantity:     it.Quantity,
			Packing:      it.Packing,
			TotalAmount:  it.TotalAmount.StringFixed(moneyScale),
			StockID:      it.StockID,
		})
	}
	return out
}

type itemResponse struct {
	ID              int64  `json:"id"`
	MedicationID    int64  `json:"medication_id"`
	MedicationName  string `json:"medication_name"`
	BatchNumber     string `json:"batch_number"`
	ExpiryDate      string `json:"expiry_date"`
	PackQuantity    int64  `json:"pack_quantity"`
	UnitsPerPack    int64  `json:"units_per_pack"`
	PricePerPack    string `json:"price_per_pack"`
	PricePerUnit    string `json:"price_per_unit"`
	TotalUnits      int64  `json:"total_units"`
	TotalValue      string `json:"total_value"`
	Quantity        int64  `json:"quantity"`
	FreeQuantity    int64  `json:"free_quantity"`
	Packing         string `json:"packing"`
	MRP             string `json:"mrp"`
	PurchasePrice   string `json:"purchase_price"`
	PTR             string `json:"ptr"`
	DiscountPercent string `json:"discount_percent"`
	DiscountAmount  string `json:"discount_amount"`
	CGSTPercent     string `json:"cgst_percent"`
	SGSTPercent     string `json:"sgst_percent"`
	IGSTPercent     string `json:"igst_percent"`
	TaxAmount       string `json:"tax_amount"`
	TotalAmount     string `json:"total_amount"`
	MarginPercent   string `json:"margin_percent"`
	StockID         int64  `json:"stock_id,omitempty"`
}

type detailResponse struct {
	ID              int64              `json:"id"`
	GRNNumber       string             `json:"grn_number"`
	SupplierID      int64              `json:"supplier_id"`
	SupplierName    string             `json:"supplier_name"`
	PurchaseOrderID int64              `json:"purchase_order_id,omitempty"`
	PONumber        string             `json:"po_number,omitempty"`
	InvoiceNumber   string             `json:"invoice_number"`
	InvoiceDate     string             `json:"invoice_date"`
	ReceivedDate    string             `json:"received_date"`
	PaymentMode     PaymentMode        `json:"payment_mode"`
	PaymentStatus   PaymentStatus      `json:"payment_status"`
	Status          ApprovalStatus     `json:"status"`
	CreatedBy       int64              `json:"created_by"`
	CreatedByName   string             `json:"created_by_name,omitempty"`
	ApprovedBy      int64              `json:"approved_by,omitempty"`
	ApprovedByName  string             `json:"approved_by_name,omitempty"`
	ApprovedAt      *time.Time         `json:"approved_at,omitempty"`
	Remarks         string             `json:"remarks,omitempty"`
	Subtotal        string             `json:"subtotal"`
	DiscountAmount  string             `json:"discount_amount"`
	TaxAmount       string             `json:"tax_amount"`
	TotalAmount     string             `json:"total_amount"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	Items           []itemResponse     `json:"items"`
	ApprovalHistory []approvalResponse `json:"approval_history,omitempty"`
}

type approvalResponse struct {
	ActorID int64     `json:"actor_id"`
	Action  string    `json:"action"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

func toDetailResponse(d EntryDetail) detailResponse {
	out := detailResponse{
		ID:              d.ID,
		GRNNumber:       d.GRNNumber,
		SupplierID:      d.SupplierID,
		SupplierName:    d.SupplierName,
		PurchaseOrderID: d.PurchaseOrderID,
		PONumber:        d.PONumber,
		InvoiceNumber:   d.InvoiceNumber,
		InvoiceDate:     d.InvoiceDate.Format(dateLayout),
		ReceivedDate:    d.ReceivedDate.Format(dateLayout),
		PaymentMode:     d.PaymentMode,
		PaymentStatus:   d.PaymentStatus,
		Status:          d.Status,
		CreatedBy:       d.CreatedBy,
		CreatedByName:   d.CreatedByName,
		ApprovedBy:      d.ApprovedBy,
		ApprovedByName:  d.ApprovedName,
		ApprovedAt:      d.ApprovedAt,
		Remarks:         d.Remarks,
		Subtotal:        d.Subtotal.StringFixed(moneyScale),
		DiscountAmount:  d.DiscountAmount.StringFixed(moneyScale),
		TaxAmount:       d.TaxAmount.StringFixed(moneyScale),
		TotalAmount:     d.TotalAmount.StringFixed(moneyScale),
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		Items:           make([]itemResponse, 0, len(d.Items)),
	}
	for _, it := range d.Items {
		out.Items = append(out.Items, itemResponse{
			ID:              it.ID,
			MedicationID:    it.MedicationID,
			MedicationName:  it.MedicationName,
			BatchNumber:     it.BatchNumber,
			ExpiryDate:      it.ExpiryDate.Format(dateLayout),
			PackQuantity:    it.PackQuantity,
			UnitsPerPack:    it.UnitsPerPack,
			PricePerPack:    it.PricePerPack.StringFixed(moneyScale),
			PricePerUnit:    it.PricePerUnit.StringFixed(4),
			TotalUnits:      it.TotalUnits,
			TotalValue:      it.TotalValue.StringFixed(moneyScale),
			Quantity:        it.Quantity,
			FreeQuantity:    it.FreeQuantity,
			Packing:         it.Packing,
			MRP:             it.MRP.StringFixed(moneyScale),
			PurchasePrice:   it.PurchasePrice.StringFixed(4),
			PTR:             it.PTR.StringFixed(moneyScale),
			DiscountPercent: it.DiscountPercent.StringFixed(moneyScale),
			DiscountAmount:  it.DiscountAmount.StringFixed(moneyScale),
			CGSTPercent:     it.CGSTPercent.StringFixed(moneyScale),
			SGSTPercent:     it.SGSTPercent.StringFixed(moneyScale),
			IGSTPercent:     it.IGSTPercent.StringFixed(moneyScale),
			TaxAmount:       it.TaxAmount.StringFixed(moneyScale),
			TotalAmount:     it.TotalAmount.StringFixed(moneyScale),
			MarginPercent:   it.MarginPercent.StringFixed(moneyScale),
			StockID:         it.StockID,
		})
	}
	if len(d.Approvals) > 0 {
		out.ApprovalHistory = make([]approvalResponse, 0, len(d.Approvals))
		for _, a := range d.Approvals {
			out.ApprovalHistory = append(out.ApprovalHistory, approvalResponse{
				ActorID: a.ActorID,
				Action:  string(a.Action),
				Note:    a.Note,
				At:      a.At,
			})
		}
	}
	return out
}

type listItemResponse struct {
	ID            int64          `json:"id"`
	GRNNumber     string         `json:"grn_number"`
	SupplierID    int64          `json:"supplier_id"`
	SupplierName  string         `json:"supplier_name"`
	InvoiceNumber string         `json:"invoice_number"`
	ReceivedDate  string         `json:"received_date"`
	Status        ApprovalStatus `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	ItemCount     int            `json:"item_count"`
	TotalAmount   string         `json:"total_amount"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toListItemResponse(it ListItem) listItemResponse {
	return listItemResponse{
		ID:            it.ID,
		GRNNumber:     it.GRNNumber,
		SupplierID:    it.SupplierID,
		SupplierName:  it.SupplierName,
		InvoiceNumber: it.InvoiceNumber,
		ReceivedDate:  it.ReceivedDate.Format(dateLayout),
		Status:        it.Status,
		PaymentStatus: it.PaymentStatus,
		ItemCount:     it.ItemCount,
		TotalAmount:   it.TotalAmount.StringFixed(moneyScale),
		CreatedAt:     it.CreatedAt,
	}
}

type outcomeResponse struct {
	ID      int64          `json:"id"`
	Success bool           `json:"success"`
	Status  ApprovalStatus `json:"status,omitempty"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message"`
}
