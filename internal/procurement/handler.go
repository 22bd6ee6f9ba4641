package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/rbac"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// IdempotencyHeader carries the client supplied request key.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages goods receipt endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers GRN routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermGRNView))
		r.Get("/grns", h.handleList)
		r.Get("/grns/{id}", h.handleGet)
		r.Post("/grns/bulk-details", h.handleBulkDetails)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermGRNCreate))
		r.Post("/grns", h.handleCreate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermGRNApprove))
		r.Post("/grns/bulk-approve", h.handleBulkApprove)
		r.Post("/grns/{id}/approve", h.handleTransition(ActionApprove))
		r.Post("/grns/{id}/reject", h.handleTransition(ActionReject))
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.validationFailed(w, err)
		return
	}
	input, err := req.toInput(actor.ID, r.Header.Get(IdempotencyHeader))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	summary, err := h.service.CreatePurchaseEntry(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toCreateResponse(summary))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     q.Get("status"),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	limit, offset = shared.NormalizePage(limit, offset)
	items, total, err := h.service.ListEntries(r.Context(), limit, offset, filters)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make([]listItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toListItemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"results":    out,
		"pagination": shared.Pagination{Limit: limit, Offset: offset, Total: total},
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	detail, err := h.service.GetEntry(r.Context(), id, actor.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDetailResponse(detail))
}

func (h *Handler) handleBulkDetails(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req bulkDetailsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.validationFailed(w, err)
		return
	}
	res, err := h.service.BulkDetails(r.Context(), BulkDetailsInput{IDs: req.GRNIDs, RequestedBy: actor.ID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results := make([]detailResponse, 0, len(res.Results))
	for _, d := range res.Results {
		results = append(results, toDetailResponse(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"results":       results,
		"found_count":   res.FoundCount,
		"not_found_ids": res.NotFoundIDs,
		"total_amount":  res.TotalAmount.StringFixed(moneyScale),
	})
}

func (h *Handler) handleBulkApprove(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var req bulkApproveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.validationFailed(w, err)
		return
	}
	res, err := h.service.BulkTransition(r.Context(), BulkTransitionInput{
		IDs:     req.GRNIDs,
		Action:  TransitionAction(req.Action),
		Remarks: req.Remarks,
		ActorID: actor.ID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	results := make([]outcomeResponse, 0, len(res.Results))
	for _, o := range res.Results {
		results = append(results, outcomeResponse{ID: o.ID, Success: o.Success, Status: o.Status, Error: o.Code, Message: o.Message})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"results":         results,
		"succeeded_count": res.Succeeded,
		"failed_count":    res.Failed,
	})
}

func (h *Handler) handleTransition(action TransitionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		actor, _ := shared.ActorFromContext(r.Context())
		var req transitionRequest
		if r.ContentLength > 0 {
			if err := httpx.DecodeJSON(r, &req); err != nil {
				h.badRequest(w, err)
				return
			}
			if err := h.validator.Struct(req); err != nil {
				h.validationFailed(w, err)
				return
			}
		}
		entry, err := h.service.Transition(r.Context(), id, action, req.Remarks, actor.ID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"id":          entry.ID,
			"grn_number":  entry.GRNNumber,
			"status":      entry.Status,
			"approved_by": entry.ApprovedBy,
			"approved_at": entry.ApprovedAt,
		})
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Invalid Request",
			Status: http.StatusBadRequest,
			Detail: "grn id must be a positive integer",
			Code:   "INVALID_REQUEST",
		})
		return 0, false
	}
	return id, true
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Invalid Request",
		Status: http.StatusBadRequest,
		Detail: err.Error(),
		Code:   "INVALID_REQUEST",
	})
}

func (h *Handler) validationFailed(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		h.badRequest(w, err)
		return
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Title:  "Invalid Request",
		Status: http.StatusBadRequest,
		Detail: "failed checks: " + strings.Join(fields, ", "),
		Code:   "INVALID_REQUEST",
		Field:  verrs[0].Field(),
	})
}

// writeError maps service errors onto problem documents.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var itemErr *ItemValidationError
	switch {
	case errors.Is(err, ErrPersistence):
		h.logger.Error("grn request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:  "Internal Error",
			Status: http.StatusInternalServerError,
			Detail: "storage failure, no changes were applied",
			Code:   "PERSISTENCE_ERROR",
		})
	case errors.As(err, &itemErr):
		httpx.WriteProblem(w, httpx.ProblemDetail{
			Title:     "Item Validation Failed",
			Status:    http.StatusUnprocessableEntity,
			Detail:    itemErr.Err.Error(),
			Code:      "ITEM_VALIDATION_ERROR",
			ItemIndex: itemErr.Index,
			Field:     itemErr.Field,
		})
	case errors.Is(err, ErrInvalidPacking):
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Invalid Packing", Status: http.StatusUnprocessableEntity, Detail: err.Error(), Code: "INVALID_PACKING"})
	case errors.Is(err, ErrInvalidRequest):
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Invalid Request", Status: http.StatusBadRequest, Detail: err.Error(), Code: "INVALID_REQUEST"})
	case errors.Is(err, ErrNotFound):
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Not Found", Status: http.StatusNotFound, Detail: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, ErrInvalidTransition):
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Invalid Transition", Status: http.StatusConflict, Detail: err.Error(), Code: "INVALID_TRANSITION"})
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.WriteProblem(w, httpx.ProblemDetail{Title: "Conflict", Status: http.StatusConflict, Detail: err.Error(), Code: "DUPLICATE_REQUEST"})
	default:
		h.logger.Error("grn request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
