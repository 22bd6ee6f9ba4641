package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pharmacy/internal/jobs"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/procurement"
)

// POReceiptRefresher recomputes the receipt state of one purchase order.
type POReceiptRefresher interface {
	RefreshPurchaseOrderReceipt(ctx context.Context, poID int64) (procurement.POReceipt, error)
}

// POReceiptRefreshJob updates purchase order received amounts after GRN commits.
type POReceiptRefreshJob struct {
	Service POReceiptRefresher
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPOReceiptRefreshJob constructs the job handler.
func NewPOReceiptRefreshJob(service POReceiptRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *POReceiptRefreshJob {
	return &POReceiptRefreshJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the refresh.
func (j *POReceiptRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("po receipt refresh: dependencies not configured")
	}
	var payload POReceiptRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.PurchaseOrderID <= 0 {
		return fmt.Errorf("po receipt refresh: bad payload: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskPOReceiptRefresh)
	receipt, err := j.Service.RefreshPurchaseOrderReceipt(ctx, payload.PurchaseOrderID)
	switch {
	case errors.Is(err, procurement.ErrNotFound):
		j.log().Warn("purchase order missing", slog.Int64("po_id", payload.PurchaseOrderID))
		return tracker.End(fmt.Errorf("po receipt refresh: %w: %w", err, asynq.SkipRetry))
	case err != nil:
		j.log().Error("refresh purchase order", slog.Int64("po_id", payload.PurchaseOrderID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.log().Info("purchase order receipt refreshed",
		slog.Int64("po_id", receipt.PurchaseOrderID),
		slog.Int64("grn_id", payload.GRNID),
		slog.String("status", receipt.Status),
		slog.String("received", receipt.ReceivedAmount.StringFixed(2)))
	return tracker.End(nil)
}

func (j *POReceiptRefreshJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *POReceiptRefreshJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPOReceiptRefresh))
	}
	return slog.Default().With(slog.String("job", TaskPOReceiptRefresh))
}
