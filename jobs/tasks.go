package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pharmacy/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPOReceiptRefresh recomputes purchase order receipt progress after a GRN commit.
	TaskPOReceiptRefresh = "procurement:po_receipt_refresh"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// POReceiptRefreshPayload identifies the purchase order touched by a GRN.
type POReceiptRefreshPayload struct {
	PurchaseOrderID int64 `json:"purchase_order_id"`
	GRNID           int64  `json:"grn_id"`
	Reason          string `json:"reason,omitempty"`
}

// NewPOReceiptRefreshTask builds the refresh task. The task id is derived from
// the GRN and the reason so repeated publishes for one receipt event enqueue
// once while a later approve or reject still schedules its own refresh.
func NewPOReceiptRefreshTask(poID, grnID int64, reason string) (*asynq.Task, error) {
	if poID <= 0 {
		return nil, fmt.Errorf("po receipt refresh: purchase order id must be positive")
	}
	if reason == "" {
		reason = "manual"
	}
	body, err := json.Marshal(POReceiptRefreshPayload{PurchaseOrderID: poID, GRNID: grnID, Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPOReceiptRefresh, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(fmt.Sprintf("po-receipt-%d-%d-%s", poID, grnID, strings.ToLower(reason))),
	), nil
}

// IdempotencyCleanupPayload configures the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewIdempotencyCleanupTask builds the cleanup task. Zero retention uses the job default.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// NewTask resolves a task type by name for manual triggering.
func NewTask(taskType string, args map[string]string) (*asynq.Task, error) {
	switch taskType {
	case TaskPOReceiptRefresh, "po_receipt_refresh":
		var poID, grnID int64
		if _, err := fmt.Sscan(args["po_id"], &poID); err != nil {
			return nil, fmt.Errorf("po_receipt_refresh requires po_id: %w", err)
		}
		if raw := args["grn_id"]; raw != "" {
			if _, err := fmt.Sscan(raw, &grnID); err != nil {
				return nil, fmt.Errorf("invalid grn_id: %w", err)
			}
		}
		return NewPOReceiptRefreshTask(poID, grnID, args["reason"])
	case TaskIdempotencyCleanup, "idempotency_cleanup":
		var retention time.Duration
		if raw := args["retention"]; raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid retention: %w", err)
			}
			retention = d
		}
		return NewIdempotencyCleanupTask(retention)
	default:
		return nil, fmt.Errorf("unknown job %q", taskType)
	}
}
