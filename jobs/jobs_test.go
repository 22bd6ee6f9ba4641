package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/odyssey-pharmacy/internal/jobs"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/procurement"
	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubRefresher struct {
	calls []int64
	err   error
}

func (s *stubRefresher) RefreshPurchaseOrderReceipt(ctx context.Context, poID int64) (procurement.POReceipt, error) {
	s.calls = append(s.calls, poID)
	if s.err != nil {
		return procurement.POReceipt{}, s.err
	}
	return procurement.POReceipt{PurchaseOrderID: poID, ReceivedAmount: decimal.NewFromInt(50), TotalAmount: decimal.NewFromInt(100), Status: procurement.POStatusPartial}, nil
}

func TestPOReceiptRefreshTaskPayload(t *testing.T) {
	task, err := NewPOReceiptRefreshTask(77, 9, "create")
	require.NoError(t, err)
	require.Equal(t, TaskPOReceiptRefresh, task.Type())
	var payload POReceiptRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, POReceiptRefreshPayload{PurchaseOrderID: 77, GRNID: 9, Reason: "create"}, payload)

	_, err = NewPOReceiptRefreshTask(0, 9, "create")
	require.Error(t, err)
}

func TestPOReceiptRefreshJobHandle(t *testing.T) {
	refresher := &stubRefresher{}
	job := NewPOReceiptRefreshJob(refresher, quietLogger, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewPOReceiptRefreshTask(77, 9, "create")
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{77}, refresher.calls)

	refresher.err = procurement.ErrNotFound
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	refresher.err = errors.New("connection refused")
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskPOReceiptRefresh, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubCleaner struct {
	retention time.Duration
	calls     int
}

func (s *stubCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.calls++
	s.retention = olderThan
	return 3, nil
}

func TestIdempotencyCleanupRespectsLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client)

	cleaner := &stubCleaner{}
	job := &IdempotencyCleanupJob{Store: cleaner, Locker: locker, Retention: 48 * time.Hour, Logger: quietLogger,
		Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, cleaner.calls)
	require.Equal(t, 48*time.Hour, cleaner.retention)
	require.False(t, mr.Exists(shared.JobLockKey(TaskIdempotencyCleanup)))

	held, err := locker.Obtain(context.Background(), shared.JobLockKey(TaskIdempotencyCleanup), time.Minute, nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, cleaner.calls)
	require.NoError(t, held.Release(context.Background()))

	override, err := NewIdempotencyCleanupTask(24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), override))
	require.Equal(t, 24*time.Hour, cleaner.retention)
}

func TestClientEnqueuesOneRefreshPerReceiptEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()}, quietLogger)
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	require.NoError(t, client.PurchaseOrderReceived(ctx, 77, 9, "create"))
	require.NoError(t, client.PurchaseOrderReceived(ctx, 77, 9, "create"))
	require.NoError(t, client.PurchaseOrderReceived(ctx, 77, 9, "REJECT"))

	require.True(t, mr.Exists("asynq:{default}:t:po-receipt-77-9-create"))
	require.True(t, mr.Exists("asynq:{default}:t:po-receipt-77-9-reject"))
	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	require.Len(t, pending, 2)
}

func TestNewTaskResolvesNames(t *testing.T) {
	task, err := NewTask("po_receipt_refresh", map[string]string{"po_id": "12", "reason": "backfill"})
	require.NoError(t, err)
	require.Equal(t, TaskPOReceiptRefresh, task.Type())
	var refresh POReceiptRefreshPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &refresh))
	require.Equal(t, "backfill", refresh.Reason)

	task, err = NewTask(TaskIdempotencyCleanup, map[string]string{"retention": "72h"})
	require.NoError(t, err)
	var payload IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, 72, payload.RetentionHours)

	_, err = NewTask("po_receipt_refresh", nil)
	require.Error(t, err)
	_, err = NewTask("gl:rebuild", nil)
	require.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestJobsHealthEndpoint(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Failed: 1}}, quietLogger).MountRoutes(r)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":4,"failed_today":1}`, rr.Body.String())

	r = chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, quietLogger).MountRoutes(r)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
