package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

// MaxBulkIDs caps the id set accepted by bulk operations.
const MaxBulkIDs = 50

const approvalModule = "GRN"

// BulkDetailsInput requests projections for many GRNs.
type BulkDetailsInput struct {
	IDs         []int64
	RequestedBy int64
}

// BulkDetailsResult holds projections in request order.
type BulkDetailsResult struct {
	Results     []EntryDetail
	NotFoundIDs []int64
	FoundCount  int
	TotalAmount decimal.Decimal
}

// normalizeIDs validates cardinality and collapses duplicates keeping first occurrence.
func normalizeIDs(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one grn id is required", ErrInvalidRequest)
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: grn id %d must be positive", ErrInvalidRequest, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxBulkIDs {
		return nil, fmt.Errorf("%w: at most %d grn ids per request", ErrInvalidRequest, MaxBulkIDs)
	}
	return out, nil
}

// BulkDetails loads many GRNs with exactly two storage round-trips issued concurrently.
func (s *Service) BulkDetails(ctx context.Context, input BulkDetailsInput) (BulkDetailsResult, error) {
	if len(input.IDs) > MaxBulkIDs {
		return BulkDetailsResult{}, fmt.Errorf("%w: at most %d grn ids per request", ErrInvalidRequest, MaxBulkIDs)
	}
	ids, err := normalizeIDs(input.IDs)
	if err != nil {
		return BulkDetailsResult{}, err
	}

	var headers []EntryDetail
	var items []ItemDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		headers, err = s.repo.ListEntryHeaders(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.repo.ListEntryItems(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return BulkDetailsResult{}, persistence("load grn details", err)
	}

	byID := make(map[int64]*EntryDetail, len(headers))
	for i := range headers {
		headers[i].Items = []ItemDetail{}
		byID[headers[i].ID] = &headers[i]
	}
	for _, item := range items {
		if h, ok := byID[item.GRNID]; ok {
			h.Items = append(h.Items, item)
		}
	}

	res := BulkDetailsResult{Results: make([]EntryDetail, 0, len(ids)), NotFoundIDs: []int64{}}
	for _, id := range ids {
		h, ok := byID[id]
		if !ok {
			res.NotFoundIDs = append(res.NotFoundIDs, id)
			continue
		}
		res.Results = append(res.Results, *h)
		res.TotalAmount = res.TotalAmount.Add(h.TotalAmount)
	}
	res.FoundCount = len(res.Results)

	s.recordAudit(ctx, input.RequestedBy, "GRN_BULK_DETAILS", joinIDs(ids), map[string]any{
		"requested_ids": ids,
		"found_count":   res.FoundCount,
		"requested_by":  input.RequestedBy,
	})
	return res, nil
}

// TransitionAction is the requested approval decision.
type TransitionAction string

const (
	ActionApprove TransitionAction = "approve"
	ActionReject  TransitionAction = "reject"
)

// Target returns the status reached by the action.
func (a TransitionAction) Target() (ApprovalStatus, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

// BulkTransitionInput requests the same decision for many GRNs.
type BulkTransitionInput struct {
	IDs     []int64
	Action  TransitionAction
	Remarks string
	ActorID int64
}

// Outcome codes reported per id.
const (
	OutcomeNotFound          = "NOT_FOUND"
	OutcomeInvalidTransition = "INVALID_TRANSITION"
	OutcomePersistence       = "PERSISTENCE_ERROR"
)

// TransitionOutcome is the per-id result of a bulk transition.
type TransitionOutcome struct {
	ID      int64
	Success bool
	Status  ApprovalStatus
	Code    string
	Message string
}

// BulkTransitionResult aggregates per-id outcomes in request order.
type BulkTransitionResult struct {
	Results   []TransitionOutcome
	Succeeded int
	Failed    int
}

// BulkTransition approves or rejects many GRNs. Each id is an independent unit
// of work; failures never affect other ids.
func (s *Service) BulkTransition(ctx context.Context, input BulkTransitionInput) (BulkTransitionResult, error) {
	input.Action = TransitionAction(strings.ToLower(strings.TrimSpace(string(input.Action))))
	if _, ok := input.Action.Target(); !ok {
		return BulkTransitionResult{}, fmt.Errorf("%w: action must be approve or reject", ErrInvalidRequest)
	}
	if input.ActorID <= 0 {
		return BulkTransitionResult{}, fmt.Errorf("%w: actor is required", ErrInvalidRequest)
	}
	if len(input.IDs) > MaxBulkIDs {
		return BulkTransitionResult{}, fmt.Errorf("%w: at most %d grn ids per request", ErrInvalidRequest, MaxBulkIDs)
	}
	ids, err := normalizeIDs(input.IDs)
	if err != nil {
		return BulkTransitionResult{}, err
	}

	results := make([]TransitionOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, id := range ids {
		g.Go(func() error {
			entry, err := s.Transition(ctx, id, input.Action, input.Remarks, input.ActorID)
			results[i] = outcomeFor(id, entry, err)
			return nil
		})
	}
	_ = g.Wait()

	res := BulkTransitionResult{Results: results}
	for _, r := range results {
		if r.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
	s.logger.Info("grn bulk transition", slog.String("action", string(input.Action)),
		slog.Int("succeeded", res.Succeeded), slog.Int("failed", res.Failed))
	return res, nil
}

// Transition moves one GRN out of PENDING using a conditional update.
func (s *Service) Transition(ctx context.Context, id int64, action TransitionAction, remarks string, actorID int64) (PurchaseEntry, error) {
	target, ok := action.Target()
	if !ok {
		return PurchaseEntry{}, fmt.Errorf("%w: action must be approve or reject", ErrInvalidRequest)
	}
	if id <= 0 {
		return PurchaseEntry{}, fmt.Errorf("%w: grn id must be positive", ErrInvalidRequest)
	}
	remarks = strings.TrimSpace(remarks)
	now := s.clock()

	var updated PurchaseEntry
	var applied bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		updated, applied, err = tx.TransitionEntry(ctx, id, StatusPending, target, actorID, now, remarks)
		return err
	})
	if err != nil {
		s.countOutcome(action, OutcomePersistence)
		return PurchaseEntry{}, persistence("transition grn", err)
	}
	if !applied {
		current, err := s.repo.GetEntry(ctx, id)
		switch {
		case errors.Is(err, ErrNotFound):
			s.countOutcome(action, OutcomeNotFound)
			return PurchaseEntry{}, fmt.Errorf("%w: grn %d", ErrNotFound, id)
		case err != nil:
			s.countOutcome(action, OutcomePersistence)
			return PurchaseEntry{}, persistence("load grn", err)
		default:
			s.countOutcome(action, OutcomeInvalidTransition)
			return current, fmt.Errorf("%w: grn %d is %s", ErrInvalidTransition, id, current.Status)
		}
	}

	s.countOutcome(action, "SUCCESS")
	approvalAction := shared.ApprovalApprove
	if target == StatusRejected {
		approvalAction = shared.ApprovalReject
	}
	if s.approvals != nil {
		if err := s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  approvalModule,
			RefID:   shared.ApprovalRef(approvalModule, id),
			ActorID: actorID,
			Action:  approvalAction,
			Note:    remarks,
			At:      now,
		}); err != nil {
			s.logger.Warn("record approval", slog.Int64("grn_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actorID, "GRN_"+string(approvalAction), strconv.FormatInt(id, 10), map[string]any{
		"grn_number": updated.GRNNumber,
		"status":     string(updated.Status),
		"remarks":    remarks,
	})
	s.publishReceipt(ctx, updated, string(action))
	return updated, nil
}

func (s *Service) countOutcome(action TransitionAction, result string) {
	if s.metrics != nil {
		s.metrics.ApprovalOutcome(string(action), result)
	}
}

func outcomeFor(id int64, entry PurchaseEntry, err error) TransitionOutcome {
	out := TransitionOutcome{ID: id, Status: entry.Status}
	switch {
	case err == nil:
		out.Success = true
		out.Message = "ok"
	case errors.Is(err, ErrNotFound):
		out.Code = OutcomeNotFound
		out.Message = "grn not found"
	case errors.Is(err, ErrInvalidTransition):
		out.Code = OutcomeInvalidTransition
		out.Message = fmt.Sprintf("grn is already %s", strings.ToLower(string(entry.Status)))
	default:
		out.Code = OutcomePersistence
		out.Message = "storage failure"
	}
	return out
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
