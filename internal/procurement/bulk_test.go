package procurement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pharmacy/internal/shared"
)

func seedEntries(t *testing.T, f *fixture, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		summary, err := f.service.CreatePurchaseEntry(context.Background(), createInput(
			itemInput(10, "PCM-2401", 1, 10, "10.00"),
			itemInput(11, "AMX-77", 2, 10, "20.00"),
		))
		require.NoError(t, err)
		ids = append(ids, summary.ID)
	}
	return ids
}

func TestBulkDetailsRejectsBadIDSets(t *testing.T) {
	f := newFixture(t)
	tooMany := make([]int64, MaxBulkIDs+1)
	for i := range tooMany {
		tooMany[i] = int64(i + 1)
	}
	for name, ids := range map[string][]int64{
		"empty":    nil,
		"too many": tooMany,
		"zero id":  {1, 0},
		"negative": {-4},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.service.BulkDetails(context.Background(), BulkDetailsInput{IDs: ids})
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestBulkDetailsReportsMissingIDsInRequestOrder(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 2)

	res, err := f.service.BulkDetails(context.Background(), BulkDetailsInput{IDs: []int64{ids[1], 999, ids[0], ids[1]}, RequestedBy: 42})
	require.NoError(t, err)
	require.Equal(t, 2, res.FoundCount)
	require.Equal(t, []int64{999}, res.NotFoundIDs)
	require.Equal(t, ids[1], res.Results[0].ID)
	require.Equal(t, ids[0], res.Results[1].ID)
	for _, r := range res.Results {
		require.Len(t, r.Items, 2)
		require.NotEmpty(t, r.Items[0].MedicationName)
	}
	want := f.repo.entries[ids[0]].TotalAmount.Add(f.repo.entries[ids[1]].TotalAmount)
	require.True(t, want.Equal(res.TotalAmount))

	require.Equal(t, 1, f.repo.headerCalls)
	require.Equal(t, 1, f.repo.itemCalls)
	require.Contains(t, f.audit.actions(), "GRN_BULK_DETAILS")
}

func TestBulkDetailsAllMissing(t *testing.T) {
	f := newFixture(t)
	res, err := f.service.BulkDetails(context.Background(), BulkDetailsInput{IDs: []int64{5, 6}})
	require.NoError(t, err)
	require.Zero(t, res.FoundCount)
	require.Empty(t, res.Results)
	require.Equal(t, []int64{5, 6}, res.NotFoundIDs)
	require.True(t, res.TotalAmount.IsZero())
}

func TestGetEntry(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 1)
	detail, err := f.service.GetEntry(context.Background(), ids[0], 42)
	require.NoError(t, err)
	require.Equal(t, "GRN-20261019-0001", detail.GRNNumber)

	_, err = f.service.GetEntry(context.Background(), 999, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetEntryIncludesApprovalHistory(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 2)

	detail, err := f.service.GetEntry(context.Background(), ids[0], 42)
	require.NoError(t, err)
	require.Empty(t, detail.Approvals)

	_, err = f.service.Transition(context.Background(), ids[0], ActionReject, "short shipped", 9)
	require.NoError(t, err)
	_, err = f.service.Transition(context.Background(), ids[1], ActionApprove, "", 9)
	require.NoError(t, err)

	detail, err = f.service.GetEntry(context.Background(), ids[0], 42)
	require.NoError(t, err)
	require.Len(t, detail.Approvals, 1)
	require.Equal(t, shared.ApprovalReject, detail.Approvals[0].Action)
	require.Equal(t, "short shipped", detail.Approvals[0].Note)
	require.EqualValues(t, 9, detail.Approvals[0].ActorID)

	f.approvals.listErr = errors.New("connection reset")
	_, err = f.service.GetEntry(context.Background(), ids[0], 42)
	require.ErrorIs(t, err, ErrPersistence)
}

func TestBulkTransitionIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 3)

	_, err := f.service.Transition(context.Background(), ids[1], ActionApprove, "", 7)
	require.NoError(t, err)

	res, err := f.service.BulkTransition(context.Background(), BulkTransitionInput{
		IDs:     []int64{ids[0], ids[1], 999, ids[2]},
		Action:  "APPROVE",
		Remarks: "checked",
		ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Succeeded)
	require.Equal(t, 2, res.Failed)
	require.Len(t, res.Results, 4)

	require.True(t, res.Results[0].Success)
	require.Equal(t, StatusApproved, res.Results[0].Status)
	require.False(t, res.Results[1].Success)
	require.Equal(t, OutcomeInvalidTransition, res.Results[1].Code)
	require.Equal(t, StatusApproved, res.Results[1].Status)
	require.Equal(t, OutcomeNotFound, res.Results[2].Code)
	require.True(t, res.Results[3].Success)

	approved := f.repo.entries[ids[0]]
	require.Equal(t, int64(9), approved.ApprovedBy)
	require.Equal(t, "checked", approved.Remarks)
	require.NotNil(t, approved.ApprovedAt)
	require.Equal(t, int64(7), f.repo.entries[ids[1]].ApprovedBy)

	require.Len(t, f.approvals.logs, 3)
	for _, log := range f.approvals.logs {
		require.Equal(t, shared.ApprovalApprove, log.Action)
	}
}

func TestBulkTransitionStorageFailureIsPerID(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 2)
	f.repo.failTransition[ids[0]] = true

	res, err := f.service.BulkTransition(context.Background(), BulkTransitionInput{IDs: ids, Action: ActionReject, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, OutcomePersistence, res.Results[0].Code)
	require.True(t, res.Results[1].Success)
	require.Equal(t, StatusRejected, res.Results[1].Status)
	require.Equal(t, StatusPending, f.repo.entries[ids[0]].Status)
}

func TestTransitionTerminalStates(t *testing.T) {
	f := newFixture(t)
	ids := seedEntries(t, f, 1)

	entry, err := f.service.Transition(context.Background(), ids[0], ActionReject, "damaged cartons", 9)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, entry.Status)
	require.True(t, entry.Status.Terminal())

	current, err := f.service.Transition(context.Background(), ids[0], ActionApprove, "", 9)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, StatusRejected, current.Status)

	_, err = f.service.Transition(context.Background(), 999, ActionApprove, "", 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBulkTransitionValidatesInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.BulkTransition(context.Background(), BulkTransitionInput{IDs: []int64{1}, Action: "void", ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.service.BulkTransition(context.Background(), BulkTransitionInput{IDs: []int64{1}, Action: ActionApprove})
	require.ErrorIs(t, err, ErrInvalidRequest)
	_, err = f.service.BulkTransition(context.Background(), BulkTransitionInput{Action: ActionApprove, ActorID: 1})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestNormalizeIDsKeepsFirstOccurrence(t *testing.T) {
	ids, err := normalizeIDs([]int64{3, 1, 3, 2, 1})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1, 2}, ids)
}
