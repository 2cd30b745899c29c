package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T, gate func(Step) error) (*Machine, *MemorySnapshotStore) {
	t.Helper()
	store := NewMemorySnapshotStore()
	m := NewMachine(context.Background(), "session-1", store, nil, gate)
	return m, store
}

func TestMachineStartsAtWelcome(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	assert.Equal(t, StepWelcome, m.Step())
	assert.False(t, m.Snapshot().Completed)
}

func TestMachineNextWalksStepOrder(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	ctx := context.Background()
	for _, want := range StepOrder[1:] {
		require.NoError(t, m.Next(ctx))
		assert.Equal(t, want, m.Step())
	}
	assert.ErrorIs(t, m.Next(ctx), ErrTerminalStep)
}

func TestMachineGateBlocksNextAndSkip(t *testing.T) {
	gate := func(s Step) error {
		if s == StepInstallation {
			return ErrInstallationMissing
		}
		return nil
	}
	m, _ := newTestMachine(t, gate)
	ctx := context.Background()
	require.NoError(t, m.Next(ctx))
	assert.Equal(t, StepInstallation, m.Step())

	assert.ErrorIs(t, m.Next(ctx), ErrInstallationMissing)
	assert.ErrorIs(t, m.Skip(ctx), ErrInstallationMissing)
	assert.Equal(t, StepInstallation, m.Step())
	assert.Empty(t, m.Snapshot().SkippedSteps)
}

func TestMachineSkipRecordsStepOnce(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	ctx := context.Background()
	require.NoError(t, m.Next(ctx))
	require.NoError(t, m.Skip(ctx))
	assert.Equal(t, StepConnectionCheck, m.Step())
	assert.Equal(t, []Step{StepInstallation}, m.Snapshot().SkippedSteps)

	require.NoError(t, m.Previous(ctx))
	require.NoError(t, m.Skip(ctx))
	assert.Equal(t, []Step{StepInstallation}, m.Snapshot().SkippedSteps)
}

func TestMachinePreviousStaysAtWelcome(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	ctx := context.Background()
	require.NoError(t, m.Previous(ctx))
	assert.Equal(t, StepWelcome, m.Step())
}

func TestMachineGoToForwardChecksEveryGate(t *testing.T) {
	installID := uuid.New()
	var snapHasInstall bool
	gate := func(s Step) error {
		if s == StepInstallation && !snapHasInstall {
			return ErrInstallationMissing
		}
		return nil
	}
	m, _ := newTestMachine(t, gate)
	ctx := context.Background()

	// A forward jump over the installation gate must not land.
	err := m.GoTo(ctx, StepInvestments)
	assert.ErrorIs(t, err, ErrInstallationMissing)
	assert.Equal(t, StepWelcome, m.Step())

	require.NoError(t, m.SetInstallationID(ctx, installID))
	snapHasInstall = true
	require.NoError(t, m.GoTo(ctx, StepInvestments))
	assert.Equal(t, StepInvestments, m.Step())

	// Backward jumps are unconditional.
	snapHasInstall = false
	require.NoError(t, m.GoTo(ctx, StepWelcome))
	assert.Equal(t, StepWelcome, m.Step())
}

func TestMachineGoToUnknownStep(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	assert.ErrorIs(t, m.GoTo(context.Background(), Step("checkout")), ErrUnknownStep)
}

func TestMachineSnapshotRoundTrip(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()
	installID, tariffID, invID := uuid.New(), uuid.New(), uuid.New()

	m := NewMachine(ctx, "roundtrip", store, nil, nil)
	require.NoError(t, m.SetInstallationID(ctx, installID))
	require.NoError(t, m.SetTariffID(ctx, tariffID))
	require.NoError(t, m.AddInvestmentID(ctx, invID))
	require.NoError(t, m.GoTo(ctx, StepDiscovery))

	resumed := NewMachine(ctx, "roundtrip", store, nil, nil)
	snap := resumed.Snapshot()
	assert.Equal(t, StepDiscovery, resumed.Step())
	require.NotNil(t, snap.InstallationID)
	assert.Equal(t, installID, *snap.InstallationID)
	require.NotNil(t, snap.TariffID)
	assert.Equal(t, tariffID, *snap.TariffID)
	assert.Equal(t, []uuid.UUID{invID}, snap.InvestmentIDs)
}

func TestMachineIgnoresUnknownStoredStep(t *testing.T) {
	store := NewMemorySnapshotStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "stale", Snapshot{Step: Step("legacy-step")}))

	m := NewMachine(ctx, "stale", store, nil, nil)
	assert.Equal(t, StepWelcome, m.Step())
}

func TestMachineFlushRunsBeforeCommit(t *testing.T) {
	flushed := 0
	flushErr := errors.New("write failed")
	failing := false
	flush := func(context.Context) error {
		flushed++
		if failing {
			return flushErr
		}
		return nil
	}
	store := NewMemorySnapshotStore()
	m := NewMachine(context.Background(), "flush", store, flush, nil)
	ctx := context.Background()

	require.NoError(t, m.Next(ctx))
	assert.Equal(t, 1, flushed)

	failing = true
	assert.ErrorIs(t, m.Next(ctx), flushErr)
	// A failed flush aborts the transition entirely.
	assert.Equal(t, StepInstallation, m.Step())
}

func TestMachineCompleteIsTerminal(t *testing.T) {
	m, store := newTestMachine(t, nil)
	ctx := context.Background()
	require.NoError(t, m.Complete(ctx))
	assert.Equal(t, StepComplete, m.Step())
	assert.True(t, m.Snapshot().Completed)

	assert.ErrorIs(t, m.Previous(ctx), ErrTerminalStep)
	assert.ErrorIs(t, m.GoTo(ctx, StepSummary), ErrTerminalStep)
	// Complete is idempotent.
	require.NoError(t, m.Complete(ctx))

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, StepWelcome, m.Step())
	snap, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestMachineRemoveInvestmentID(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	ctx := context.Background()
	keep, drop := uuid.New(), uuid.New()
	require.NoError(t, m.AddInvestmentID(ctx, keep))
	require.NoError(t, m.AddInvestmentID(ctx, drop))
	require.NoError(t, m.RemoveInvestmentID(ctx, drop))
	assert.Equal(t, []uuid.UUID{keep}, m.Snapshot().InvestmentIDs)
}
