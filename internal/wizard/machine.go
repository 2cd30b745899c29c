package wizard

import (
	"context"

	"github.com/google/uuid"
)

// Step is one position in the wizard's fixed linear flow.
type Step string

const (
	StepWelcome         Step = "welcome"
	StepInstallation    Step = "installation"
	StepConnectionCheck Step = "connection-check"
	StepTariffs         Step = "tariffs"
	StepDiscovery       Step = "discovery"
	StepInvestments     Step = "investments"
	StepSummary         Step = "summary"
	StepComplete        Step = "complete"
)

// StepOrder is the strict total order of wizard steps. There is no branching.
var StepOrder = []Step{
	StepWelcome, StepInstallation, StepConnectionCheck, StepTariffs,
	StepDiscovery, StepInvestments, StepSummary, StepComplete,
}

func stepIndex(s Step) int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// Machine is the wizard state machine. Every committed transition first runs
// the flush hook (so buffered investment edits are never dropped when leaving
// a step) and then rewrites the snapshot through the store.
type Machine struct {
	sessionID string
	store     SnapshotStore
	snap      Snapshot

	// flush runs before any transition commits. Nil means no-op.
	flush func(ctx context.Context) error
	// gate validates that the given step may be advanced past. Nil means
	// every step is advanceable.
	gate func(s Step) error
}

// NewMachine loads the session's snapshot and resumes there, defaulting to
// welcome when none exists or the stored one is unreadable.
func NewMachine(ctx context.Context, sessionID string, store SnapshotStore, flush func(context.Context) error, gate func(Step) error) *Machine {
	m := &Machine{sessionID: sessionID, store: store, flush: flush, gate: gate, snap: newSnapshot()}
	if snap, err := store.Load(ctx, sessionID); err == nil && snap != nil && stepIndex(snap.Step) >= 0 {
		if snap.InvestmentIDs == nil {
			snap.InvestmentIDs = []uuid.UUID{}
		}
		if snap.SkippedSteps == nil {
			snap.SkippedSteps = []Step{}
		}
		m.snap = *snap
	}
	return m
}

// Step returns the current step pointer.
func (m *Machine) Step() Step {
	return m.snap.Step
}

// Snapshot returns a copy of the current snapshot.
func (m *Machine) Snapshot() Snapshot {
	cp := m.snap
	cp.InvestmentIDs = append([]uuid.UUID{}, m.snap.InvestmentIDs...)
	cp.SkippedSteps = append([]Step{}, m.snap.SkippedSteps...)
	return cp
}

// CanAdvance reports whether the current step's gate passes.
func (m *Machine) CanAdvance() error {
	if m.snap.Step == StepComplete {
		return ErrTerminalStep
	}
	if m.gate != nil {
		return m.gate(m.snap.Step)
	}
	return nil
}

func (m *Machine) commit(ctx context.Context, step Step) error {
	if m.flush != nil {
		if err := m.flush(ctx); err != nil {
			return err
		}
	}
	m.snap.Step = step
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// Next advances one position if the current step's gate passes.
func (m *Machine) Next(ctx context.Context) error {
	if err := m.CanAdvance(); err != nil {
		return err
	}
	return m.commit(ctx, StepOrder[stepIndex(m.snap.Step)+1])
}

// Previous retreats one position unconditionally. At welcome it stays put
// but still flushes and persists.
func (m *Machine) Previous(ctx context.Context) error {
	idx := stepIndex(m.snap.Step)
	if m.snap.Step == StepComplete {
		return ErrTerminalStep
	}
	if idx > 0 {
		idx--
	}
	return m.commit(ctx, StepOrder[idx])
}

// Skip records the current step in the skipped list, then behaves as Next.
// Gated steps cannot be skipped past without satisfying their gate.
func (m *Machine) Skip(ctx context.Context) error {
	if err := m.CanAdvance(); err != nil {
		return err
	}
	skipped := m.snap.Step
	already := false
	for _, s := range m.snap.SkippedSteps {
		if s == skipped {
			already = true
			break
		}
	}
	if !already {
		m.snap.SkippedSteps = append(m.snap.SkippedSteps, skipped)
	}
	return m.commit(ctx, StepOrder[stepIndex(skipped)+1])
}

// GoTo jumps directly to a step. Backward jumps are unconditional; a forward
// jump must satisfy the gate of every step it passes over, so the wizard can
// never land past installation without an installation id.
func (m *Machine) GoTo(ctx context.Context, target Step) error {
	tIdx := stepIndex(target)
	if tIdx < 0 {
		return ErrUnknownStep
	}
	if m.snap.Step == StepComplete {
		return ErrTerminalStep
	}
	cIdx := stepIndex(m.snap.Step)
	if m.gate != nil {
		for i := cIdx; i < tIdx; i++ {
			if err := m.gate(StepOrder[i]); err != nil {
				return err
			}
		}
	}
	return m.commit(ctx, target)
}

// Complete flushes, marks the snapshot complete and moves to the terminal step.
func (m *Machine) Complete(ctx context.Context) error {
	if m.snap.Step == StepComplete {
		return nil
	}
	if m.flush != nil {
		if err := m.flush(ctx); err != nil {
			return err
		}
	}
	m.snap.Completed = true
	m.snap.Step = StepComplete
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// Reset clears storage and state unconditionally, returning to welcome.
func (m *Machine) Reset(ctx context.Context) error {
	m.snap = newSnapshot()
	return m.store.Delete(ctx, m.sessionID)
}

// ClearRecords drops every recorded id and returns to the installation step.
// Used when the installation itself is deleted mid-session.
func (m *Machine) ClearRecords(ctx context.Context) error {
	m.snap.InstallationID = nil
	m.snap.TariffID = nil
	m.snap.InvestmentIDs = []uuid.UUID{}
	m.snap.Completed = false
	m.snap.Step = StepInstallation
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// SetInstallationID records the created installation and persists the snapshot.
func (m *Machine) SetInstallationID(ctx context.Context, id uuid.UUID) error {
	m.snap.InstallationID = &id
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// SetTariffID records the created tariff and persists the snapshot.
func (m *Machine) SetTariffID(ctx context.Context, id uuid.UUID) error {
	m.snap.TariffID = &id
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// AddInvestmentID appends a created investment id and persists the snapshot.
func (m *Machine) AddInvestmentID(ctx context.Context, id uuid.UUID) error {
	m.snap.InvestmentIDs = append(m.snap.InvestmentIDs, id)
	return m.store.Save(ctx, m.sessionID, m.snap)
}

// RemoveInvestmentID drops a deleted investment id and persists the snapshot.
func (m *Machine) RemoveInvestmentID(ctx context.Context, id uuid.UUID) error {
	kept := m.snap.InvestmentIDs[:0]
	for _, existing := range m.snap.InvestmentIDs {
		if existing != id {
			kept = append(kept, existing)
		}
	}
	m.snap.InvestmentIDs = kept
	return m.store.Save(ctx, m.sessionID, m.snap)
}
