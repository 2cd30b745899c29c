package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"solhome-backend/internal/discovery"
	"solhome-backend/internal/geocode"
	"solhome-backend/internal/hub"
	"solhome-backend/internal/models"
	"solhome-backend/internal/queue"
	"solhome-backend/internal/records"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
)

// Deps are the collaborators a controller composes.
type Deps struct {
	Records   RecordStore
	Hub       hub.Discoverer
	Geocoder  geocode.Geocoder
	Snapshots SnapshotStore
	Matcher   *discovery.Matcher
	Clock     queue.Clock
	Debounce  time.Duration
	Logger    zerolog.Logger
}

// Controller drives one wizard session: it owns the state machine, seeds the
// update queue, and exposes the operations the UI steps call. A single mutex
// serializes UI calls and timer callbacks, mirroring the one-execution-context
// model the flow was designed for.
type Controller struct {
	mu        sync.Mutex
	sessionID string
	deps      Deps
	machine   *Machine
	queue     *queue.Queue

	// investments is the visible optimistic copy of the record list. It is
	// replaced wholesale on reload, never patched.
	investments []models.Investment
	mappings    map[uuid.UUID]map[models.FieldName]models.FieldMapping
	lastResult  *models.MatchResult
	loading     bool
	currentErr  string
}

// NewController builds a controller for the session, resuming from a
// persisted snapshot when one exists.
func NewController(ctx context.Context, sessionID string, deps Deps) *Controller {
	if deps.Matcher == nil {
		deps.Matcher = discovery.NewMatcher()
	}
	if deps.Debounce <= 0 {
		deps.Debounce = 500 * time.Millisecond
	}
	c := &Controller{
		sessionID: sessionID,
		deps:      deps,
		mappings:  map[uuid.UUID]map[models.FieldName]models.FieldMapping{},
	}
	c.queue = queue.New(deps.Debounce, deps.Clock, queue.SenderFunc(c.sendUpdate))
	c.queue.OnError = c.onAsyncWriteError
	c.machine = NewMachine(ctx, sessionID, deps.Snapshots, c.queue.Flush, c.gate)

	if snap := c.machine.Snapshot(); snap.InstallationID != nil {
		if err := c.reloadInvestments(ctx); err != nil {
			deps.Logger.Warn().Err(err).Str("session", sessionID).Msg("could not reload investments on resume")
		}
	}
	return c
}

// State is the controller's externally visible view of the session.
type State struct {
	SessionID     string              `json:"session_id"`
	Step          Step                `json:"step"`
	Snapshot      Snapshot            `json:"snapshot"`
	CanAdvance    bool                `json:"can_advance"`
	BlockedReason string              `json:"blocked_reason,omitempty"`
	Warnings      []string            `json:"warnings"`
	Investments   []models.Investment `json:"investments"`
	Loading       bool                `json:"loading"`
	CurrentError  string              `json:"current_error,omitempty"`
	PendingWrites int                 `json:"pending_writes"`
}

// State returns a consistent view of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		SessionID:     c.sessionID,
		Step:          c.machine.Step(),
		Snapshot:      c.machine.Snapshot(),
		Warnings:      c.softWarnings(),
		Investments:   append([]models.Investment{}, c.investments...),
		Loading:       c.loading,
		CurrentError:  c.currentErr,
		PendingWrites: c.queue.Pending(),
	}
	if err := c.machine.CanAdvance(); err != nil {
		st.BlockedReason = err.Error()
	} else {
		st.CanAdvance = true
	}
	return st
}

// gate is the step-local advance validation. Called with c.mu held.
func (c *Controller) gate(s Step) error {
	snap := c.machine.snap
	switch s {
	case StepInstallation:
		if snap.InstallationID == nil {
			return ErrInstallationMissing
		}
	case StepTariffs:
		if snap.TariffID == nil {
			return ErrTariffMissing
		}
	case StepInvestments:
		for _, inv := range c.investments {
			if !inv.Active {
				continue
			}
			rule, ok := models.ParentRules[inv.Category]
			if !ok || !rule.Hard {
				continue
			}
			if inv.ParentID == nil || !c.hasInvestment(*inv.ParentID, rule.ParentCategory) {
				return ErrParentMissing
			}
		}
	}
	return nil
}

// softWarnings lists non-blocking parent-rule violations. Called with c.mu held.
func (c *Controller) softWarnings() []string {
	warnings := []string{}
	for _, inv := range c.investments {
		if !inv.Active {
			continue
		}
		rule, ok := models.ParentRules[inv.Category]
		if !ok || rule.Hard {
			continue
		}
		if inv.ParentID == nil || !c.hasInvestment(*inv.ParentID, rule.ParentCategory) {
			warnings = append(warnings, string(inv.Category)+" investment "+inv.Name+" has no "+string(rule.ParentCategory)+" parent")
		}
	}
	return warnings
}

func (c *Controller) hasInvestment(id uuid.UUID, category models.Category) bool {
	for _, inv := range c.investments {
		if inv.InvestmentID == id && inv.Category == category && inv.Active {
			return true
		}
	}
	return false
}

// finish resolves a mutating operation: the error slot holds only the most
// recent failure and is cleared by the next success.
func (c *Controller) finish(err error) {
	c.loading = false
	if err != nil {
		c.currentErr = err.Error()
	} else {
		c.currentErr = ""
	}
}

// CreateInstallation creates the installation record, geocoding the postal
// code when coordinates are absent. Geocoding failure is non-fatal.
func (c *Controller) CreateInstallation(ctx context.Context, in records.CreateInstallationInput) (*models.Installation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	if in.Latitude == nil && in.PostalCode != "" && c.deps.Geocoder != nil {
		lat, lng, err := c.deps.Geocoder.Lookup(ctx, in.PostalCode)
		if err != nil {
			c.deps.Logger.Warn().Err(err).Str("postal_code", in.PostalCode).Msg("geocoding failed, saving without coordinates")
		} else {
			in.Latitude, in.Longitude = &lat, &lng
		}
	}

	inst, err := c.deps.Records.CreateInstallation(ctx, in)
	if err != nil {
		c.finish(err)
		return nil, err
	}
	if err := c.machine.SetInstallationID(ctx, inst.InstallationID); err != nil {
		c.finish(err)
		return nil, err
	}
	c.finish(nil)
	return inst, nil
}

// Installation returns the session's installation record.
func (c *Controller) Installation(ctx context.Context) (*models.Installation, error) {
	c.mu.Lock()
	snap := c.machine.Snapshot()
	c.mu.Unlock()
	if snap.InstallationID == nil {
		return nil, ErrNoInstallation
	}
	return c.deps.Records.GetInstallation(ctx, *snap.InstallationID)
}

// DeleteInstallation removes the installation record and every piece of
// session state derived from it. The wizard returns to the installation step.
func (c *Controller) DeleteInstallation(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	snap := c.machine.snap
	if snap.InstallationID == nil {
		err := ErrNoInstallation
		c.finish(err)
		return err
	}
	c.queue.Clear()
	if err := c.deps.Records.DeleteInstallation(ctx, *snap.InstallationID); err != nil {
		c.finish(err)
		return err
	}
	c.investments = nil
	c.mappings = map[uuid.UUID]map[models.FieldName]models.FieldMapping{}
	c.lastResult = nil
	if err := c.machine.ClearRecords(ctx); err != nil {
		c.finish(err)
		return err
	}
	c.finish(nil)
	return nil
}

// CreateTariff creates the session's tariff. At most one per session.
func (c *Controller) CreateTariff(ctx context.Context, in records.CreateTariffInput) (*models.Tariff, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	snap := c.machine.snap
	if snap.InstallationID == nil {
		err := ErrNoInstallation
		c.finish(err)
		return nil, err
	}
	if snap.TariffID != nil {
		c.finish(ErrTariffExists)
		return nil, ErrTariffExists
	}
	in.InstallationID = *snap.InstallationID
	tariff, err := c.deps.Records.CreateTariff(ctx, in)
	if err != nil {
		c.finish(err)
		return nil, err
	}
	if err := c.machine.SetTariffID(ctx, tariff.TariffID); err != nil {
		c.finish(err)
		return nil, err
	}
	c.finish(nil)
	return tariff, nil
}

// UseDefaultTariff derives a tariff from the capacity-banded feed-in table
// and a stock grid price.
func (c *Controller) UseDefaultTariff(ctx context.Context) (*models.Tariff, error) {
	c.mu.Lock()
	snap := c.machine.Snapshot()
	c.mu.Unlock()
	if snap.InstallationID == nil {
		return nil, ErrNoInstallation
	}
	inst, err := c.deps.Records.GetInstallation(ctx, *snap.InstallationID)
	if err != nil {
		c.mu.Lock()
		c.finish(err)
		c.mu.Unlock()
		return nil, err
	}
	label := "Default tariff"
	return c.CreateTariff(ctx, records.CreateTariffInput{
		GridPrice:     defaultGridPrice,
		FeedInRate:    DefaultFeedInRate(inst.RatedPowerKwp),
		EffectiveFrom: inst.InstallDate,
		Label:         &label,
	})
}

// ConnectionStatus asks the hub whether it is reachable and ready.
func (c *Controller) ConnectionStatus(ctx context.Context) (bool, error) {
	return c.deps.Hub.Status(ctx)
}

// DiscoveryOutcome reports one discovery run.
type DiscoveryOutcome struct {
	Result          models.MatchResult                                   `json:"result"`
	DraftsCreated   int                                                  `json:"drafts_created"`
	DraftsFailed    int                                                  `json:"drafts_failed"`
	CurrentMappings map[uuid.UUID]map[models.FieldName]models.FieldMapping `json:"current_mappings"`
}

// RunDiscoveryAndCreateDrafts queries the hub, classifies its entities and
// creates one rudimentary investment draft per non-configured device.
// Per-device creation failures are counted, not fatal. A disconnected hub
// creates nothing and surfaces a connectivity error.
func (c *Controller) RunDiscoveryAndCreateDrafts(ctx context.Context, manufacturerHint string) (*DiscoveryOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	snap := c.machine.snap
	if snap.InstallationID == nil {
		err := ErrNoInstallation
		c.finish(err)
		return nil, err
	}

	connected, err := c.deps.Hub.Status(ctx)
	if err != nil || !connected {
		c.finish(hub.ErrNotConnected)
		result := c.deps.Matcher.Match(nil, nil, false)
		c.lastResult = &result
		return &DiscoveryOutcome{Result: result, CurrentMappings: c.mappingsCopy()}, hub.ErrNotConnected
	}

	entities, err := c.deps.Hub.Entities(ctx, manufacturerHint)
	if err != nil {
		c.finish(hub.ErrNotConnected)
		result := c.deps.Matcher.Match(nil, nil, false)
		c.lastResult = &result
		return &DiscoveryOutcome{Result: result, CurrentMappings: c.mappingsCopy()}, hub.ErrNotConnected
	}

	configured, err := c.deps.Records.ConfiguredCategories(ctx, *snap.InstallationID)
	if err != nil {
		c.finish(err)
		return nil, err
	}

	result := c.deps.Matcher.Match(entities, configured, true)
	c.lastResult = &result

	outcome := &DiscoveryOutcome{Result: result}
	for _, dev := range result.Devices {
		if dev.AlreadyConfigured || dev.Kind == models.KindUnrecognized {
			continue
		}
		params := map[string]interface{}{
			"source":     dev.Source,
			"confidence": dev.Confidence,
		}
		if dev.CapacityKwh != nil {
			params["capacity_kwh"] = *dev.CapacityKwh
		}
		if dev.PowerKw != nil {
			params["power_kw"] = *dev.PowerKw
		}
		inv, err := c.deps.Records.CreateInvestment(ctx, records.CreateInvestmentInput{
			InstallationID: *snap.InstallationID,
			Category:       dev.Category,
			Name:           dev.Name,
			Parameters:     params,
		})
		if err != nil {
			c.deps.Logger.Warn().Err(err).Str("device", dev.Name).Msg("draft creation failed, continuing batch")
			outcome.DraftsFailed++
			continue
		}
		c.investments = append(c.investments, *inv)
		if err := c.machine.AddInvestmentID(ctx, inv.InvestmentID); err != nil {
			c.deps.Logger.Warn().Err(err).Msg("snapshot update failed after draft creation")
		}
		outcome.DraftsCreated++
	}
	outcome.CurrentMappings = c.mappingsCopy()
	c.finish(nil)
	return outcome, nil
}

// AddInvestment creates an investment directly (explicit user action).
func (c *Controller) AddInvestment(ctx context.Context, in records.CreateInvestmentInput) (*models.Investment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	snap := c.machine.snap
	if snap.InstallationID == nil {
		err := ErrNoInstallation
		c.finish(err)
		return nil, err
	}
	in.InstallationID = *snap.InstallationID
	inv, err := c.deps.Records.CreateInvestment(ctx, in)
	if err != nil {
		c.finish(err)
		return nil, err
	}
	c.investments = append(c.investments, *inv)
	if err := c.machine.AddInvestmentID(ctx, inv.InvestmentID); err != nil {
		c.finish(err)
		return inv, err
	}
	c.finish(nil)
	return inv, nil
}

// UpdateInvestment merges the partial edit into the visible copy immediately
// and buffers the write through the debounced queue.
func (c *Controller) UpdateInvestment(id uuid.UUID, partial map[string]interface{}) (*models.Investment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	for i := range c.investments {
		if c.investments[i].InvestmentID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, records.ErrInvestmentNotFound
	}
	applyPartial(&c.investments[idx], partial)
	c.queue.Enqueue(id.String(), partial)
	cp := c.investments[idx]
	return &cp, nil
}

// DeleteInvestment removes the record, dropping any buffered edits for it.
func (c *Controller) DeleteInvestment(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = true

	c.queue.Discard(id.String())
	if err := c.deps.Records.DeleteInvestment(ctx, id); err != nil {
		c.finish(err)
		return err
	}
	kept := c.investments[:0]
	for _, inv := range c.investments {
		if inv.InvestmentID != id {
			kept = append(kept, inv)
		}
	}
	c.investments = kept
	delete(c.mappings, id)
	if err := c.machine.RemoveInvestmentID(ctx, id); err != nil {
		c.finish(err)
		return err
	}
	c.finish(nil)
	return nil
}

// Investments returns the visible (optimistic) record list.
func (c *Controller) Investments() []models.Investment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Investment{}, c.investments...)
}

// SetFieldMapping activates a sourcing strategy for one (investment, field)
// pair. The previous strategy's parameters are discarded wholesale; the new
// mapping rides into the record's parameter map through the queue.
func (c *Controller) SetFieldMapping(id uuid.UUID, field models.FieldName, mapping models.FieldMapping) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setFieldMappingLocked(id, field, mapping)
}

func (c *Controller) setFieldMappingLocked(id uuid.UUID, field models.FieldName, mapping models.FieldMapping) error {
	found := false
	for i := range c.investments {
		if c.investments[i].InvestmentID == id {
			found = true
			break
		}
	}
	if !found {
		return records.ErrInvestmentNotFound
	}
	if c.mappings[id] == nil {
		c.mappings[id] = map[models.FieldName]models.FieldMapping{}
	}
	c.mappings[id][field] = mapping

	asMap := map[string]interface{}{}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &asMap); err != nil {
		return err
	}
	partial := map[string]interface{}{
		"parameters": map[string]interface{}{
			"field_mappings": map[string]interface{}{
				string(field): asMap,
			},
		},
	}
	for i := range c.investments {
		if c.investments[i].InvestmentID == id {
			applyPartial(&c.investments[i], partial)
		}
	}
	c.queue.Enqueue(id.String(), partial)
	return nil
}

// fieldTargetCategory says which investment category a field bucket belongs to.
var fieldTargetCategory = map[models.FieldName]models.Category{
	models.FieldPVGeneration:     models.CategoryInverter,
	models.FieldFeedIn:           models.CategoryInverter,
	models.FieldGridDraw:         models.CategoryInverter,
	models.FieldBatteryCharge:    models.CategoryBattery,
	models.FieldBatteryDischarge: models.CategoryBattery,
}

// ApplyBestSuggestions wires the top-ranked sensor of each field bucket into
// the matching investment. Explicit, user-triggered and idempotent; it is
// never run automatically after discovery.
func (c *Controller) ApplyBestSuggestions() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastResult == nil || !c.lastResult.Connected {
		return 0, ErrNoDiscoveryResult
	}

	applied := 0
	for _, field := range models.FieldNames {
		suggestions := c.lastResult.FieldSuggestions[field]
		if len(suggestions) == 0 {
			continue
		}
		top := suggestions[0]
		target, ok := c.findActiveByCategory(fieldTargetCategory[field])
		if !ok {
			continue
		}
		if current, ok := c.mappings[target][field]; ok &&
			current.Strategy == models.StrategySensor && current.EntityID == top.EntityID {
			continue
		}
		mapping := models.FieldMapping{Strategy: models.StrategySensor, EntityID: top.EntityID}
		if err := c.setFieldMappingLocked(target, field, mapping); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (c *Controller) findActiveByCategory(category models.Category) (uuid.UUID, bool) {
	for _, inv := range c.investments {
		if inv.Active && inv.Category == category {
			return inv.InvestmentID, true
		}
	}
	return uuid.Nil, false
}

// Next advances one step, flushing buffered edits first.
func (c *Controller) Next(ctx context.Context) error {
	return c.transition(ctx, c.machine.Next)
}

// Previous retreats one step.
func (c *Controller) Previous(ctx context.Context) error {
	return c.transition(ctx, c.machine.Previous)
}

// Skip records the current step as skipped and advances.
func (c *Controller) Skip(ctx context.Context) error {
	return c.transition(ctx, c.machine.Skip)
}

// GoTo jumps to a step directly and clears any transient error.
func (c *Controller) GoTo(ctx context.Context, target Step) error {
	return c.transition(ctx, func(ctx context.Context) error {
		return c.machine.GoTo(ctx, target)
	})
}

// CompleteWizard flushes and moves the snapshot to its terminal state.
func (c *Controller) CompleteWizard(ctx context.Context) error {
	return c.transition(ctx, c.machine.Complete)
}

func (c *Controller) transition(ctx context.Context, op func(context.Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := op(ctx); err != nil {
		c.currentErr = err.Error()
		// A failed flush means an edit could not be written; resync the
		// visible list with ground truth instead of retrying blindly. Gate
		// failures are local validation and leave the list alone.
		if !isGateError(err) {
			if rErr := c.reloadInvestments(ctx); rErr != nil {
				c.deps.Logger.Warn().Err(rErr).Msg("reload after failed transition")
			}
		}
		return err
	}
	c.currentErr = ""
	return nil
}

func isGateError(err error) bool {
	return errors.Is(err, ErrInstallationMissing) ||
		errors.Is(err, ErrTariffMissing) ||
		errors.Is(err, ErrParentMissing) ||
		errors.Is(err, ErrTerminalStep) ||
		errors.Is(err, ErrUnknownStep)
}

// ResetWizard drops buffered edits, clears the snapshot and returns to welcome.
func (c *Controller) ResetWizard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.Clear()
	c.investments = nil
	c.mappings = map[uuid.UUID]map[models.FieldName]models.FieldMapping{}
	c.lastResult = nil
	c.currentErr = ""
	return c.machine.Reset(ctx)
}

// reloadInvestments replaces the visible list with the authoritative one.
// Called with c.mu held.
func (c *Controller) reloadInvestments(ctx context.Context) error {
	snap := c.machine.snap
	if snap.InstallationID == nil {
		c.investments = nil
		return nil
	}
	list, err := c.deps.Records.ListInvestments(ctx, *snap.InstallationID, nil)
	if err != nil {
		return err
	}
	c.investments = list
	return nil
}

// sendUpdate is the queue's sender: it writes one record's accumulated edit.
func (c *Controller) sendUpdate(ctx context.Context, id string, payload map[string]interface{}) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = c.deps.Records.UpdateInvestment(ctx, uid, payload)
	return err
}

// onAsyncWriteError reconciles a failed debounced write: surface the error
// and reload ground truth so the optimistic view cannot drift permanently.
func (c *Controller) onAsyncWriteError(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentErr = err.Error()
	c.deps.Logger.Warn().Err(err).Str("investment", id).Msg("debounced write failed, reloading records")
	if rErr := c.reloadInvestments(context.Background()); rErr != nil {
		c.deps.Logger.Warn().Err(rErr).Msg("reload after failed write")
	}
}

// applyPartial merges a partial edit into the visible copy of a record,
// mirroring the field handling of the records service.
func applyPartial(inv *models.Investment, partial map[string]interface{}) {
	for key, val := range partial {
		switch key {
		case "name":
			if s, ok := val.(string); ok {
				inv.Name = s
			}
		case "acquisition_cost":
			if f, ok := val.(float64); ok {
				inv.AcquisitionCost = &f
			} else if n, ok := val.(int); ok {
				f := float64(n)
				inv.AcquisitionCost = &f
			}
		case "acquisition_date":
			if s, ok := val.(string); ok {
				if t, err := time.Parse(time.RFC3339, s); err == nil {
					inv.AcquisitionDate = &t
				}
			} else if t, ok := val.(time.Time); ok {
				inv.AcquisitionDate = &t
			}
		case "active":
			if b, ok := val.(bool); ok {
				inv.Active = b
			}
		case "parent_id":
			if s, ok := val.(string); ok {
				if pid, err := uuid.Parse(s); err == nil {
					inv.ParentID = &pid
				}
			} else if val == nil {
				inv.ParentID = nil
			}
		case "parameters":
			patch, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			current := map[string]interface{}{}
			if len(inv.Parameters) > 0 {
				_ = json.Unmarshal(inv.Parameters, &current)
			}
			queue.Merge(current, patch)
			if raw, err := json.Marshal(current); err == nil {
				inv.Parameters = datatypes.JSON(raw)
			}
		}
	}
}

func (c *Controller) mappingsCopy() map[uuid.UUID]map[models.FieldName]models.FieldMapping {
	out := make(map[uuid.UUID]map[models.FieldName]models.FieldMapping, len(c.mappings))
	for id, fields := range c.mappings {
		cp := make(map[models.FieldName]models.FieldMapping, len(fields))
		for f, m := range fields {
			cp[f] = m
		}
		out[id] = cp
	}
	return out
}
