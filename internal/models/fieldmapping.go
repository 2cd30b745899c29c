package models

import "fmt"

// MappingStrategy says how a monthly metric field gets its value.
type MappingStrategy string

const (
	StrategySensor  MappingStrategy = "sensor"
	StrategyFormula MappingStrategy = "formula"
	StrategyManual  MappingStrategy = "manual"
	StrategyNone    MappingStrategy = "none"
)

// FieldMapping is the active sourcing strategy for one (investment, field)
// pair. Exactly one strategy is active at a time; switching strategies
// discards the previous strategy's parameters. It has no persistence of its
// own and is serialized into the investment's parameter map on save.
type FieldMapping struct {
	Strategy MappingStrategy `json:"strategy"`

	// StrategySensor
	EntityID string `json:"entity_id,omitempty"`

	// StrategyFormula
	CapacityShare *float64 `json:"capacity_share,omitempty"`
	CopDefault    *float64 `json:"cop_default,omitempty"`

	// StrategyManual
	ManualValue *float64 `json:"manual_value,omitempty"`
}

// Validate checks the strategy tag and its required parameters.
func (m FieldMapping) Validate() error {
	switch m.Strategy {
	case StrategySensor:
		if m.EntityID == "" {
			return fmt.Errorf("sensor mapping requires an entity id")
		}
	case StrategyFormula:
		if m.CapacityShare == nil && m.CopDefault == nil {
			return fmt.Errorf("formula mapping requires at least one formula input")
		}
	case StrategyManual, StrategyNone:
	default:
		return fmt.Errorf("unknown mapping strategy %q", m.Strategy)
	}
	return nil
}

// Switch returns a mapping with the new strategy and all previous strategy
// parameters discarded.
func (m FieldMapping) Switch(s MappingStrategy) FieldMapping {
	return FieldMapping{Strategy: s}
}
