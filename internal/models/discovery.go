package models

// DiscoveredEntity is one raw sensor/device descriptor reported by the
// home-automation hub. Read-only; the hub owns it.
type DiscoveredEntity struct {
	EntityID    string `json:"entity_id"`
	Name        string `json:"name"`
	Unit        string `json:"unit"`
	DeviceClass string `json:"device_class"`
	StateClass  string `json:"state_class"`
	State       string `json:"state"`
	Source      string `json:"source"`
}

// DeviceKind is the closed set of physical asset kinds the matcher knows.
// Unknown integrations fall back to KindUnrecognized instead of being dropped.
type DeviceKind string

const (
	KindInverter     DeviceKind = "inverter"
	KindBattery      DeviceKind = "battery"
	KindEV           DeviceKind = "ev"
	KindWallbox      DeviceKind = "wallbox"
	KindHeatPump     DeviceKind = "heat_pump"
	KindBalconyPV    DeviceKind = "balcony_pv"
	KindUnrecognized DeviceKind = "unrecognized"
)

// Category returns the investment category a device kind seeds.
func (k DeviceKind) Category() Category {
	switch k {
	case KindInverter:
		return CategoryInverter
	case KindBattery:
		return CategoryBattery
	case KindEV:
		return CategoryEV
	case KindWallbox:
		return CategoryWallbox
	case KindHeatPump:
		return CategoryHeatPump
	case KindBalconyPV:
		return CategoryBalconyPV
	}
	return CategoryOther
}

// DiscoveredDevice is an entity cluster classified as one physical asset.
// Consumed once to seed investment drafts, then discarded.
type DiscoveredDevice struct {
	Kind              DeviceKind         `json:"kind"`
	Category          Category           `json:"category"`
	Name              string             `json:"name"`
	Source            string             `json:"source"`
	Confidence        int                `json:"confidence"`
	CapacityKwh       *float64           `json:"capacity_kwh"`
	PowerKw           *float64           `json:"power_kw"`
	Entities          []DiscoveredEntity `json:"entities"`
	AlreadyConfigured bool               `json:"already_configured"`
}

// FieldName identifies one field-level sensor bucket.
type FieldName string

const (
	FieldPVGeneration     FieldName = "pv_generation"
	FieldFeedIn           FieldName = "feed_in"
	FieldGridDraw         FieldName = "grid_draw"
	FieldBatteryCharge    FieldName = "battery_charge"
	FieldBatteryDischarge FieldName = "battery_discharge"
)

// FieldNames lists all buckets in a stable order.
var FieldNames = []FieldName{
	FieldPVGeneration, FieldFeedIn, FieldGridDraw, FieldBatteryCharge, FieldBatteryDischarge,
}

// MatchResult is the matcher's output. Connected=false means the hub was
// unreachable; callers must not present that as "zero devices found".
type MatchResult struct {
	Connected        bool                             `json:"connected"`
	Devices          []DiscoveredDevice               `json:"devices"`
	FieldSuggestions map[FieldName][]DiscoveredEntity `json:"field_suggestions"`
	Warnings         []string                         `json:"warnings"`
}
