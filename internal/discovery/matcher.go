package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"solhome-backend/internal/models"
)

// Matcher classifies raw hub entities into candidate devices and field-level
// sensor suggestions. It never fails on malformed input; bad entities are
// skipped and reported in the result's warnings.
type Matcher struct {
	Weights ScoreWeights
}

// NewMatcher returns a matcher with the default weights.
func NewMatcher() *Matcher {
	return &Matcher{Weights: DefaultWeights}
}

// sourceKinds maps integration source tags to device kinds. First match wins.
var sourceKinds = []struct {
	keyword string
	kind    models.DeviceKind
}{
	{"fronius", models.KindInverter},
	{"solaredge", models.KindInverter},
	{"kostal", models.KindInverter},
	{"huawei", models.KindInverter},
	{"goodwe", models.KindInverter},
	{"sungrow", models.KindInverter},
	{"solax", models.KindInverter},
	{"enphase", models.KindInverter},
	{"sma", models.KindInverter},
	{"sonnen", models.KindBattery},
	{"senec", models.KindBattery},
	{"e3dc", models.KindBattery},
	{"varta", models.KindBattery},
	{"byd", models.KindBattery},
	{"wallbox", models.KindWallbox},
	{"wattpilot", models.KindWallbox},
	{"openwb", models.KindWallbox},
	{"easee", models.KindWallbox},
	{"keba", models.KindWallbox},
	{"go_e", models.KindWallbox},
	{"goe_charger", models.KindWallbox},
	{"tesla", models.KindEV},
	{"tronity", models.KindEV},
	{"evnotify", models.KindEV},
	{"renault", models.KindEV},
	{"volkswagen", models.KindEV},
	{"hyundai", models.KindEV},
	{"kia_uvo", models.KindEV},
	{"bmw_connected", models.KindEV},
	{"vaillant", models.KindHeatPump},
	{"viessmann", models.KindHeatPump},
	{"stiebel", models.KindHeatPump},
	{"daikin", models.KindHeatPump},
	{"heatpump", models.KindHeatPump},
	{"balkon", models.KindBalconyPV},
	{"balcony", models.KindBalconyPV},
}

// kindNamePatterns is the naming vocabulary per kind.
var kindNamePatterns = map[models.DeviceKind][]string{
	models.KindInverter:  {"inverter", "wechselrichter", "pv", "solar", "yield", "erzeugung"},
	models.KindBattery:   {"battery", "batterie", "speicher", "soc", "charge", "discharge"},
	models.KindEV:        {"vehicle", "car", "range", "odometer", "ev "},
	models.KindWallbox:   {"wallbox", "charger", "charging", "ladeleistung", "session"},
	models.KindHeatPump:  {"heat pump", "heatpump", "wärmepumpe", "waermepumpe", "cop", "flow temp"},
	models.KindBalconyPV: {"balcony", "balkon"},
}

// kindDeviceClasses is the exact device-class evidence per kind.
var kindDeviceClasses = map[models.DeviceKind][]string{
	models.KindInverter:  {"energy", "power"},
	models.KindBattery:   {"battery", "energy"},
	models.KindEV:        {"battery", "distance"},
	models.KindWallbox:   {"power", "energy", "plug"},
	models.KindHeatPump:  {"energy", "temperature"},
	models.KindBalconyPV: {"energy", "power"},
}

// kindUnits is the unit-of-measurement set per kind.
var kindUnits = map[models.DeviceKind][]string{
	models.KindInverter:  {"w", "kw", "wh", "kwh"},
	models.KindBattery:   {"%", "w", "kw", "wh", "kwh"},
	models.KindEV:        {"%", "km", "mi", "kwh"},
	models.KindWallbox:   {"w", "kw", "kwh", "a"},
	models.KindHeatPump:  {"w", "kw", "kwh", "°c"},
	models.KindBalconyPV: {"w", "kw", "wh", "kwh"},
}

// fieldPatterns classifies loose energy entities into field buckets.
// Order matters: feed-in and battery patterns are more specific than the
// generic PV generation vocabulary and must be tried first.
var fieldPatterns = []struct {
	field    models.FieldName
	patterns []string
}{
	{models.FieldBatteryDischarge, []string{"discharge", "entladung"}},
	{models.FieldBatteryCharge, []string{"battery charge", "battery_charge", "ladung", "charge energy"}},
	{models.FieldFeedIn, []string{"feed", "export", "einspeisung", "delivery"}},
	{models.FieldGridDraw, []string{"import", "grid", "bezug", "purchase", "consumption from"}},
	{models.FieldPVGeneration, []string{"pv", "solar", "generation", "yield", "production", "erzeugung"}},
}

// Match classifies entities against the already-configured categories.
// connected=false short-circuits to an empty result carrying the flag, which
// callers must keep distinct from "zero devices found".
func (m *Matcher) Match(entities []models.DiscoveredEntity, configured map[models.Category]bool, connected bool) models.MatchResult {
	result := models.MatchResult{
		Connected:        connected,
		Devices:          []models.DiscoveredDevice{},
		FieldSuggestions: map[models.FieldName][]models.DiscoveredEntity{},
		Warnings:         []string{},
	}
	if !connected {
		return result
	}

	clusters := map[string][]models.DiscoveredEntity{}
	var loose []models.DiscoveredEntity
	for _, e := range entities {
		if e.EntityID == "" {
			result.Warnings = append(result.Warnings, "skipped entity without id")
			continue
		}
		if e.Name == "" && e.DeviceClass == "" && e.Unit == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped undescribed entity %s", e.EntityID))
			continue
		}
		if e.Source == "" {
			loose = append(loose, e)
			continue
		}
		clusters[e.Source] = append(clusters[e.Source], e)
	}

	for source, cluster := range clusters {
		kind := inferKind(source, cluster)
		dev := models.DiscoveredDevice{
			Kind:     kind,
			Category: kind.Category(),
			Name:     displayName(source),
			Source:   source,
			Entities: cluster,
		}
		dev.Confidence = m.Weights.score(clusterEvidence(kind, cluster))
		dev.CapacityKwh = suggestCapacity(cluster)
		dev.PowerKw = suggestPower(cluster)
		if configured[dev.Category] {
			dev.AlreadyConfigured = true
		}
		result.Devices = append(result.Devices, dev)
	}

	sort.Slice(result.Devices, func(i, j int) bool {
		if result.Devices[i].Confidence != result.Devices[j].Confidence {
			return result.Devices[i].Confidence > result.Devices[j].Confidence
		}
		return result.Devices[i].Name < result.Devices[j].Name
	})

	m.bucketFieldSensors(loose, &result)
	return result
}

// bucketFieldSensors ranks loose energy entities per field bucket. The
// first entry of each bucket is the recommended pick; it is never applied
// without explicit user confirmation.
func (m *Matcher) bucketFieldSensors(loose []models.DiscoveredEntity, result *models.MatchResult) {
	type scored struct {
		entity models.DiscoveredEntity
		score  int
	}
	buckets := map[models.FieldName][]scored{}
	for _, e := range loose {
		field, ok := classifyField(e)
		if !ok {
			continue
		}
		ev := evidence{
			classMatch:     e.DeviceClass == "energy" && e.StateClass == "total_increasing",
			nameMatch:      true, // classification itself is a name match
			unitConsistent: isEnergyUnit(e.Unit),
		}
		buckets[field] = append(buckets[field], scored{entity: e, score: m.Weights.score(ev)})
	}
	for field, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })
		out := make([]models.DiscoveredEntity, len(list))
		for i, s := range list {
			out[i] = s.entity
		}
		result.FieldSuggestions[field] = out
	}
}

func classifyField(e models.DiscoveredEntity) (models.FieldName, bool) {
	if !isEnergyUnit(e.Unit) && e.DeviceClass != "energy" && e.DeviceClass != "power" {
		return "", false
	}
	haystack := strings.ToLower(e.Name + " " + e.EntityID)
	for _, fp := range fieldPatterns {
		for _, p := range fp.patterns {
			if strings.Contains(haystack, p) {
				return fp.field, true
			}
		}
	}
	return "", false
}

func isEnergyUnit(unit string) bool {
	switch strings.ToLower(unit) {
	case "wh", "kwh", "mwh", "w", "kw":
		return true
	}
	return false
}

// inferKind derives the device kind from the integration tag, falling back
// to device-class and naming hints from the cluster's entities.
func inferKind(source string, cluster []models.DiscoveredEntity) models.DeviceKind {
	lower := strings.ToLower(source)
	for _, sk := range sourceKinds {
		if strings.Contains(lower, sk.keyword) {
			return sk.kind
		}
	}

	var hasVehicleBattery, hasChargerHints, hasIncreasingEnergy, hasSolarNaming, hasBatteryNaming bool
	for _, e := range cluster {
		name := strings.ToLower(e.Name + " " + e.EntityID)
		if e.DeviceClass == "battery" && containsAny(name, "vehicle", "car", "range") {
			hasVehicleBattery = true
		}
		if containsAny(name, "charger", "charging", "wallbox") {
			hasChargerHints = true
		}
		if e.DeviceClass == "energy" && e.StateClass == "total_increasing" {
			hasIncreasingEnergy = true
		}
		if containsAny(name, "pv", "solar", "yield", "erzeugung") {
			hasSolarNaming = true
		}
		if containsAny(name, "battery", "batterie", "speicher", "soc") {
			hasBatteryNaming = true
		}
	}
	switch {
	case hasVehicleBattery:
		return models.KindEV
	case hasChargerHints:
		return models.KindWallbox
	case hasIncreasingEnergy && hasSolarNaming:
		return models.KindInverter
	case hasIncreasingEnergy && hasBatteryNaming:
		return models.KindBattery
	}
	return models.KindUnrecognized
}

func clusterEvidence(kind models.DeviceKind, cluster []models.DiscoveredEntity) evidence {
	ev := evidence{corroborating: len(cluster) - 1}
	if kind == models.KindUnrecognized {
		return ev
	}
	classes := kindDeviceClasses[kind]
	patterns := kindNamePatterns[kind]
	units := kindUnits[kind]

	ev.unitConsistent = true
	for _, e := range cluster {
		if e.DeviceClass != "" && contains(classes, strings.ToLower(e.DeviceClass)) {
			ev.classMatch = true
		}
		name := strings.ToLower(e.Name + " " + e.EntityID)
		if containsAny(name, patterns...) {
			ev.nameMatch = true
		}
		if e.Unit != "" && !contains(units, strings.ToLower(e.Unit)) {
			ev.unitConsistent = false
		}
	}
	return ev
}

// suggestCapacity picks a storage capacity (kWh) from the cluster, preferring
// entities named like a capacity reading.
func suggestCapacity(cluster []models.DiscoveredEntity) *float64 {
	var fallback *float64
	for _, e := range cluster {
		if strings.ToLower(e.Unit) != "kwh" {
			continue
		}
		v, err := strconv.ParseFloat(e.State, 64)
		if err != nil || v <= 0 {
			continue
		}
		name := strings.ToLower(e.Name + " " + e.EntityID)
		if containsAny(name, "capacity", "kapazität", "kapazitaet", "size") {
			val := v
			return &val
		}
		if fallback == nil {
			val := v
			fallback = &val
		}
	}
	return fallback
}

// suggestPower picks the largest power reading (kW) from the cluster.
func suggestPower(cluster []models.DiscoveredEntity) *float64 {
	var best *float64
	for _, e := range cluster {
		v, err := strconv.ParseFloat(e.State, 64)
		if err != nil || v <= 0 {
			continue
		}
		switch strings.ToLower(e.Unit) {
		case "kw":
		case "w":
			v = v / 1000
		default:
			continue
		}
		if best == nil || v > *best {
			val := v
			best = &val
		}
	}
	return best
}

// displayName turns an integration tag like "fronius_symo" into "Fronius Symo".
func displayName(source string) string {
	parts := strings.FieldsFunc(source, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
