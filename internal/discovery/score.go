package discovery

// ScoreWeights are the tunable confidence weights. They are heuristics, not
// business rules; the defaults were calibrated by hand against common
// home-automation integrations.
type ScoreWeights struct {
	DeviceClassMatch int // exact device-class evidence for the inferred kind
	NamePattern      int // entity naming matches the kind's vocabulary
	UnitConsistency  int // all cluster units fit the kind's expected units
	Corroboration    int // per additional entity in the cluster, additive
	CorroborationCap int // cap on the corroboration contribution
	Minimum          int // floor for a cluster with zero corroborating signals
}

// DefaultWeights is the stock weighting.
var DefaultWeights = ScoreWeights{
	DeviceClassMatch: 45,
	NamePattern:      25,
	UnitConsistency:  10,
	Corroboration:    5,
	CorroborationCap: 15,
	Minimum:          5,
}

type evidence struct {
	classMatch     bool
	nameMatch      bool
	unitConsistent bool
	corroborating  int
}

// score combines the evidence into a confidence clamped to [0, 100].
func (w ScoreWeights) score(ev evidence) int {
	s := w.Minimum
	if ev.classMatch {
		s += w.DeviceClassMatch
	}
	if ev.nameMatch {
		s += w.NamePattern
	}
	if ev.unitConsistent {
		s += w.UnitConsistency
	}
	corr := ev.corroborating * w.Corroboration
	if corr > w.CorroborationCap {
		corr = w.CorroborationCap
	}
	s += corr
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s
}
