package wizard

// feedInBand is one rung of the capacity-banded default feed-in table
// (EEG-style remuneration, EUR per kWh).
type feedInBand struct {
	MaxKwp float64
	Rate   float64
}

var feedInBands = []feedInBand{
	{MaxKwp: 10, Rate: 0.0786},
	{MaxKwp: 40, Rate: 0.0680},
	{MaxKwp: 100, Rate: 0.0556},
}

// defaultGridPrice is the fallback grid-draw price (EUR per kWh) when the
// user asks for a default tariff.
const defaultGridPrice = 0.35

// DefaultFeedInRate returns the banded feed-in rate for the installation's
// rated power. A 12 kWp system lands in the >10–40 band, not the ≤10 one.
func DefaultFeedInRate(ratedPowerKwp float64) float64 {
	for _, band := range feedInBands {
		if ratedPowerKwp <= band.MaxKwp {
			return band.Rate
		}
	}
	return feedInBands[len(feedInBands)-1].Rate
}
