package traffic

import (
	"github.com/WebQx/triage"
)

// surgeSamples is how many trailing samples the predictor inspects.
const surgeSamples = 3

// surgeGrowthThreshold is the relative first-to-last growth above which
// a monotone increase is declared a surge.
const surgeGrowthThreshold = 0.5

// Prediction is the predictor's verdict for an endpoint. A definitive
// "no surge" is distinct from "not enough samples" — the latter surfaces
// as triage.ErrPredictionUnavailable instead of a Prediction.
type Prediction struct {
	Surge bool `json:"surge"`
	// Growth is the relative growth from the first to the last
	// inspected sample (0.5 = 50%).
	Growth float64 `json:"growth"`
	// Samples is how many observations informed the verdict.
	Samples int `json:"samples"`
}

// Predictor is a lightweight trend detector over a Monitor's most recent
// samples. It is advisory only: it never mutates admission state.
type Predictor struct {
	monitor *Monitor
}

// NewPredictor creates a Predictor reading from the given monitor.
func NewPredictor(monitor *Monitor) *Predictor {
	return &Predictor{monitor: monitor}
}

// Predict declares a surge for endpoint when its last three sample
// counts strictly increase and the first-to-last relative growth
// exceeds 50%. With fewer than three retained samples it returns
// triage.ErrPredictionUnavailable — a normal condition, not a failure.
func (p *Predictor) Predict(endpoint string) (Prediction, error) {
	recent := p.monitor.Recent(endpoint, surgeSamples)
	if len(recent) < surgeSamples {
		return Prediction{}, triage.ErrPredictionUnavailable
	}

	increasing := true
	for i := 1; i < len(recent); i++ {
		if recent[i].Count <= recent[i-1].Count {
			increasing = false
			break
		}
	}

	first := recent[0].Count
	last := recent[len(recent)-1].Count

	var growth float64
	if first > 0 {
		growth = float64(last-first) / float64(first)
	}

	return Prediction{
		Surge:   increasing && growth > surgeGrowthThreshold,
		Growth:  growth,
		Samples: len(recent),
	}, nil
}
