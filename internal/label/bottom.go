// Package label implements the bottom-event labeling rule shared by the
// training dataset builder and the online labeler. Both call Assign so the
// two never drift apart.
package label

// Params are the bottom-event rule parameters.
type Params struct {
	Lookahead int     // H, bars
	Drawdown  float64 // D, fraction (e.g. 0.01 for 1%)
	Rebound   float64 // R, fraction
}

// Outcome is the result of evaluating the rule at one index.
type Outcome struct {
	Label   int // 0 or 1, only meaningful when Pending is false
	Pending bool
	Drop    float64 // (min(window) - c[t]) / c[t]
	Rise    float64 // (max(window[argmin..]) - min(window)) / min(window)
	MinIdx  int      // index within closes of the window minimum
}

// Assign evaluates the bottom-event rule at index t against the full close
// series. It returns Outcome.Pending=true when t+H exceeds the available
// series (label undefined, per spec: "must not be assigned").
func Assign(closes []float64, t int, p Params) Outcome {
	n := len(closes)
	if p.Lookahead <= 0 || t < 0 || t >= n {
		return Outcome{Pending: true}
	}
	if t+p.Lookahead > n-1 {
		return Outcome{Pending: true}
	}

	p0 := closes[t]
	window := closes[t+1 : t+p.Lookahead+1]

	minIdx := 0
	minVal := window[0]
	for i := 1; i < len(window); i++ {
		if window[i] < minVal {
			minVal = window[i]
			minIdx = i
		}
	}

	drop := (minVal - p0) / p0
	out := Outcome{MinIdx: t + 1 + minIdx, Drop: drop}

	if drop > -p.Drawdown {
		out.Label = 0
		return out
	}

	maxVal := minVal
	for i := minIdx; i < len(window); i++ {
		if window[i] > maxVal {
			maxVal = window[i]
		}
	}
	rise := (maxVal - minVal) / minVal
	out.Rise = rise

	if rise >= p.Rebound {
		out.Label = 1
	} else {
		out.Label = 0
	}
	return out
}

// AssignAll evaluates the rule for every index in closes where it is
// defined, returning outcomes indexed the same as closes (Pending=true at
// indices where t+H exceeds the series).
func AssignAll(closes []float64, p Params) []Outcome {
	out := make([]Outcome, len(closes))
	for t := range closes {
		out[t] = Assign(closes, t, p)
	}
	return out
}
