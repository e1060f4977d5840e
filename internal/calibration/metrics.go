package calibration

import "math"

// Compute builds a full Report from raw samples: reliability bins plus
// brier, ece, mce. Returns sample_count=0 when samples is empty; callers
// must treat that as a no_data condition upstream.
func Compute(samples []Sample, bins int, minBinSamples int) Report {
	r := Report{SampleCount: len(samples)}
	if len(samples) == 0 {
		return r
	}

	var sqErrSum float64
	for _, s := range samples {
		d := s.Probability - float64(s.Realized)
		sqErrSum += d * d
	}
	r.Brier = sqErrSum / float64(len(samples))

	r.Bins = Bucket(samples, bins, minBinSamples)

	n := float64(len(samples))
	var ece, mce float64
	for _, b := range r.Bins {
		if b.Count == 0 {
			continue
		}
		diff := math.Abs(b.MeanPredProb - b.EmpiricalProb)
		ece += (float64(b.Count) / n) * diff
		if diff > mce {
			mce = diff
		}
	}
	r.ECE = ece
	r.MCE = mce
	return r
}
