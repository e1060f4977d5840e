// Package calibration computes live reliability metrics over realized
// inference rows and tracks drift against a production artifact's stored
// metrics.
package calibration

// Sample is one realized inference observation.
type Sample struct {
	Probability float64
	Realized    int // 0 or 1
}

// Bin is one equal-width reliability bucket.
type Bin struct {
	Index         int
	Count         int
	MeanPredProb  float64
	EmpiricalProb float64
}

// Report is the full set of live calibration metrics for a window.
type Report struct {
	SampleCount int
	Brier       float64
	ECE         float64
	MCE         float64
	Bins        []Bin
}

// Bucket buckets samples into `bins` equal-width buckets over [0,1], then
// merges any bucket with fewer than minBinSamples into its neighbor,
// repeating until every remaining bucket meets the minimum or only one
// bucket is left. Buckets are merged preferring the neighbor with fewer
// samples first to avoid needlessly diluting a well-populated bucket;
// ties merge into the preceding bucket.
func Bucket(samples []Sample, bins int, minBinSamples int) []Bin {
	if bins < 1 {
		bins = 1
	}
	raw := make([]Bin, bins)
	for i := range raw {
		raw[i].Index = i
	}

	sums := make([]float64, bins)
	for _, s := range samples {
		idx := binIndex(s.Probability, bins)
		raw[idx].Count++
		sums[idx] += s.Probability
		raw[idx].EmpiricalProb += float64(s.Realized)
	}
	for i := range raw {
		if raw[i].Count > 0 {
			raw[i].MeanPredProb = sums[i] / float64(raw[i].Count)
			raw[i].EmpiricalProb = raw[i].EmpiricalProb / float64(raw[i].Count)
		}
	}

	return mergeSparse(raw, minBinSamples)
}

func binIndex(p float64, bins int) int {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	idx := int(p * float64(bins))
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}

// mergeSparse repeatedly folds the first (lowest-index) under-populated bucket into
// its smaller-count neighbor until every bucket meets minBinSamples or
// only one bucket remains.
func mergeSparse(bins []Bin, minBinSamples int) []Bin {
	cur := make([]Bin, len(bins))
	copy(cur, bins)

	for {
		violIdx := -1
		for i, b := range cur {
			if b.Count < minBinSamples && len(cur) > 1 {
				violIdx = i
				break
			}
		}
		if violIdx == -1 {
			break
		}

		var mergeWith int
		switch {
		case violIdx == 0:
			mergeWith = 1
		case violIdx == len(cur)-1:
			mergeWith = violIdx - 1
		default:
			if cur[violIdx-1].Count <= cur[violIdx+1].Count {
				mergeWith = violIdx - 1
			} else {
				mergeWith = violIdx + 1
			}
		}

		merged := mergeBins(cur[violIdx], cur[mergeWith])
		lo := violIdx
		if mergeWith < lo {
			lo = mergeWith
		}
		hi := violIdx
		if mergeWith > hi {
			hi = mergeWith
		}

		next := make([]Bin, 0, len(cur)-1)
		next = append(next, cur[:lo]...)
		next = append(next, merged)
		next = append(next, cur[hi+1:]...)
		cur = next
	}

	for i := range cur {
		cur[i].Index = i
	}
	return cur
}

func mergeBins(a, b Bin) Bin {
	total := a.Count + b.Count
	if total == 0 {
		return Bin{}
	}
	return Bin{
		Count:         total,
		MeanPredProb:  (a.MeanPredProb*float64(a.Count) + b.MeanPredProb*float64(b.Count)) / float64(total),
		EmpiricalProb: (a.EmpiricalProb*float64(a.Count) + b.EmpiricalProb*float64(b.Count)) / float64(total),
	}
}
