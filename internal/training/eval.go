package training

import (
	"sort"

	"github.com/sawpanic/bottomrun/internal/calibration"
	"github.com/sawpanic/bottomrun/internal/model"
)

// Evaluate scores a fitted Predictor against a held-out dataset,
// producing AUC (rank-based, via Mann-Whitney U), Brier, ECE and MCE
// (via internal/calibration) in the same Metrics shape stored with every
// Model Artifact.
func Evaluate(ds Dataset, pred model.Predictor, labelDef string, lp Params) (model.Metrics, error) {
	samples := make([]calibration.Sample, 0, len(ds.Examples))
	for _, ex := range ds.Examples {
		prob, err := pred.Predict(ex.Features)
		if err != nil {
			return model.Metrics{}, err
		}
		samples = append(samples, calibration.Sample{Probability: prob, Realized: ex.Label})
	}

	report := calibration.Compute(samples, 10, 1)
	auc := computeAUC(samples)

	bins := make([]model.ReliabilityBin, len(report.Bins))
	for i, b := range report.Bins {
		bins[i] = model.ReliabilityBin{BinIndex: b.Index, Count: b.Count, MeanPredProb: b.MeanPredProb, EmpiricalProb: b.EmpiricalProb}
	}

	return model.Metrics{
		AUC:             auc,
		Brier:           report.Brier,
		ECE:             report.ECE,
		MCE:             report.MCE,
		ReliabilityBins: bins,
		LabelDefinition: labelDef,
		LabelParams:     lp.Label,
		Samples:         len(ds.Examples),
	}, nil
}

// computeAUC is the Mann-Whitney U statistic normalized by pos*neg,
// equivalent to the area under the ROC curve for binary labels.
func computeAUC(samples []calibration.Sample) float64 {
	type ranked struct {
		prob  float64
		label int
	}
	rs := make([]ranked, len(samples))
	for i, s := range samples {
		rs[i] = ranked{prob: s.Probability, label: s.Realized}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].prob < rs[j].prob })

	var pos, neg int
	for _, r := range rs {
		if r.label == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	var rankSum float64
	i := 0
	for i < len(rs) {
		j := i
		for j < len(rs) && rs[j].prob == rs[i].prob {
			j++
		}
		avgRank := float64(i+1+j) / 2.0
		for k := i; k < j; k++ {
			if rs[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	u := rankSum - float64(pos)*float64(pos+1)/2.0
	return u / (float64(pos) * float64(neg))
}
