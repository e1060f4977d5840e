package training

import (
	"github.com/sawpanic/bottomrun/internal/label"
)

// BuildDataset aligns closed-bar closes with precomputed feature vectors
// (one per close, produced by the Feature Engine) and assigns labels via
// the shared bottom-event rule (internal/label), the same code path the
// Labeler uses. Rows whose label is pending (t+H > n-1) are dropped,
// never included as unlabeled training rows.
func BuildDataset(closes []float64, features [][]float64, p label.Params) Dataset {
	outcomes := label.AssignAll(closes, p)

	ds := Dataset{}
	for t, o := range outcomes {
		if o.Pending {
			continue
		}
		if t >= len(features) {
			continue
		}
		ds.Examples = append(ds.Examples, Example{
			Features: features[t],
			Label:    o.Label,
			AsOf:     t,
		})
	}
	return ds
}

// ChronologicalSplit splits a dataset into train/validation sets by
// index order (no shuffling), holding out the final valFraction of rows
// as the validation tail, matching spec.md §4.4's "held-out tail"
// evaluation design.
func ChronologicalSplit(ds Dataset, valFraction float64) (train, val Dataset) {
	n := len(ds.Examples)
	if n == 0 {
		return Dataset{}, Dataset{}
	}
	valN := int(float64(n) * valFraction)
	if valN < 1 {
		valN = 1
	}
	if valN >= n {
		valN = n - 1
	}
	splitAt := n - valN
	return Dataset{Examples: ds.Examples[:splitAt]}, Dataset{Examples: ds.Examples[splitAt:]}
}

func (d Dataset) ClassCounts() (pos, neg int) {
	for _, e := range d.Examples {
		if e.Label == 1 {
			pos++
		} else {
			neg++
		}
	}
	return
}
