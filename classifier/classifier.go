// Package classifier defines the narrow contract any model family consumes
// the pipeline through, plus a nearest-centroid baseline used as a sanity
// check on built datasets. Real experiments swap in external model stacks
// behind the same interface.
package classifier

import (
	"errors"
	"fmt"
	"math"

	"github.com/tcassar-diss/scwin/dataset"
)

var (
	ErrNotFitted  = errors.New("classifier has not been fitted")
	ErrNoTraining = errors.New("training partition is empty")
	ErrDim        = errors.New("feature dimensionality mismatch")
)

type Classifier interface {
	Fit(ds *dataset.Dataset) error
	Predict(features []float64) (int, error)
}

// NearestCentroid predicts the class whose training centroid is nearest in
// euclidean distance. It is intentionally crude: its only job is proving the
// dataset contract (shape stability, label encoding) end to end.
type NearestCentroid struct {
	centroids map[int][]float64
	dim       int
}

func NewNearestCentroid() *NearestCentroid {
	return &NearestCentroid{}
}

func (n *NearestCentroid) Fit(ds *dataset.Dataset) error {
	if len(ds.Train) == 0 {
		return ErrNoTraining
	}

	sums := make(map[int][]float64)
	counts := make(map[int]int)

	for _, ex := range ds.Train {
		if len(ex.Features) != ds.Dim {
			return fmt.Errorf("%w: example has %d features, dataset says %d", ErrDim, len(ex.Features), ds.Dim)
		}

		sum, ok := sums[ex.Label]
		if !ok {
			sum = make([]float64, ds.Dim)
			sums[ex.Label] = sum
		}

		for i, v := range ex.Features {
			sum[i] += v
		}

		counts[ex.Label]++
	}

	n.centroids = make(map[int][]float64, len(sums))

	for lbl, sum := range sums {
		centroid := make([]float64, len(sum))

		for i, v := range sum {
			centroid[i] = v / float64(counts[lbl])
		}

		n.centroids[lbl] = centroid
	}

	n.dim = ds.Dim

	return nil
}

func (n *NearestCentroid) Predict(features []float64) (int, error) {
	if n.centroids == nil {
		return 0, ErrNotFitted
	}

	if len(features) != n.dim {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrDim, len(features), n.dim)
	}

	best := 0
	bestDist := math.Inf(1)

	for lbl, centroid := range n.centroids {
		dist := 0.0

		for i, v := range features {
			d := v - centroid[i]
			dist += d * d
		}

		// ties break towards the smaller label for determinism
		if dist < bestDist || (dist == bestDist && lbl < best) {
			best = lbl
			bestDist = dist
		}
	}

	return best, nil
}

// Report summarizes one evaluation pass. Confusion is indexed
// [actual][predicted] over the benign=0 / malicious=1 label encoding.
type Report struct {
	N         int
	Correct   int
	Accuracy  float64
	Confusion [2][2]int
}

// Evaluate runs a fitted classifier over a set of examples.
func Evaluate(c Classifier, examples []dataset.Example) (*Report, error) {
	r := &Report{}

	for _, ex := range examples {
		pred, err := c.Predict(ex.Features)
		if err != nil {
			return nil, fmt.Errorf("failed to predict pid %d window [%d,%d): %w", ex.PID, ex.Start, ex.End, err)
		}

		if ex.Label >= 0 && ex.Label < 2 && pred >= 0 && pred < 2 {
			r.Confusion[ex.Label][pred]++
		}

		if pred == ex.Label {
			r.Correct++
		}

		r.N++
	}

	if r.N > 0 {
		r.Accuracy = float64(r.Correct) / float64(r.N)
	}

	return r, nil
}
