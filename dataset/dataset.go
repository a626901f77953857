package dataset

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/tcassar-diss/scwin/encode"
)

var (
	ErrLeakage     = errors.New("pid present in both train and test partitions")
	ErrDimMismatch = errors.New("inconsistent feature dimensionality")
)

// Example is one encoded window. Label follows the classifier contract:
// benign = 0, malicious = 1, with Attack as a secondary integer label.
type Example struct {
	PID           int32
	FunctionLabel string
	Start         int
	End           int
	Label         int
	Attack        int
	Features      []float64
}

// Dataset is the pipeline's output: encoded train/test examples with stable
// feature dimensionality.
type Dataset struct {
	Encoding encode.Encoding
	Dim      int
	Train    []Example
	Test     []Example
}

// Sort orders both partitions by (function label, pid, window start) so a
// fixed input and seed always serialize byte-identically.
func (d *Dataset) Sort() {
	for _, part := range [][]Example{d.Train, d.Test} {
		slices.SortFunc(part, func(a, b Example) int {
			if c := cmp.Compare(a.FunctionLabel, b.FunctionLabel); c != 0 {
				return c
			}

			if c := cmp.Compare(a.PID, b.PID); c != 0 {
				return c
			}

			return cmp.Compare(a.Start, b.Start)
		})
	}
}

// Validate enforces the leakage invariant and dimensionality stability.
// A pid on both sides of the split is a splitter bug and fails the run.
func (d *Dataset) Validate() error {
	trainPIDs := make(map[int32]struct{}, len(d.Train))

	for _, ex := range d.Train {
		trainPIDs[ex.PID] = struct{}{}
	}

	for _, ex := range d.Test {
		if _, ok := trainPIDs[ex.PID]; ok {
			return fmt.Errorf("%w: pid %d (%s)", ErrLeakage, ex.PID, ex.FunctionLabel)
		}
	}

	for _, part := range [][]Example{d.Train, d.Test} {
		for _, ex := range part {
			if len(ex.Features) != d.Dim {
				return fmt.Errorf("%w: pid %d window [%d,%d) has %d features, want %d",
					ErrDimMismatch, ex.PID, ex.Start, ex.End, len(ex.Features), d.Dim)
			}
		}
	}

	return nil
}
