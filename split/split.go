// Package split partitions process traces into train and test sets.
//
// Partitioning happens at process granularity: every window cut from a given
// pid lands in the same partition, which is what keeps overlapping windows
// from leaking between train and test.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/tcassar-diss/scwin/label"
	"github.com/tcassar-diss/scwin/trace"
)

var (
	ErrBadRatio   = errors.New("split ratio must be in (0, 1)")
	ErrImbalanced = errors.New("partition class balance outside tolerance")
)

// Config controls the split. Seed is required and explicit: the splitter
// never touches ambient global random state, so a fixed seed makes the
// partition reproducible across runs and machines.
type Config struct {
	Ratio     float64
	Seed      int64
	Tolerance float64
}

// Split partitions traces by pid, stratified by ground-truth class. Both
// partitions retain the overall class balance within cfg.Tolerance
// (absolute fraction); a larger deviation fails the run rather than
// silently biasing results.
func Split(traces map[int32]*trace.ProcessTrace, cfg Config) (train, test []*trace.ProcessTrace, err error) {
	if cfg.Ratio <= 0 || cfg.Ratio >= 1 {
		return nil, nil, fmt.Errorf("%w: got %v", ErrBadRatio, cfg.Ratio)
	}

	all := make([]*trace.ProcessTrace, 0, len(traces))
	for _, t := range traces {
		all = append(all, t)
	}

	// map iteration order is random; sort before shuffling so the seeded
	// shuffle is the only source of permutation
	slices.SortFunc(all, func(a, b *trace.ProcessTrace) int {
		return int(a.PID) - int(b.PID)
	})

	rng := rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)))

	for _, class := range []label.Class{label.Benign, label.Malicious} {
		group := make([]*trace.ProcessTrace, 0, len(all))

		for _, t := range all {
			if t.Class == class {
				group = append(group, t)
			}
		}

		rng.Shuffle(len(group), func(i, j int) {
			group[i], group[j] = group[j], group[i]
		})

		nTrain := int(math.Round(cfg.Ratio * float64(len(group))))

		train = append(train, group[:nTrain]...)
		test = append(test, group[nTrain:]...)
	}

	if err := checkBalance(all, train, cfg.Tolerance); err != nil {
		return nil, nil, fmt.Errorf("train partition: %w", err)
	}

	if err := checkBalance(all, test, cfg.Tolerance); err != nil {
		return nil, nil, fmt.Errorf("test partition: %w", err)
	}

	return train, test, nil
}

func maliciousFraction(traces []*trace.ProcessTrace) float64 {
	if len(traces) == 0 {
		return 0
	}

	n := 0

	for _, t := range traces {
		if t.Class == label.Malicious {
			n++
		}
	}

	return float64(n) / float64(len(traces))
}

func checkBalance(all, part []*trace.ProcessTrace, tolerance float64) error {
	if len(part) == 0 {
		return nil
	}

	want := maliciousFraction(all)
	got := maliciousFraction(part)

	if math.Abs(want-got) > tolerance {
		return fmt.Errorf("%w: overall malicious fraction %.3f, partition %.3f", ErrImbalanced, want, got)
	}

	return nil
}
