package window

import (
	"errors"
	"fmt"
	"iter"

	"github.com/tcassar-diss/scwin/label"
	"github.com/tcassar-diss/scwin/trace"
)

var ErrBadConfig = errors.New("window config invalid")

// PadToken marks padding positions in a tail-padded window.
const PadToken = ""

type TailPolicy string

const (
	TailDrop TailPolicy = "drop"
	TailPad  TailPolicy = "pad"
)

// Config controls segmentation. There are no defaults: window size, stride
// and tail policy materially affect class balance and leakage risk, so the
// caller must choose all three explicitly.
type Config struct {
	Size   int
	Stride int
	Tail   TailPolicy
}

func (c Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: window size must be > 0, got %d", ErrBadConfig, c.Size)
	}

	if c.Stride <= 0 {
		return fmt.Errorf("%w: stride must be > 0, got %d", ErrBadConfig, c.Stride)
	}

	if c.Tail != TailDrop && c.Tail != TailPad {
		return fmt.Errorf("%w: tail policy must be %q or %q, got %q", ErrBadConfig, TailDrop, TailPad, c.Tail)
	}

	return nil
}

// Window is one training example: a fixed-length slice of a single process's
// syscall sequence, carrying the ground truth of its source trace.
//
// End - Start equals the number of real (non-padding) events, so it is less
// than len(Tokens) only for the single trailing padded window of a trace.
type Window struct {
	PID           int32
	FunctionLabel string
	Class         label.Class
	Attack        label.AttackType
	Start         int
	End           int
	Tokens        []string
}

// Segmenter slices traces into windows at offsets 0, stride, 2*stride, ...
type Segmenter struct {
	cfg Config
}

func NewSegmenter(cfg Config) (*Segmenter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to configure segmenter: %w", err)
	}

	return &Segmenter{cfg: cfg}, nil
}

// Windows returns a lazy, finite, restartable sequence of windows over t.
// Ranging over it twice yields identical windows.
func (s *Segmenter) Windows(t *trace.ProcessTrace) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		n := len(t.Events)

		for start := 0; start < n; start += s.cfg.Stride {
			end := start + s.cfg.Size

			if end > n {
				// at most one trailing partial window per trace
				if s.cfg.Tail == TailPad {
					yield(s.window(t, start, n))
				}

				return
			}

			if !yield(s.window(t, start, end)) {
				return
			}
		}
	}
}

func (s *Segmenter) window(t *trace.ProcessTrace, start, end int) Window {
	tokens := make([]string, s.cfg.Size)

	for i := start; i < end; i++ {
		tokens[i-start] = t.Events[i].Syscall
	}

	for i := end - start; i < s.cfg.Size; i++ {
		tokens[i] = PadToken
	}

	return Window{
		PID:           t.PID,
		FunctionLabel: t.FunctionLabel,
		Class:         t.Class,
		Attack:        t.Attack,
		Start:         start,
		End:           end,
		Tokens:        tokens,
	}
}

// Count reports how many windows a trace of n events yields. Under drop this
// is max(0, floor((n - size) / stride) + 1).
func (s *Segmenter) Count(n int) int {
	if n <= 0 {
		return 0
	}

	full := 0
	if n >= s.cfg.Size {
		full = (n-s.cfg.Size)/s.cfg.Stride + 1
	}

	if s.cfg.Tail == TailDrop {
		return full
	}

	if full*s.cfg.Stride < n {
		return full + 1
	}

	return full
}
