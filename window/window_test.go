package window_test

import (
	"slices"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/scwin/trace"
	"github.com/tcassar-diss/scwin/window"
)

func testTrace(n int) *trace.ProcessTrace {
	t := &trace.ProcessTrace{PID: 100, FunctionLabel: "kmeans-clustering-6bd4d754cf-9qzv9"}

	for i := 0; i < n; i++ {
		t.Events = append(t.Events, trace.SyscallEvent{
			SequenceIndex: i,
			Timestamp:     float64(i),
			Syscall:       "sc" + strconv.Itoa(i),
			PID:           100,
		})
	}

	return t
}

func collect(s *window.Segmenter, t *trace.ProcessTrace) []window.Window {
	var windows []window.Window

	for w := range s.Windows(t) {
		windows = append(windows, w)
	}

	return windows
}

func TestWindowsDropTail(t *testing.T) {
	// 25 events, size 10, stride 10: two full windows, tail dropped
	s, err := window.NewSegmenter(window.Config{Size: 10, Stride: 10, Tail: window.TailDrop})
	require.NoError(t, err)

	windows := collect(s, testTrace(25))
	require.Len(t, windows, 2)

	require.Equal(t, 0, windows[0].Start)
	require.Equal(t, 10, windows[0].End)
	require.Equal(t, 10, windows[1].Start)
	require.Equal(t, 20, windows[1].End)

	require.Equal(t, "sc0", windows[0].Tokens[0])
	require.Equal(t, "sc19", windows[1].Tokens[9])
}

func TestWindowsPadTail(t *testing.T) {
	// same trace under pad: a third window with 5 real and 5 pad tokens
	s, err := window.NewSegmenter(window.Config{Size: 10, Stride: 10, Tail: window.TailPad})
	require.NoError(t, err)

	windows := collect(s, testTrace(25))
	require.Len(t, windows, 3)

	last := windows[2]
	require.Equal(t, 20, last.Start)
	require.Equal(t, 25, last.End)
	require.Len(t, last.Tokens, 10)

	for i := 0; i < 5; i++ {
		require.Equal(t, "sc"+strconv.Itoa(20+i), last.Tokens[i])
	}

	for i := 5; i < 10; i++ {
		require.Equal(t, window.PadToken, last.Tokens[i])
	}
}

func TestWindowsShortTrace(t *testing.T) {
	tr := testTrace(4)

	drop, err := window.NewSegmenter(window.Config{Size: 10, Stride: 10, Tail: window.TailDrop})
	require.NoError(t, err)
	require.Empty(t, collect(drop, tr))

	pad, err := window.NewSegmenter(window.Config{Size: 10, Stride: 10, Tail: window.TailPad})
	require.NoError(t, err)

	windows := collect(pad, tr)
	require.Len(t, windows, 1)
	require.Equal(t, 4, windows[0].End)
	require.Equal(t, window.PadToken, windows[0].Tokens[9])
}

func TestWindowsOverlapping(t *testing.T) {
	s, err := window.NewSegmenter(window.Config{Size: 10, Stride: 5, Tail: window.TailDrop})
	require.NoError(t, err)

	windows := collect(s, testTrace(25))

	// floor((25 - 10) / 5) + 1
	require.Len(t, windows, 4)

	for i, w := range windows {
		require.Equal(t, i*5, w.Start)
		require.Equal(t, i*5+10, w.End)
	}
}

func TestWindowsRestartable(t *testing.T) {
	s, err := window.NewSegmenter(window.Config{Size: 10, Stride: 5, Tail: window.TailPad})
	require.NoError(t, err)

	tr := testTrace(23)

	first := collect(s, tr)
	second := collect(s, tr)

	require.Equal(t, first, second)
}

func TestWindowsCarryGroundTruth(t *testing.T) {
	s, err := window.NewSegmenter(window.Config{Size: 5, Stride: 5, Tail: window.TailDrop})
	require.NoError(t, err)

	tr := testTrace(10)

	for _, w := range collect(s, tr) {
		require.Equal(t, tr.PID, w.PID)
		require.Equal(t, tr.FunctionLabel, w.FunctionLabel)
	}
}

func TestCount(t *testing.T) {
	cases := []struct {
		name   string
		n      int
		cfg    window.Config
		expect int
	}{
		{name: "drop exact multiple", n: 20, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailDrop}, expect: 2},
		{name: "drop with remainder", n: 25, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailDrop}, expect: 2},
		{name: "pad with remainder", n: 25, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailPad}, expect: 3},
		{name: "pad exact multiple", n: 20, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailPad}, expect: 2},
		{name: "drop short trace", n: 4, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailDrop}, expect: 0},
		{name: "pad short trace", n: 4, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailPad}, expect: 1},
		{name: "drop overlapping", n: 25, cfg: window.Config{Size: 10, Stride: 5, Tail: window.TailDrop}, expect: 4},
		{name: "pad overlapping", n: 25, cfg: window.Config{Size: 10, Stride: 5, Tail: window.TailPad}, expect: 5},
		{name: "empty trace", n: 0, cfg: window.Config{Size: 10, Stride: 10, Tail: window.TailPad}, expect: 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := window.NewSegmenter(c.cfg)
			require.NoError(t, err)

			require.Equal(t, c.expect, s.Count(c.n))

			// Count must agree with the iterator
			require.Len(t, collect(s, testTrace(c.n)), c.expect)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  window.Config
	}{
		{name: "zero size", cfg: window.Config{Size: 0, Stride: 1, Tail: window.TailDrop}},
		{name: "zero stride", cfg: window.Config{Size: 10, Stride: 0, Tail: window.TailDrop}},
		{name: "bad tail policy", cfg: window.Config{Size: 10, Stride: 10, Tail: "truncate"}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.ErrorIs(t, c.cfg.Validate(), window.ErrBadConfig)
		})
	}
}

func TestWindowsEarlyBreak(t *testing.T) {
	// a consumer may stop ranging at any point without draining the sequence
	s, err := window.NewSegmenter(window.Config{Size: 5, Stride: 5, Tail: window.TailDrop})
	require.NoError(t, err)

	var starts []int

	for w := range s.Windows(testTrace(25)) {
		starts = append(starts, w.Start)

		if len(starts) == 2 {
			break
		}
	}

	require.True(t, slices.Equal([]int{0, 5}, starts))
}
