package trace

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrNoEvents      = errors.New("no usable events found in run")
	ErrRecordInvalid = errors.New("trace record invalid")
	ErrLabelConflict = errors.New("pid observed under two function labels")
)

// RecordRegex matches one trace record: timestamp, pid, syscall name, then
// an optional return value and args digest.
var RecordRegex = regexp.MustCompile(`^(\d+(?:\.\d+)?),(\d+),([A-Za-z_][A-Za-z0-9_]*)(?:,(-?\d*)(?:,(.*))?)?$`)

// Diagnostics are per-run recovery counts. Malformed lines and dropped
// duplicates are skipped locally, never fatal; callers surface them so that
// upstream capture problems stay visible.
type Diagnostics struct {
	Files             int `json:"files"`
	Events            int `json:"events"`
	Processes         int `json:"processes"`
	MalformedLines    int `json:"malformed_lines"`
	DuplicatesDropped int `json:"duplicates_dropped"`
}

// Ingestor parses raw trace files into per-process syscall sequences.
//
// Consecutive events that are byte-identical apart from their timestamps and
// closer together than epsilon seconds are treated as tracer retry artifacts
// and collapsed. epsilon = 0 disables deduplication.
type Ingestor struct {
	logger  *zap.SugaredLogger
	epsilon float64
}

func NewIngestor(logger *zap.SugaredLogger, epsilon float64) *Ingestor {
	return &Ingestor{
		logger:  logger,
		epsilon: epsilon,
	}
}

// Ingest reads every file of a run and returns one finalized ProcessTrace
// per observed pid. The function label of a trace is the file name stem of
// the capture file that produced it (the per-pod capture file convention).
//
// A run in which no file yields a single valid event fails with ErrNoEvents:
// windowing an empty run downstream would fabricate all-padding examples.
func (i *Ingestor) Ingest(ctx context.Context, paths []string) (map[int32]*ProcessTrace, *Diagnostics, error) {
	diags := &Diagnostics{}
	traces := make(map[int32]*ProcessTrace)

	for _, fp := range paths {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		if err := i.ingestFile(fp, traces, diags); err != nil {
			return nil, nil, fmt.Errorf("failed to ingest %s: %w", fp, err)
		}

		diags.Files++
	}

	if diags.Events == 0 {
		return nil, nil, fmt.Errorf("%w: %d file(s), %d malformed line(s)", ErrNoEvents, len(paths), diags.MalformedLines)
	}

	for _, t := range traces {
		i.finalize(t, diags)
	}

	diags.Processes = len(traces)

	return traces, diags, nil
}

func (i *Ingestor) ingestFile(fp string, traces map[int32]*ProcessTrace, diags *Diagnostics) error {
	f, err := os.Open(fp)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	functionLabel := strings.TrimSuffix(filepath.Base(fp), filepath.Ext(fp))

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		l := strings.TrimSpace(scanner.Text())

		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}

		event, err := i.parseLine(l)
		if errors.Is(err, ErrRecordInvalid) {
			diags.MalformedLines++
			continue
		} else if err != nil {
			return fmt.Errorf("failed to parse trace record: %w", err)
		}

		t, ok := traces[event.PID]
		if !ok {
			t = &ProcessTrace{PID: event.PID, FunctionLabel: functionLabel}
			traces[event.PID] = t
		}

		if t.FunctionLabel != functionLabel {
			return fmt.Errorf("%w: pid %d seen as %q and %q", ErrLabelConflict, event.PID, t.FunctionLabel, functionLabel)
		}

		event.SequenceIndex = len(t.Events)
		t.Events = append(t.Events, *event)

		diags.Events++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan trace file: %w", err)
	}

	return nil
}

func (i *Ingestor) parseLine(l string) (*SyscallEvent, error) {
	res := RecordRegex.FindStringSubmatch(l)

	if len(res) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrRecordInvalid, l)
	}

	ts, err := strconv.ParseFloat(res[1], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrRecordInvalid, res[1])
	}

	pid, err := strconv.ParseInt(res[2], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pid %q", ErrRecordInvalid, res[2])
	}

	event := SyscallEvent{
		Timestamp: ts,
		Syscall:   res[3],
		PID:       int32(pid),
	}

	if res[4] != "" {
		ret, err := strconv.ParseInt(res[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad return value %q", ErrRecordInvalid, res[4])
		}

		event.RetVal = &ret
	}

	event.ArgsDigest = res[5]

	return &event, nil
}

// finalize orders a trace and collapses tracer retry duplicates. Timestamps
// across merged capture files may interleave non-monotonically, so events are
// stable-sorted by (timestamp, sequence index) before deduplication.
func (i *Ingestor) finalize(t *ProcessTrace, diags *Diagnostics) {
	slices.SortStableFunc(t.Events, func(a, b SyscallEvent) int {
		if a.Timestamp != b.Timestamp {
			if a.Timestamp < b.Timestamp {
				return -1
			}
			return 1
		}

		return a.SequenceIndex - b.SequenceIndex
	})

	if i.epsilon <= 0 || len(t.Events) < 2 {
		return
	}

	deduped := t.Events[:1]

	for _, e := range t.Events[1:] {
		prev := deduped[len(deduped)-1]

		if i.sameEvent(prev, e) && e.Timestamp-prev.Timestamp <= i.epsilon {
			diags.DuplicatesDropped++
			diags.Events--

			continue
		}

		deduped = append(deduped, e)
	}

	if dropped := len(t.Events) - len(deduped); dropped > 0 {
		i.logger.Infow("collapsed duplicate events", "pid", t.PID, "dropped", dropped)
	}

	t.Events = deduped
}

func (i *Ingestor) sameEvent(a, b SyscallEvent) bool {
	if a.Syscall != b.Syscall || a.ArgsDigest != b.ArgsDigest {
		return false
	}

	if (a.RetVal == nil) != (b.RetVal == nil) {
		return false
	}

	return a.RetVal == nil || *a.RetVal == *b.RetVal
}
