// Package pipeline wires the stages together: ingest raw trace files, assign
// ground truth, split by process, fit and freeze the vocabulary on the
// training side only, then window and encode both partitions.
package pipeline

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tcassar-diss/scwin/config"
	"github.com/tcassar-diss/scwin/dataset"
	"github.com/tcassar-diss/scwin/encode"
	"github.com/tcassar-diss/scwin/label"
	"github.com/tcassar-diss/scwin/split"
	"github.com/tcassar-diss/scwin/trace"
	"github.com/tcassar-diss/scwin/window"
)

type Pipeline struct {
	logger *zap.SugaredLogger
	cfg    *config.Config
	table  *label.Table
}

func New(logger *zap.SugaredLogger, cfg *config.Config, table *label.Table) *Pipeline {
	return &Pipeline{
		logger: logger,
		cfg:    cfg,
		table:  table,
	}
}

// Run executes the full build: the returned dataset is sorted, leakage-checked
// and ready to serialize alongside its frozen vocabulary.
func (p *Pipeline) Run(ctx context.Context) (*dataset.Dataset, *encode.Vocabulary, *trace.Diagnostics, error) {
	traces, diags, err := p.ingest(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	train, test, err := split.Split(traces, split.Config{
		Ratio:     p.cfg.SplitRatio,
		Seed:      p.cfg.RandomSeed,
		Tolerance: p.cfg.Tolerance,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to split run: %w", err)
	}

	p.logger.Infow("split run",
		"processes", len(traces),
		"train", len(train),
		"test", len(test),
		"seed", p.cfg.RandomSeed,
	)

	vocab, err := p.fitVocabulary(ctx, train)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to fit vocabulary: %w", err)
	}

	encoder, err := encode.NewEncoder(encode.Encoding(p.cfg.Encoding), vocab, p.cfg.WindowSize, p.cfg.Normalize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	segmenter, err := window.NewSegmenter(p.cfg.Window())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	trainExamples, err := p.encodePartition(ctx, segmenter, encoder, train)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode train partition: %w", err)
	}

	testExamples, err := p.encodePartition(ctx, segmenter, encoder, test)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode test partition: %w", err)
	}

	ds := &dataset.Dataset{
		Encoding: encode.Encoding(p.cfg.Encoding),
		Dim:      encoder.Dim(),
		Train:    trainExamples,
		Test:     testExamples,
	}

	ds.Sort()

	if err := ds.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("dataset failed validation: %w", err)
	}

	return ds, vocab, diags, nil
}

// Encode windows and encodes a fresh set of trace files against an already
// frozen vocabulary. Out-of-vocabulary syscalls map to the unknown id; the
// vocabulary is never re-fit.
func (p *Pipeline) Encode(ctx context.Context, vocab *encode.Vocabulary) ([]dataset.Example, int, *trace.Diagnostics, error) {
	traces, diags, err := p.ingest(ctx)
	if err != nil {
		return nil, 0, nil, err
	}

	encoder, err := encode.NewEncoder(encode.Encoding(p.cfg.Encoding), vocab, p.cfg.WindowSize, p.cfg.Normalize)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	segmenter, err := window.NewSegmenter(p.cfg.Window())
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to create segmenter: %w", err)
	}

	examples, err := p.encodePartition(ctx, segmenter, encoder, sortTraces(traces))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to encode traces: %w", err)
	}

	return examples, encoder.Dim(), diags, nil
}

// ingest parses all input files and attaches ground truth to every trace.
// An unknown function label is fatal: defaulting would corrupt ground truth.
func (p *Pipeline) ingest(ctx context.Context) (map[int32]*trace.ProcessTrace, *trace.Diagnostics, error) {
	ingestor := trace.NewIngestor(p.logger, p.cfg.DedupEpsilon)

	traces, diags, err := ingestor.Ingest(ctx, p.cfg.Inputs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to ingest run: %w", err)
	}

	if diags.MalformedLines > 0 || diags.DuplicatesDropped > 0 {
		p.logger.Warnw("recovered from bad trace records",
			"malformed_lines", diags.MalformedLines,
			"duplicates_dropped", diags.DuplicatesDropped,
		)
	}

	for _, t := range sortTraces(traces) {
		class, attack, err := p.table.Assign(t.FunctionLabel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to label pid %d: %w", t.PID, err)
		}

		t.Class = class
		t.Attack = attack
	}

	return traces, diags, nil
}

// fitVocabulary counts training tokens with a worker per trace, then merges
// the partial counts in a single-writer pass and freezes the result. Nothing
// outside the training partition is ever observed.
func (p *Pipeline) fitVocabulary(ctx context.Context, train []*trace.ProcessTrace) (*encode.Vocabulary, error) {
	partials := make([]map[string]int, len(train))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Workers)

	for i, t := range train {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			counts := make(map[string]int)

			for _, e := range t.Events {
				counts[e.Syscall]++
			}

			partials[i] = counts

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed while counting tokens: %w", err)
	}

	vocab := encode.NewVocabulary()

	for _, partial := range partials {
		if err := vocab.Merge(partial); err != nil {
			return nil, fmt.Errorf("failed to merge partial counts: %w", err)
		}
	}

	vocab.Freeze()

	p.logger.Infow("froze vocabulary", "tokens", vocab.Size())

	return vocab, nil
}

// encodePartition fans windowing and encoding out across traces. Each worker
// writes only its own slot, and slots are flattened in trace order so the
// result is deterministic regardless of scheduling.
func (p *Pipeline) encodePartition(
	ctx context.Context,
	segmenter *window.Segmenter,
	encoder encode.Encoder,
	traces []*trace.ProcessTrace,
) ([]dataset.Example, error) {
	results := make([][]dataset.Example, len(traces))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(p.cfg.Workers)

	for i, t := range traces {
		group.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			examples := make([]dataset.Example, 0, segmenter.Count(t.Len()))

			for w := range segmenter.Windows(t) {
				features, err := encoder.Encode(w)
				if err != nil {
					return fmt.Errorf("failed to encode pid %d window [%d,%d): %w", w.PID, w.Start, w.End, err)
				}

				examples = append(examples, dataset.Example{
					PID:           w.PID,
					FunctionLabel: w.FunctionLabel,
					Start:         w.Start,
					End:           w.End,
					Label:         int(w.Class),
					Attack:        int(w.Attack),
					Features:      features,
				})
			}

			results[i] = examples

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("failed while encoding windows: %w", err)
	}

	var examples []dataset.Example
	for _, r := range results {
		examples = append(examples, r...)
	}

	return examples, nil
}

func sortTraces(traces map[int32]*trace.ProcessTrace) []*trace.ProcessTrace {
	sorted := make([]*trace.ProcessTrace, 0, len(traces))
	for _, t := range traces {
		sorted = append(sorted, t)
	}

	slices.SortFunc(sorted, func(a, b *trace.ProcessTrace) int {
		return int(a.PID) - int(b.PID)
	})

	return sorted
}
