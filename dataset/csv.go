package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

var ErrBadCSV = errors.New("dataset csv invalid")

const (
	TrainFile = "train.csv"
	TestFile  = "test.csv"
)

// WriteCSV serializes both partitions under dir, one row per example, one
// column per feature dimension. Floats use the shortest round-trip
// representation so output is byte-stable for identical inputs.
func (d *Dataset) WriteCSV(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writePartition(filepath.Join(dir, TrainFile), d.Train, d.Dim); err != nil {
		return fmt.Errorf("failed to write train partition: %w", err)
	}

	if err := writePartition(filepath.Join(dir, TestFile), d.Test, d.Dim); err != nil {
		return fmt.Errorf("failed to write test partition: %w", err)
	}

	return nil
}

func header(dim int) []string {
	h := []string{"pid", "function", "start", "end", "label", "attack"}

	for i := 0; i < dim; i++ {
		h = append(h, "f"+strconv.Itoa(i))
	}

	return h
}

func writePartition(path string, examples []Example, dim int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(header(dim)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, 0, 6+dim)

	for _, ex := range examples {
		row = row[:0]
		row = append(row,
			strconv.FormatInt(int64(ex.PID), 10),
			ex.FunctionLabel,
			strconv.Itoa(ex.Start),
			strconv.Itoa(ex.End),
			strconv.Itoa(ex.Label),
			strconv.Itoa(ex.Attack),
		)

		for _, v := range ex.Features {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}

		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write example row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return nil
}

// ReadCSV loads one partition written by WriteCSV. It returns the examples
// and the feature dimensionality.
func ReadCSV(path string) ([]Example, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)

	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, 0, fmt.Errorf("%w: %s is empty", ErrBadCSV, path)
	}

	if len(records[0]) < 6 {
		return nil, 0, fmt.Errorf("%w: %s header has %d columns", ErrBadCSV, path, len(records[0]))
	}

	dim := len(records[0]) - 6
	examples := make([]Example, 0, len(records)-1)

	for _, rec := range records[1:] {
		ex, err := parseRow(rec, dim)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		examples = append(examples, ex)
	}

	return examples, dim, nil
}

func parseRow(rec []string, dim int) (Example, error) {
	if len(rec) != 6+dim {
		return Example{}, fmt.Errorf("%w: row has %d columns, want %d", ErrBadCSV, len(rec), 6+dim)
	}

	pid, err := strconv.ParseInt(rec[0], 10, 32)
	if err != nil {
		return Example{}, fmt.Errorf("%w: bad pid %q", ErrBadCSV, rec[0])
	}

	ints := make([]int, 4)

	for i, field := range rec[2:6] {
		n, err := strconv.Atoi(field)
		if err != nil {
			return Example{}, fmt.Errorf("%w: bad integer field %q", ErrBadCSV, field)
		}

		ints[i] = n
	}

	features := make([]float64, dim)

	for i, field := range rec[6:] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Example{}, fmt.Errorf("%w: bad feature %q", ErrBadCSV, field)
		}

		features[i] = v
	}

	return Example{
		PID:           int32(pid),
		FunctionLabel: rec[1],
		Start:         ints[0],
		End:           ints[1],
		Label:         ints[2],
		Attack:        ints[3],
		Features:      features,
	}, nil
}
