package dataset

import "fmt"

// WriteExamplesCSV serializes a single partition, in the same row format as
// WriteCSV. Used when encoding fresh traces against a frozen vocabulary.
func WriteExamplesCSV(path string, examples []Example, dim int) error {
	if err := writePartition(path, examples, dim); err != nil {
		return fmt.Errorf("failed to write examples: %w", err)
	}

	return nil
}
