package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tcassar-diss/scwin/trace"
)

// Manifest records everything needed to reproduce or debug a build run: the
// run identity, the effective configuration, and per-run ingest diagnostics.
type Manifest struct {
	RunID         string            `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Config        map[string]any    `json:"config"`
	Ingest        trace.Diagnostics `json:"ingest"`
	VocabSize     int               `json:"vocab_size"`
	TrainExamples int               `json:"train_examples"`
	TestExamples  int               `json:"test_examples"`
}

func WriteManifest(path string, m *Manifest) error {
	bts, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, bts, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}
