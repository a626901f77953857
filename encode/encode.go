package encode

import (
	"errors"
	"fmt"

	"github.com/tcassar-diss/scwin/window"
)

var ErrBadEncoding = errors.New("unknown encoding")

type Encoding string

const (
	TokenSequence   Encoding = "token_sequence"
	FrequencyVector Encoding = "frequency_vector"
)

// Encoder turns a window into a fixed-length feature vector. Encoders are
// read-only over a frozen vocabulary, so one encoder may be shared across
// goroutines.
type Encoder interface {
	Encode(w window.Window) ([]float64, error)
	Dim() int
}

// NewEncoder selects an encoding strategy. size is the window size and fixes
// the output length of the token-sequence encoder; normalize applies only to
// frequency vectors.
func NewEncoder(enc Encoding, vocab *Vocabulary, size int, normalize bool) (Encoder, error) {
	if !vocab.Frozen() {
		return nil, fmt.Errorf("failed to create encoder: %w", ErrVocabularyOpen)
	}

	switch enc {
	case TokenSequence:
		return &tokenSequenceEncoder{vocab: vocab, size: size}, nil
	case FrequencyVector:
		return &frequencyEncoder{vocab: vocab, normalize: normalize}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadEncoding, enc)
	}
}

// tokenSequenceEncoder emits one vocabulary id per window position, padded
// or truncated to the configured window size. Token ids are small integers
// and survive the float64 representation exactly.
type tokenSequenceEncoder struct {
	vocab *Vocabulary
	size  int
}

func (e *tokenSequenceEncoder) Dim() int {
	return e.size
}

func (e *tokenSequenceEncoder) Encode(w window.Window) ([]float64, error) {
	out := make([]float64, e.size)
	padID := float64(e.vocab.PadID())

	for i := range out {
		if i >= len(w.Tokens) {
			out[i] = padID
			continue
		}

		id, err := e.vocab.ID(w.Tokens[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode token %q: %w", w.Tokens[i], err)
		}

		out[i] = float64(id)
	}

	return out, nil
}

// frequencyEncoder counts each vocabulary token's occurrences within the
// window. The vector has size+1 slots: one per real token plus a trailing
// unknown bucket. Padding positions contribute nothing.
type frequencyEncoder struct {
	vocab     *Vocabulary
	normalize bool
}

func (e *frequencyEncoder) Dim() int {
	return e.vocab.Size() + 1
}

func (e *frequencyEncoder) Encode(w window.Window) ([]float64, error) {
	out := make([]float64, e.vocab.Size()+1)
	total := 0

	for _, tok := range w.Tokens {
		if tok == window.PadToken {
			continue
		}

		id, err := e.vocab.ID(tok)
		if err != nil {
			return nil, fmt.Errorf("failed to encode token %q: %w", tok, err)
		}

		out[id]++
		total++
	}

	if e.normalize && total > 0 {
		for i := range out {
			out[i] /= float64(total)
		}
	}

	return out, nil
}
