package encode

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/tcassar-diss/scwin/window"
)

var (
	ErrVocabularyFrozen = errors.New("vocabulary is frozen: fitting is restricted to the training partition")
	ErrVocabularyOpen   = errors.New("vocabulary must be frozen before encoding")
)

// Vocabulary is the stable mapping from syscall name to integer id.
//
// It is fit exclusively on the training partition, then frozen. Real tokens
// get ids 0..n-1 in (count descending, name ascending) order so two fits over
// the same data always assign identical ids; out-of-vocabulary tokens map to
// UnknownID and never grow the mapping, and PadID marks padding positions.
type Vocabulary struct {
	mu     sync.Mutex
	counts map[string]int
	ids    map[string]int
	tokens []string
	frozen bool
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{
		counts: make(map[string]int),
	}
}

// Observe accumulates token counts from one training sequence. Padding
// tokens are ignored: padding is an encoding artifact, not a syscall.
func (v *Vocabulary) Observe(tokens []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frozen {
		return ErrVocabularyFrozen
	}

	for _, tok := range tokens {
		if tok == window.PadToken {
			continue
		}

		v.counts[tok]++
	}

	return nil
}

// Merge folds a partial count map into the vocabulary. Parallel fitting
// computes per-shard partials and merges them here in a single-writer pass.
func (v *Vocabulary) Merge(partial map[string]int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frozen {
		return ErrVocabularyFrozen
	}

	for tok, n := range partial {
		if tok == window.PadToken {
			continue
		}

		v.counts[tok] += n
	}

	return nil
}

// Freeze assigns ids and makes the vocabulary immutable and safe for
// concurrent readers. Freezing twice is a no-op.
func (v *Vocabulary) Freeze() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.frozen {
		return
	}

	v.tokens = make([]string, 0, len(v.counts))
	for tok := range v.counts {
		v.tokens = append(v.tokens, tok)
	}

	slices.SortFunc(v.tokens, func(a, b string) int {
		if v.counts[a] != v.counts[b] {
			return cmp.Compare(v.counts[b], v.counts[a])
		}

		return cmp.Compare(a, b)
	})

	v.ids = make(map[string]int, len(v.tokens))
	for id, tok := range v.tokens {
		v.ids[tok] = id
	}

	v.frozen = true
}

func (v *Vocabulary) Frozen() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.frozen
}

// Size is the number of real tokens, excluding the unknown and pad ids.
func (v *Vocabulary) Size() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.tokens)
}

func (v *Vocabulary) UnknownID() int {
	return v.Size()
}

func (v *Vocabulary) PadID() int {
	return v.Size() + 1
}

// ID maps a token to its id. Unmapped tokens resolve to UnknownID and
// padding tokens to PadID. ID must only be called on a frozen vocabulary.
func (v *Vocabulary) ID(token string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.frozen {
		return 0, ErrVocabularyOpen
	}

	if token == window.PadToken {
		return len(v.tokens) + 1, nil
	}

	id, ok := v.ids[token]
	if !ok {
		return len(v.tokens), nil
	}

	return id, nil
}

// Tokens returns the id-ordered token list of a frozen vocabulary.
func (v *Vocabulary) Tokens() ([]string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.frozen {
		return nil, ErrVocabularyOpen
	}

	return slices.Clone(v.tokens), nil
}

type vocabularyFile struct {
	Tokens    []string `json:"tokens"`
	UnknownID int      `json:"unknown_token_id"`
	PadID     int      `json:"pad_token_id"`
}

// Save writes a frozen vocabulary to disk so later capture runs can be
// encoded against the exact same id space without re-fitting.
func (v *Vocabulary) Save(path string) error {
	tokens, err := v.Tokens()
	if err != nil {
		return fmt.Errorf("failed to save vocabulary: %w", err)
	}

	bts, err := json.MarshalIndent(vocabularyFile{
		Tokens:    tokens,
		UnknownID: len(tokens),
		PadID:     len(tokens) + 1,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}

	if err := os.WriteFile(path, bts, 0o644); err != nil {
		return fmt.Errorf("failed to write vocabulary: %w", err)
	}

	return nil
}

// LoadVocabulary reads a saved vocabulary. The result is already frozen.
func LoadVocabulary(path string) (*Vocabulary, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary %s: %w", path, err)
	}

	var vf vocabularyFile

	if err := json.Unmarshal(bts, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary %s: %w", path, err)
	}

	v := &Vocabulary{
		tokens: vf.Tokens,
		ids:    make(map[string]int, len(vf.Tokens)),
		frozen: true,
	}

	for id, tok := range vf.Tokens {
		v.ids[tok] = id
	}

	return v, nil
}
