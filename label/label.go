package label

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownLabel = errors.New("function label matches no configured pattern")
	ErrBadRule      = errors.New("label rule invalid")
)

// Class is the ground-truth class of a trace. The integer values are part of
// the dataset contract: benign encodes to 0 and malicious to 1.
type Class int

const (
	Benign Class = iota
	Malicious
)

func (c Class) String() string {
	if c == Malicious {
		return "malicious"
	}

	return "benign"
}

func ParseClass(s string) (Class, error) {
	switch s {
	case "benign":
		return Benign, nil
	case "malicious":
		return Malicious, nil
	default:
		return Benign, fmt.Errorf("%w: unknown class %q", ErrBadRule, s)
	}
}

// AttackType is a secondary label for malicious traces. AttackNone (0) marks
// benign traces and malicious traces with no configured attack type.
type AttackType int

const (
	AttackNone AttackType = iota
	InfoStealing
	CodeExecution
	CommandExecution
	FileOperation
)

var attackNames = map[AttackType]string{
	AttackNone:       "none",
	InfoStealing:     "info_stealing",
	CodeExecution:    "code_execution",
	CommandExecution: "command_execution",
	FileOperation:    "file_operation",
}

func (a AttackType) String() string {
	name, ok := attackNames[a]
	if !ok {
		return "none"
	}

	return name
}

func ParseAttackType(s string) (AttackType, error) {
	for at, name := range attackNames {
		if name == s {
			return at, nil
		}
	}

	return AttackNone, fmt.Errorf("%w: unknown attack type %q", ErrBadRule, s)
}

// Rule maps a function-name pattern to its ground truth. Pattern is an
// anchored regular expression matched against the full function label.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Class   string `yaml:"class"`
	Attack  string `yaml:"attack,omitempty"`
}

type compiledRule struct {
	re     *regexp.Regexp
	class  Class
	attack AttackType
}

// Table assigns ground-truth labels to function names. Rules are evaluated
// in order and the first match wins, so specific compromised patterns must
// appear before the broad benign pattern for the same function family.
type Table struct {
	rules []compiledRule
}

func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: empty rule set", ErrBadRule)
	}

	compiled := make([]compiledRule, 0, len(rules))

	for _, r := range rules {
		re, err := regexp.Compile("^(?:" + r.Pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrBadRule, r.Pattern, err)
		}

		class, err := ParseClass(r.Class)
		if err != nil {
			return nil, fmt.Errorf("failed to parse rule for %q: %w", r.Pattern, err)
		}

		attack := AttackNone

		if r.Attack != "" {
			attack, err = ParseAttackType(r.Attack)
			if err != nil {
				return nil, fmt.Errorf("failed to parse rule for %q: %w", r.Pattern, err)
			}
		}

		if class == Benign && attack != AttackNone {
			return nil, fmt.Errorf("%w: benign rule %q carries attack type %q", ErrBadRule, r.Pattern, r.Attack)
		}

		compiled = append(compiled, compiledRule{re: re, class: class, attack: attack})
	}

	return &Table{rules: compiled}, nil
}

// LoadTable reads a YAML rule list from disk.
func LoadTable(path string) (*Table, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label table %s: %w", path, err)
	}

	var rules []Rule

	if err := yaml.Unmarshal(bts, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse label table %s: %w", path, err)
	}

	return NewTable(rules)
}

// Assign resolves a function label to its ground truth. An unmatched label is
// an error: defaulting to benign would silently corrupt training data.
func (t *Table) Assign(functionLabel string) (Class, AttackType, error) {
	for _, r := range t.rules {
		if r.re.MatchString(functionLabel) {
			return r.class, r.attack, nil
		}
	}

	return Benign, AttackNone, fmt.Errorf("%w: %q", ErrUnknownLabel, functionLabel)
}
