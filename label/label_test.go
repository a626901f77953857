package label_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tcassar-diss/scwin/label"
)

func testTable(t *testing.T) *label.Table {
	t.Helper()

	table, err := label.NewTable([]label.Rule{
		{Pattern: `kmeans-clustering-info-type-.*`, Class: "malicious", Attack: "info_stealing"},
		{Pattern: `kmeans-clustering-command-type-.*`, Class: "malicious", Attack: "command_execution"},
		{Pattern: `kmeans-clustering-.*`, Class: "benign"},
		{Pattern: `decisiontree-classifier-fileop-type-.*`, Class: "malicious", Attack: "file_operation"},
		{Pattern: `decisiontree-classifier-.*`, Class: "benign"},
	})
	require.NoError(t, err)

	return table
}

func TestAssign(t *testing.T) {
	cases := []struct {
		name     string
		function string
		class    label.Class
		attack   label.AttackType
	}{
		{
			name:     "benign pod",
			function: "kmeans-clustering-6bd4d754cf-9qzv9",
			class:    label.Benign,
			attack:   label.AttackNone,
		},
		{
			name:     "info stealing pod",
			function: "kmeans-clustering-info-type-c49dcc8cf-48pmg",
			class:    label.Malicious,
			attack:   label.InfoStealing,
		},
		{
			name:     "command execution pod",
			function: "kmeans-clustering-command-type-7d9f6b5c4-x2lkq",
			class:    label.Malicious,
			attack:   label.CommandExecution,
		},
		{
			name:     "file operation pod",
			function: "decisiontree-classifier-fileop-type-5f4b8c9d6-p7mwz",
			class:    label.Malicious,
			attack:   label.FileOperation,
		},
	}

	table := testTable(t)

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			class, attack, err := table.Assign(c.function)
			require.NoError(t, err)

			require.Equal(t, c.class, class)
			require.Equal(t, c.attack, attack)
		})
	}
}

func TestAssignUnknownLabel(t *testing.T) {
	table := testTable(t)

	_, _, err := table.Assign("foo-bar-123")
	require.ErrorIs(t, err, label.ErrUnknownLabel)
}

func TestAssignFirstMatchWins(t *testing.T) {
	// the specific malicious rule precedes the broad benign one, so the
	// compromised variant must not fall through to benign
	table := testTable(t)

	class, attack, err := table.Assign("kmeans-clustering-info-type-c49dcc8cf-48pmg")
	require.NoError(t, err)

	require.Equal(t, label.Malicious, class)
	require.Equal(t, label.InfoStealing, attack)
}

func TestNewTableRejectsBadRules(t *testing.T) {
	cases := []struct {
		name  string
		rules []label.Rule
	}{
		{
			name:  "empty rule set",
			rules: nil,
		},
		{
			name:  "bad regex",
			rules: []label.Rule{{Pattern: `kmeans-(`, Class: "benign"}},
		},
		{
			name:  "unknown class",
			rules: []label.Rule{{Pattern: `kmeans-.*`, Class: "suspicious"}},
		},
		{
			name:  "unknown attack type",
			rules: []label.Rule{{Pattern: `kmeans-.*`, Class: "malicious", Attack: "ransomware"}},
		},
		{
			name:  "benign rule with attack type",
			rules: []label.Rule{{Pattern: `kmeans-.*`, Class: "benign", Attack: "info_stealing"}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := label.NewTable(c.rules)
			require.ErrorIs(t, err, label.ErrBadRule)
		})
	}
}

func TestLoadTable(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "labels.yaml")

	err := os.WriteFile(fp, []byte(`
- pattern: kmeans-clustering-info-type-.*
  class: malicious
  attack: info_stealing
- pattern: kmeans-clustering-.*
  class: benign
`), 0o644)
	require.NoError(t, err)

	table, err := label.LoadTable(fp)
	require.NoError(t, err)

	class, attack, err := table.Assign("kmeans-clustering-info-type-c49dcc8cf-48pmg")
	require.NoError(t, err)

	require.Equal(t, label.Malicious, class)
	require.Equal(t, label.InfoStealing, attack)
}

func TestClassEncoding(t *testing.T) {
	// benign = 0 and malicious = 1 are part of the dataset contract
	require.Equal(t, 0, int(label.Benign))
	require.Equal(t, 1, int(label.Malicious))
}
