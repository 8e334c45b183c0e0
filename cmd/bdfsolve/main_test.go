package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const springDeck = `bulk:
  - [GRID, 1, null, 0.0, 0.0, 0.0]
  - [GRID, 2, null, 1.0, 0.0, 0.0]
  - [GRID, 3, null, 9.0, 9.0, 9.0]
  - [CELAS2, 1, 100.0, 1, 1, 2, 1]
  - [SPC1, 1, 123456, 1]
  - [FORCE, 2, 2, 0, 1.0, 1.0, 0.0, 0.0]
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath, outputPath, verbose = "", "", false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "check", writeFile(t, "deck.yaml", springDeck))
	require.NoError(t, err)
	assert.Contains(t, out, "node")
	assert.Regexp(t, `dofs\s+12`, out)
}

func TestPrune(t *testing.T) {
	out, err := execute(t, "prune", writeFile(t, "deck.yaml", springDeck))
	require.NoError(t, err)
	assert.Contains(t, out, "[3]")
	assert.Contains(t, out, "removed 1")
}

func TestRun(t *testing.T) {
	cfg := writeFile(t, "case.yaml", "subcases: [{id: 1, spc: 1, load: 2}]\n")
	result := filepath.Join(t.TempDir(), "result.yaml")
	_, err := execute(t, "run", "--config", cfg, "--output", result, writeFile(t, "deck.yaml", springDeck))
	require.NoError(t, err)

	data, err := os.ReadFile(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id:")
	assert.Contains(t, string(data), "displacements:")
}

func TestRun_Errors(t *testing.T) {
	_, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, "case.yaml", "sol: 200\n")
	_, err = execute(t, "run", "--config", bad, writeFile(t, "deck.yaml", springDeck))
	assert.Error(t, err)
}
