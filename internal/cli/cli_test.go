package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtpack/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

// writeWorkspace lays out a corpus and a config file pointing at it, all
// under a temp dir, and returns the config path.
func writeWorkspace(t *testing.T, documents map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	corpusDir := filepath.Join(dir, "corpus")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	for name, text := range documents {
		require.NoError(t, os.WriteFile(filepath.Join(corpusDir, name), []byte(text), 0o644))
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("corpus:\n  dir: %s\nindex:\n  dir: %s\n", corpusDir, filepath.Join(dir, "index"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return cfgPath
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "--config", filepath.Join(t.TempDir(), "config.yaml"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "courtpack version "+version)
}

func TestAskWithoutIndex(t *testing.T) {
	cfgPath := writeWorkspace(t, nil)

	_, err := execute(t, "--config", cfgPath, "ask", "What is the claim reference?")
	assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
}

func TestIndexThenAsk(t *testing.T) {
	cfgPath := writeWorkspace(t, map[string]string{
		"case-01.txt": "Claim Reference: CLM-2024-001\nPolicy Number: POL-00112233\nTotal Claimed: £12,500.00",
	})

	out, err := execute(t, "--config", cfgPath, "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 documents")

	out, err = execute(t, "--config", cfgPath, "ask", "--pack", "case-01", "--json", "What is the claim reference?")
	require.NoError(t, err)

	var answer domain.GroundedAnswer
	require.NoError(t, json.Unmarshal([]byte(out), &answer))
	assert.Equal(t, domain.AnswerFound, answer.Status)

	found := false
	for _, fv := range answer.Fields {
		if fv.Field == "claim_reference" {
			found = true
			assert.Equal(t, "CLM-2024-001", fv.Value)
			assert.Equal(t, 1, fv.Citation.PageNumber)
		}
	}
	assert.True(t, found, "claim_reference should be extracted")
}

func TestAskUnknownPackIsNotFound(t *testing.T) {
	cfgPath := writeWorkspace(t, map[string]string{
		"case-01.txt": "Claim Reference: CLM-2024-001",
	})

	_, err := execute(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfgPath, "ask", "--pack", "case-99", "--json", "What is the claim reference?")
	require.NoError(t, err)

	var answer domain.GroundedAnswer
	require.NoError(t, json.Unmarshal([]byte(out), &answer))
	assert.Equal(t, domain.AnswerNotFound, answer.Status)
}

func TestEvalEndToEnd(t *testing.T) {
	cfgPath := writeWorkspace(t, map[string]string{
		"case-01.txt": "Claim Reference: CLM-2024-001\nTotal Claimed: £12,500.00",
	})
	_, err := execute(t, "--config", cfgPath, "index")
	require.NoError(t, err)

	dir := t.TempDir()
	gtPath := filepath.Join(dir, "ground_truth.json")
	require.NoError(t, os.WriteFile(gtPath, []byte(`{
  "case-01": {"claim_reference": "CLM-2024-001", "total_claimed": "£99,999.00"}
}`), 0o644))
	outPath := filepath.Join(dir, "report.json")

	out, err := execute(t, "--config", cfgPath, "eval", "--ground-truth", gtPath, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1/2")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hit_rate": 0.5`)
}
