package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offlineEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("DATA_CACHE_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	offlineEnv(t)

	out, err := run(t, "classify", "Which", "warehouse", "has", "the", "most", "inventory?")
	require.NoError(t, err)

	var analysis struct {
		PrimaryDomain string         `json:"primary_domain"`
		IsClearMatch  bool           `json:"is_clear_match"`
		DomainScores  map[string]int `json:"domain_scores"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &analysis))
	assert.Equal(t, "logistics", analysis.PrimaryDomain)
	assert.True(t, analysis.IsClearMatch)
	assert.Len(t, analysis.DomainScores, 4)
}

func TestClassifyHonorsExtraKeywords(t *testing.T) {
	offlineEnv(t)
	t.Setenv("KEYWORDS_SALES", "pipeline velocity")

	out, err := run(t, "classify", "pipeline velocity")
	require.NoError(t, err)
	assert.Contains(t, out, `"primary_domain": "sales"`)
}

func TestRefreshCommandWritesCache(t *testing.T) {
	dir := offlineEnv(t)

	out, err := run(t, "refresh", "sales")
	require.NoError(t, err)
	assert.Contains(t, out, "sales data refreshed at ")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err = run(t, "refresh")
	require.NoError(t, err)
	assert.Contains(t, out, "Data refreshed successfully")

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Len(t, matches, 4)
}

func TestRefreshCommandRejectsUnknownDomain(t *testing.T) {
	offlineEnv(t)
	_, err := run(t, "refresh", "finance")
	assert.Error(t, err)
}

func TestAskCommandOffline(t *testing.T) {
	offlineEnv(t)

	out, err := run(t, "ask", "What", "is", "our", "campaign", "ROI?")
	require.NoError(t, err)
	assert.Contains(t, out, "[marketing] ")
	assert.Contains(t, out, "conversation: ")
}

func TestStatusCommand(t *testing.T) {
	offlineEnv(t)

	_, err := run(t, "refresh", "collection")
	require.NoError(t, err)

	out, err := run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Triage Agent")
	assert.Contains(t, out, "Collection Agent")
	assert.Contains(t, out, "Decision Making Assistant")
	assert.Regexp(t, `marketing\s+unknown`, out)
}

func TestInvalidConfigFails(t *testing.T) {
	offlineEnv(t)
	t.Setenv("AGENT_TEMPERATURE", "5")
	_, err := run(t, "classify", "sales")
	assert.Error(t, err)
}
