package model

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsLoadMissingFileUsesDefaults(t *testing.T) {
	st := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, st.Load())

	s := st.Get()
	assert.Equal(t, AlgorithmList, s.PriorityAlgorithm)
	assert.True(t, s.PriorityOnly)
	assert.NotNil(t, s.Exclude)

	// The first Save materializes the file.
	require.NoError(t, st.Save())
	_, err := os.Stat(st.path)
	assert.NoError(t, err)
}

func TestSettingsLegacyKeyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"priority": ["Rust"], "prioritize_by_ending_soonest": true}`), 0o644))

	st := NewSettingsStore(path)
	require.NoError(t, st.Load())
	assert.Equal(t, AlgorithmEndingSoonest, st.Get().PriorityAlgorithm)
	assert.Equal(t, []string{"Rust"}, st.Get().Priority)

	// The migrated file no longer carries the legacy key.
	require.NoError(t, st.Save())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "prioritize_by_ending_soonest")
	assert.Contains(t, raw, "priority_algorithm")

	// Re-loading the migrated file is a no-op.
	st2 := NewSettingsStore(path)
	require.NoError(t, st2.Load())
	assert.Equal(t, AlgorithmEndingSoonest, st2.Get().PriorityAlgorithm)
}

func TestSettingsLegacyKeyFalseIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"prioritize_by_ending_soonest": false}`), 0o644))

	st := NewSettingsStore(path)
	require.NoError(t, st.Load())
	assert.Equal(t, AlgorithmList, st.Get().PriorityAlgorithm)
}

func TestSettingsSaveElidesCleanWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	st := NewSettingsStore(path)
	require.NoError(t, st.Load())
	require.NoError(t, st.Save())

	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, st.Save())
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "clean store skips the write")

	st.Alter(func(s *Settings) { s.UnlinkedCampaigns = true })
	require.NoError(t, st.Save())

	st2 := NewSettingsStore(path)
	require.NoError(t, st2.Load())
	assert.True(t, st2.Get().UnlinkedCampaigns)
}

func TestSettingsApplyEnv(t *testing.T) {
	t.Setenv("prioritize_by_ending_soonest", "1")
	t.Setenv("UNLINKED_CAMPAIGNS", "1")

	st := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, st.Load())
	st.ApplyEnv()

	s := st.Get()
	assert.Equal(t, AlgorithmEndingSoonest, s.PriorityAlgorithm)
	assert.True(t, s.UnlinkedCampaigns)
}

func TestParsePriorityAlgorithmRoundTrip(t *testing.T) {
	for _, a := range []PriorityAlgorithm{
		AlgorithmList, AlgorithmAdaptive, AlgorithmBalanced, AlgorithmEndingSoonest,
	} {
		assert.Equal(t, a, ParsePriorityAlgorithm(a.String()))
	}
	assert.Equal(t, AlgorithmList, ParsePriorityAlgorithm("bogus"))
}
