package twitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepMergeDisjointKeys(t *testing.T) {
	merged, err := DeepMerge(
		map[string]any{"a": 1},
		map[string]any{"b": 2},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged)
}

func TestDeepMergePrimaryWins(t *testing.T) {
	merged, err := DeepMerge(
		map[string]any{"name": "primary", "shared": "keep"},
		map[string]any{"name": "secondary", "extra": true},
	)
	require.NoError(t, err)
	assert.Equal(t, "primary", merged["name"])
	assert.Equal(t, "keep", merged["shared"])
	assert.Equal(t, true, merged["extra"])
}

func TestDeepMergeRecursesIntoMaps(t *testing.T) {
	primary := map[string]any{
		"game": map[string]any{"id": "1"},
	}
	secondary := map[string]any{
		"game": map[string]any{"id": "stale", "name": "Rust"},
	}

	merged, err := DeepMerge(primary, secondary)
	require.NoError(t, err)
	game, ok := merged["game"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", game["id"], "primary leaf wins")
	assert.Equal(t, "Rust", game["name"], "secondary-only leaf survives")
}

func TestDeepMergeTypeMismatch(t *testing.T) {
	_, err := DeepMerge(
		map[string]any{"game": map[string]any{"id": "1"}},
		map[string]any{"game": "Rust"},
	)
	assert.Error(t, err)
}

func TestDeepMergeNilIsNotAMismatch(t *testing.T) {
	merged, err := DeepMerge(
		map[string]any{"game": map[string]any{"id": "1"}},
		map[string]any{"game": nil},
	)
	require.NoError(t, err)
	game, ok := merged["game"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1", game["id"])
}

func TestDeepMergeWithSelfIsIdentity(t *testing.T) {
	tree := map[string]any{
		"id":   "c1",
		"game": map[string]any{"id": "1", "name": "Rust"},
	}
	merged, err := DeepMerge(tree, tree)
	require.NoError(t, err)
	assert.Equal(t, tree, merged)
}
