package gql

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kethal/twitch-drops-go/internal/constants"
)

func TestLoadOperationOverrides(t *testing.T) {
	original := constants.GQLOperations["Inventory"]
	t.Cleanup(func() { constants.GQLOperations["Inventory"] = original })

	path := filepath.Join(t.TempDir(), "operations.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"Inventory": "deadbeef",
		"NotAnOperation": "cafebabe",
		"Campaigns": ""
	}`), 0o644))

	require.NoError(t, LoadOperationOverrides(path))

	assert.Equal(t, "deadbeef", constants.GQLOperations["Inventory"].SHA256Hash)
	assert.Equal(t, original.OperationName, constants.GQLOperations["Inventory"].OperationName)
	assert.NotContains(t, constants.GQLOperations, "NotAnOperation", "unknown keys are ignored")
	assert.NotEmpty(t, constants.GQLOperations["Campaigns"].SHA256Hash, "empty overrides are skipped")
}

func TestLoadOperationOverridesErrors(t *testing.T) {
	assert.Error(t, LoadOperationOverrides(filepath.Join(t.TempDir(), "missing.json")))

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, LoadOperationOverrides(path))
}

func TestOperationWithVariablesDoesNotMutateTable(t *testing.T) {
	op := constants.GQLOperations["CurrentDrop"].WithVariables(map[string]any{
		"channelID": "123",
	})
	assert.NotNil(t, op.Variables)
	assert.Nil(t, constants.GQLOperations["CurrentDrop"].Variables)
}
