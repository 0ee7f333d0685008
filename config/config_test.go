package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ParsesTypesAndProperties(t *testing.T) {
	path := writeTempConfig(t, `{
		"delta_batch_size": 50,
		"types": [
			{
				"name": "session",
				"rdf_types": ["http://ex/Session"],
				"properties": [
					{"name": "title", "path": ["http://ex/title"], "kind": "simple"},
					{"name": "children", "path": ["^http://ex/hasChild"], "kind": "nested", "rdf_type": "http://ex/Child"}
				]
			}
		]
	}`)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, c.DeltaBatchSize())

	reg := c.BuildTypeRegistry()
	typeDef, ok := reg.ByName("session")
	require.True(t, ok)
	require.Len(t, typeDef.Properties, 2)
	assert.Equal(t, "title", typeDef.Properties[0].Name)
	assert.True(t, typeDef.Properties[1].Path[0].Inverse)
}

func TestLoad_EnvOverrideWins(t *testing.T) {
	path := writeTempConfig(t, `{"delta_batch_size": 50}`)
	t.Setenv("DELTA_BATCH_SIZE", "7")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, c.DeltaBatchSize())
}

func TestLoad_DefaultsApplyWhenAbsent(t *testing.T) {
	path := writeTempConfig(t, `{}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, c.DeltaBatchSize())
	assert.Equal(t, 2, c.NumberOfThreads())
	assert.Equal(t, 4, c.PoolSize)
}
