package synckit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c0deZ3R0/go-sync-merge/errors"
	"github.com/c0deZ3R0/go-sync-merge/logging"
	"github.com/c0deZ3R0/go-sync-merge/version"
)

const yamlConfig = `
node_id: device-a
strict: true
logging:
  level: debug
  format: json
entities:
  - type: doc
    strategy: first_writer_wins
  - type: orders
    strategy: LWW
`

func TestParseConfig_YAML(t *testing.T) {
	cfg, err := ParseConfig([]byte(yamlConfig), "yaml")
	require.NoError(t, err)

	assert.Equal(t, "device-a", cfg.NodeID)
	assert.True(t, cfg.Strict)
	require.NotNil(t, cfg.Logging)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []EntityConfig{
		{Type: "doc", Strategy: "first_writer_wins"},
		{Type: "orders", Strategy: "LWW"},
	}, cfg.Entities)
}

func TestParseConfig_JSON(t *testing.T) {
	data := `{"node_id":"n1","entities":[{"type":"doc","strategy":"FieldLevelMerge"}]}`
	cfg, err := ParseConfig([]byte(data), "json")
	require.NoError(t, err)
	assert.Equal(t, "n1", cfg.NodeID)
	assert.False(t, cfg.Strict)
	assert.Nil(t, cfg.Logging)
	require.Len(t, cfg.Entities, 1)
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
		kind   errors.Kind
	}{
		{"bad yaml", "node_id: [", "yaml", errors.KindFormat},
		{"bad json", "{", "json", errors.KindFormat},
		{"unknown format", "node_id: a", "toml", errors.KindConfiguration},
		{"missing node id", "entities: []", "yaml", errors.KindConfiguration},
		{"unknown strategy", "node_id: a\nentities:\n  - type: doc\n    strategy: newest\n", "yaml", errors.KindConfiguration},
		{"missing type", "node_id: a\nentities:\n  - strategy: lww\n", "yaml", errors.KindConfiguration},
		{"duplicate type", "node_id: a\nentities:\n  - {type: doc, strategy: lww}\n  - {type: doc, strategy: fww}\n", "yaml", errors.KindConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data), tt.format)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "resolver.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlConfig), 0o600))
	cfg, err := LoadConfig(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "device-a", cfg.NodeID)

	jsonPath := filepath.Join(dir, "resolver.JSON")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"node_id":"n2"}`), 0o600))
	cfg, err = LoadConfig(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "n2", cfg.NodeID)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindConfiguration))
}

func TestNewResolverFromConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(yamlConfig), "yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "debug", Format: "json", Output: &buf})
	r, err := NewResolverFromConfig(cfg, WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, "device-a", r.NodeID())
	assert.True(t, r.Strict())
	assert.Equal(t, []string{"doc", "orders"}, r.EntityTypes())
	s, ok := r.StrategyFor("doc")
	require.True(t, ok)
	assert.Equal(t, FirstWriterWins, s)

	lc, rc := version.NewVectorClock().Increment("A"), version.NewVectorClock().Increment("B")
	res, err := Resolve(r, doc{ID: "1", Title: "l"}, doc{ID: "1", Title: "r"}, lc, rc, base.Add(time.Second), base)
	require.NoError(t, err)
	assert.Equal(t, "r", res.Result.Title)
	assert.Equal(t, uint64(1), res.MergedClock.GetClock("device-a"))
	assert.Contains(t, buf.String(), "conflict resolved")
	assert.Contains(t, buf.String(), `"component":"config"`)
	assert.Contains(t, buf.String(), `"component":"resolver"`)
}
