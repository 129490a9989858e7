package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-index/pkg/types"
)

func TestConfigFrom_Defaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := configFrom(v)
	assert.Equal(t, "graph", cfg.Store.GraphDir)
	assert.Equal(t, "index/graph.db", cfg.Store.DBPath)
	assert.Equal(t, 3, cfg.Store.MaxRetries)
	assert.Equal(t, 200*time.Millisecond, cfg.Store.RetryBaseDelay)
	assert.Equal(t, 20, cfg.Index.TopN)
	assert.Equal(t, 1, cfg.Index.MinConnections)
	assert.Equal(t, 5, cfg.Index.KeyEntitiesPerPage)
	assert.Equal(t, types.ScopeParagraph, cfg.Index.LinkScope)
	assert.Equal(t, 64, cfg.Index.MaxSlugLength)
	assert.Empty(t, cfg.Index.Types)
	assert.Equal(t, types.AnchorsYAML, cfg.Export.AnchorFormat)
	assert.Equal(t, 30*time.Second, cfg.Export.RenderTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestConfigFrom_ConfigFile(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(`
index:
  top_n: 5
  types: [person, Technology, gizmo]
  link_scope: Section
export:
  anchor_format: JSON
  render_timeout: 5s
`)))

	cfg := configFrom(v)
	assert.Equal(t, 5, cfg.Index.TopN)
	assert.Equal(t, []types.EntityType{"person", "Technology", "gizmo"}, cfg.Index.Types, "labels pass through unchanged")
	assert.Equal(t, types.ScopeSection, cfg.Index.LinkScope)
	assert.Equal(t, types.AnchorsJSON, cfg.Export.AnchorFormat)
	assert.Equal(t, 5*time.Second, cfg.Export.RenderTimeout)
	assert.Equal(t, 1, cfg.Index.MinConnections, "unset keys keep defaults")
}

func TestConfigFrom_Env(t *testing.T) {
	t.Setenv("NOTEBOOK_INDEX_INDEX_TOP_N", "7")
	t.Setenv("NOTEBOOK_INDEX_STORE_DB_PATH", "/tmp/other.db")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("NOTEBOOK_INDEX")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	cfg := configFrom(v)
	assert.Equal(t, 7, cfg.Index.TopN)
	assert.Equal(t, "/tmp/other.db", cfg.Store.DBPath)
}

func TestNewBuildEnv_GraphFile(t *testing.T) {
	dir := t.TempDir()
	graphFile := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(graphFile, []byte(`
notebooks:
  - id: nb1
    name: Field Notes
    pages:
      - {id: p1, number: 1, title: Kickoff, mentions: [ml, nn]}
entities:
  - {id: ml, name: Machine Learning, type: Concept, observations: [Builds on Neural Networks]}
  - {id: nn, name: Neural Networks, type: Concept}
relationships:
  - {source_id: ml, target_id: nn, type: INCLUDES}
`), 0o644))

	v := viper.New()
	setDefaults(v)
	v.Set("export.output_dir", filepath.Join(dir, "out"))
	v.Set("metrics.textfile", filepath.Join(dir, "metrics.prom"))
	cfg := configFrom(v)

	env, err := newBuildEnv(cfg, graphFile, nil, nil)
	require.NoError(t, err)
	defer env.Close()
	require.NotNil(t, env.prom)

	results, err := env.builder.BuildAll(t.Context())
	require.NoError(t, err)

	var out bytes.Buffer
	for _, format := range types.IndexFormats {
		require.NoError(t, report(&out, env.files, format, results[format]))
	}
	assert.Contains(t, out.String(), "entity")
	assert.FileExists(t, filepath.Join(dir, "out", "entity-index.md"))
	assert.FileExists(t, filepath.Join(dir, "out", "entity-index.anchors.yaml"))
	assert.FileExists(t, filepath.Join(dir, "out", "master-index-fallback.md"))

	primary, err := os.ReadFile(filepath.Join(dir, "out", "entity-index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(primary), "[Neural Networks](#neural-networks)")

	require.NoError(t, env.prom.WriteTextfile(cfg.Metrics.Textfile))
	assert.FileExists(t, cfg.Metrics.Textfile)
}

func TestNewBuildEnv_FiltersByExactLabel(t *testing.T) {
	dir := t.TempDir()
	graphFile := filepath.Join(dir, "graph.yaml")
	require.NoError(t, os.WriteFile(graphFile, []byte(`
entities:
  - {id: s, name: Sprocket, type: gizmo}
  - {id: c, name: Cog, type: widget}
  - {id: a, name: Ada, type: Person}
`), 0o644))

	v := viper.New()
	setDefaults(v)
	v.Set("export.output_dir", filepath.Join(dir, "out"))
	v.Set("index.types", []string{"gizmo"})
	cfg := configFrom(v)

	env, err := newBuildEnv(cfg, graphFile, nil, nil)
	require.NoError(t, err)
	defer env.Close()

	res, err := env.builder.BuildEntityIndex(t.Context(), env.builder.EntityQuery())
	require.NoError(t, err)
	assert.Contains(t, res.Fallback.Markdown, "Sprocket")
	assert.NotContains(t, res.Fallback.Markdown, "Cog")
	assert.NotContains(t, res.Fallback.Markdown, "Ada")
}
