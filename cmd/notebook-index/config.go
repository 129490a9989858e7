package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// envKeyReplacer maps nested keys such as index.top_n onto
// NOTEBOOK_INDEX_INDEX_TOP_N.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// setDefaults registers the built-in defaults on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("store.graph_dir", "graph")
	v.SetDefault("store.db_path", "index/graph.db")
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.retry_base_delay", 200*time.Millisecond)

	v.SetDefault("index.top_n", 20)
	v.SetDefault("index.min_connections", 1)
	v.SetDefault("index.min_references", 0)
	v.SetDefault("index.types", []string{})
	v.SetDefault("index.key_entities_per_page", 5)
	v.SetDefault("index.link_scope", string(types.ScopeParagraph))
	v.SetDefault("index.max_slug_length", 64)

	v.SetDefault("export.output_dir", "output")
	v.SetDefault("export.anchor_format", string(types.AnchorsYAML))
	v.SetDefault("export.render_url", "")
	v.SetDefault("export.render_timeout", 30*time.Second)
	v.SetDefault("export.user_agent", "notebook-index/"+version)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.textfile", "")
}

// loadConfig reads the merged configuration from the global viper instance.
func loadConfig() types.Config {
	return configFrom(viper.GetViper())
}

func configFrom(v *viper.Viper) types.Config {
	var entityTypes []types.EntityType
	for _, label := range v.GetStringSlice("index.types") {
		if label = strings.TrimSpace(label); label != "" {
			entityTypes = append(entityTypes, types.EntityType(label))
		}
	}

	return types.Config{
		Store: types.StoreConfig{
			GraphDir:       v.GetString("store.graph_dir"),
			DBPath:         v.GetString("store.db_path"),
			MaxRetries:     v.GetInt("store.max_retries"),
			RetryBaseDelay: v.GetDuration("store.retry_base_delay"),
		},
		Index: types.IndexConfig{
			TopN:               v.GetInt("index.top_n"),
			MinConnections:     v.GetInt("index.min_connections"),
			MinReferences:      v.GetInt("index.min_references"),
			Types:              entityTypes,
			KeyEntitiesPerPage: v.GetInt("index.key_entities_per_page"),
			LinkScope:          types.LinkScope(strings.ToLower(v.GetString("index.link_scope"))),
			MaxSlugLength:      v.GetInt("index.max_slug_length"),
		},
		Export: types.ExportConfig{
			OutputDir:     v.GetString("export.output_dir"),
			AnchorFormat:  types.AnchorFormat(strings.ToLower(v.GetString("export.anchor_format"))),
			RenderURL:     v.GetString("export.render_url"),
			RenderTimeout: v.GetDuration("export.render_timeout"),
			UserAgent:     v.GetString("export.user_agent"),
		},
		Logging: types.LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Metrics: types.MetricsConfig{
			Textfile: v.GetString("metrics.textfile"),
		},
	}
}
