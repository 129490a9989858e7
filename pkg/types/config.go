package types

import "time"

// StoreConfig holds settings for the graph store and the retry policy used
// when reading from it.
type StoreConfig struct {
	// GraphDir holds the YAML graph exports ingested into the store
	// (e.g. "graph/").
	GraphDir string `json:"graph_dir" yaml:"graph_dir"`

	// DBPath is the SQLite database file (e.g. "index/graph.db").
	DBPath string `json:"db_path" yaml:"db_path"`

	// MaxRetries is the number of retries on transient store errors (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryBaseDelay is the first backoff delay; it doubles per attempt (default 200ms).
	RetryBaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
}

// LinkScope controls how often a name is linked.
type LinkScope string

const (
	// ScopeParagraph links a name once per paragraph, list item, or table cell.
	ScopeParagraph LinkScope = "paragraph"

	// ScopeSection links a name once per section body.
	ScopeSection LinkScope = "section"

	// ScopeDocument links a name once per exported document.
	ScopeDocument LinkScope = "document"
)

// IndexConfig holds settings for composing and linking index documents.
type IndexConfig struct {
	// TopN caps the Topic Index (default 20, 0 or less means unlimited).
	TopN int `json:"top_n" yaml:"top_n"`

	// MinConnections excludes topics with fewer relationships (default 1).
	MinConnections int `json:"min_connections" yaml:"min_connections"`

	// MinReferences excludes entities with fewer references (default 0).
	MinReferences int `json:"min_references" yaml:"min_references"`

	// Types restricts the Entity Index to these tags. Empty means all.
	Types []EntityType `json:"types,omitempty" yaml:"types,omitempty"`

	// KeyEntitiesPerPage caps the key entities listed per notebook page (default 5).
	KeyEntitiesPerPage int `json:"key_entities_per_page" yaml:"key_entities_per_page"`

	// LinkScope selects the first-mention-only scope (default paragraph).
	LinkScope LinkScope `json:"link_scope" yaml:"link_scope"`

	// MaxSlugLength caps anchor slugs (default 64).
	MaxSlugLength int `json:"max_slug_length" yaml:"max_slug_length"`
}

// AnchorFormat selects the encoding of the anchor map written beside the
// exported markdown.
type AnchorFormat string

const (
	AnchorsYAML AnchorFormat = "yaml"
	AnchorsJSON AnchorFormat = "json"
)

// ExportConfig holds settings for the exporter and its renderer.
type ExportConfig struct {
	// OutputDir receives the exported markdown and anchor maps (e.g. "output/").
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// AnchorFormat is yaml or json (default yaml).
	AnchorFormat AnchorFormat `json:"anchor_format" yaml:"anchor_format"`

	// RenderURL, when set, posts the hyperlinked form to a render service
	// instead of writing it locally.
	RenderURL string `json:"render_url,omitempty" yaml:"render_url,omitempty"`

	// RenderTimeout is the HTTP timeout for the render service (default 30s).
	RenderTimeout time.Duration `json:"render_timeout" yaml:"render_timeout"`

	// UserAgent is sent to the render service (e.g. "notebook-index/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// LoggingConfig holds settings for the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error (default info).
	Level string `json:"level" yaml:"level"`

	// Format is text or json (default text).
	Format string `json:"format" yaml:"format"`
}

// MetricsConfig holds settings for build metrics.
type MetricsConfig struct {
	// Textfile, when set, receives Prometheus metrics in text exposition
	// format after the command finishes.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// Config groups all settings for the CLI.
type Config struct {
	Store   StoreConfig   `json:"store" yaml:"store"`
	Index   IndexConfig   `json:"index" yaml:"index"`
	Export  ExportConfig  `json:"export" yaml:"export"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}
