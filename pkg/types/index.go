// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Direction tells whether a related entity is the target of the viewed
// entity's relationship (outgoing) or its source (incoming).
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// RelatedGroup lists the entities related to a viewed entity through one
// relationship type in one direction, ordered by name.
type RelatedGroup struct {
	Type      string    `json:"type" yaml:"type"`
	Direction Direction `json:"direction" yaml:"direction"`
	Entities  []Entity  `json:"entities" yaml:"entities"`
}

// EntityView is an entity together with the data an index section shows
// for it: where it was mentioned and what it is related to.
type EntityView struct {
	Entity  `yaml:",inline"`
	Sources []SourceReference `json:"sources,omitempty" yaml:"sources,omitempty"`
	Related []RelatedGroup    `json:"related,omitempty" yaml:"related,omitempty"`
}

// Topic is an entity ranked by connectivity.
type Topic struct {
	EntityView      `yaml:",inline"`
	ConnectionCount int `json:"connection_count" yaml:"connection_count"`
}

// PageListing is a page with the entities mentioned on it.
type PageListing struct {
	Page     Page     `json:"page" yaml:"page"`
	Entities []Entity `json:"entities" yaml:"entities"`
}

// NotebookListing is a notebook with its pages in page order.
type NotebookListing struct {
	Notebook Notebook      `json:"notebook" yaml:"notebook"`
	Pages    []PageListing `json:"pages" yaml:"pages"`
}

// IndexFormat names one of the four index views.
type IndexFormat string

const (
	FormatEntity   IndexFormat = "entity"
	FormatTopic    IndexFormat = "topic"
	FormatNotebook IndexFormat = "notebook"
	FormatMaster   IndexFormat = "master"
)

// IndexFormats lists every format in build order.
var IndexFormats = []IndexFormat{FormatEntity, FormatTopic, FormatNotebook, FormatMaster}

// SectionKind distinguishes sections named after an entity from the
// structural sections that organize them.
type SectionKind string

const (
	SectionEntity   SectionKind = "entity"
	SectionTopic    SectionKind = "topic"
	SectionGroup    SectionKind = "group"
	SectionNotebook SectionKind = "notebook"
	SectionPart     SectionKind = "part"
	SectionCrossRef SectionKind = "crossref"
)

// Named reports whether sections of this kind carry an entity or topic
// name that body text may link to.
func (k SectionKind) Named() bool {
	return k == SectionEntity || k == SectionTopic
}

// Section is one heading and its body.
type Section struct {
	// Heading is the heading text without the leading hashes.
	Heading string `json:"heading" yaml:"heading"`

	// Level is the heading depth, 1 for "#".
	Level int `json:"level" yaml:"level"`

	// Body is composed markdown without links added by the exporter.
	Body string `json:"body" yaml:"body"`

	// Kind tells how the exporter registers the section.
	Kind SectionKind `json:"kind" yaml:"kind"`

	// Name is the entity or topic name for named kinds; otherwise the
	// heading text.
	Name string `json:"name" yaml:"name"`

	// AnchorID is the section's anchor slug, assigned at export time.
	AnchorID string `json:"anchor_id,omitempty" yaml:"anchor_id,omitempty"`
}

// IndexDocument is a composed index. It is built once per request and not
// modified after composition.
type IndexDocument struct {
	Title    string      `json:"title" yaml:"title"`
	Format   IndexFormat `json:"format" yaml:"format"`
	Sections []Section   `json:"sections" yaml:"sections"`

	// Related lists names referenced in bodies that may have no section of
	// their own, in first-seen order.
	Related []string `json:"related,omitempty" yaml:"related,omitempty"`
}

// AnchorEntry maps a registered name to its slug. TargetSectionID is empty
// when the name has no section in the current document.
type AnchorEntry struct {
	Name            string `json:"name" yaml:"name"`
	Slug            string `json:"slug" yaml:"slug"`
	TargetSectionID string `json:"target_section_id,omitempty" yaml:"target_section_id,omitempty"`
}

// RenderedDocument is one export form: markdown plus the anchor map the
// renderer needs to assign section ids.
type RenderedDocument struct {
	Format   IndexFormat   `json:"format" yaml:"format"`
	Markdown string        `json:"markdown" yaml:"markdown"`
	Anchors  []AnchorEntry `json:"anchors,omitempty" yaml:"anchors,omitempty"`
}

// ExportStatus reports whether the hyperlinked form was delivered.
type ExportStatus string

const (
	StatusOK       ExportStatus = "ok"
	StatusDegraded ExportStatus = "degraded"
)

// Artifact describes what a renderer produced.
type Artifact struct {
	// Location is a path or URL for the produced artifact.
	Location string `json:"location" yaml:"location"`

	// Bytes is the artifact size when known.
	Bytes int64 `json:"bytes,omitempty" yaml:"bytes,omitempty"`
}

// ExportStats counts injector outcomes across a document.
type ExportStats struct {
	Linked  int `json:"linked" yaml:"linked"`
	Skipped int `json:"skipped" yaml:"skipped"`
}

// ExportResult is the outcome of exporting one IndexDocument. Primary is
// nil when Status is StatusDegraded.
type ExportResult struct {
	Primary  *RenderedDocument `json:"primary,omitempty" yaml:"primary,omitempty"`
	Fallback RenderedDocument  `json:"fallback" yaml:"fallback"`
	Status   ExportStatus      `json:"status" yaml:"status"`
	Artifact *Artifact         `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Stats    ExportStats       `json:"stats" yaml:"stats"`
}
