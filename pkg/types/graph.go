// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "strings"

// EntityType tags an entity with its kind. The set is open: any label the
// extractor emits is accepted, and labels outside the known set are grouped
// under EntityOther.
type EntityType string

const (
	EntityPerson       EntityType = "Person"
	EntityConcept      EntityType = "Concept"
	EntityTechnology   EntityType = "Technology"
	EntityTask         EntityType = "Task"
	EntityNote         EntityType = "Note"
	EntityPlace        EntityType = "Place"
	EntityOrganization EntityType = "Organization"
	EntityEvent        EntityType = "Event"
	EntityOther        EntityType = "other"
)

// KnownEntityTypes lists the known tags.
var KnownEntityTypes = []EntityType{
	EntityPerson,
	EntityConcept,
	EntityTechnology,
	EntityTask,
	EntityNote,
	EntityPlace,
	EntityOrganization,
	EntityEvent,
}

// ParseEntityType maps a raw label onto the known set, ignoring case.
// Labels outside the set map to EntityOther.
func ParseEntityType(label string) EntityType {
	label = strings.TrimSpace(label)
	for _, t := range KnownEntityTypes {
		if strings.EqualFold(label, string(t)) {
			return t
		}
	}
	return EntityOther
}

// Entity is a named item extracted from notebook pages. Entities are owned
// by the graph store and read-only here.
type Entity struct {
	// ID is the stable identifier assigned by the store.
	ID string `json:"id" yaml:"id"`

	// Name is the display string. It is not unique across types.
	Name string `json:"name" yaml:"name"`

	// Type is the raw type label as stored.
	Type EntityType `json:"type" yaml:"type"`

	// Observations are free-text facts in extraction order.
	Observations []string `json:"observations,omitempty" yaml:"observations,omitempty"`

	// ReferenceCount is the number of source locations mentioning the entity.
	ReferenceCount int `json:"reference_count" yaml:"reference_count"`
}

// Kind returns the normalized tag used for grouping.
func (e Entity) Kind() EntityType {
	return ParseEntityType(string(e.Type))
}

// TypeLabel returns the label to display for the entity's type. Known
// types use their canonical spelling; other labels are shown as stored.
func (e Entity) TypeLabel() string {
	if k := e.Kind(); k != EntityOther {
		return string(k)
	}
	if label := strings.TrimSpace(string(e.Type)); label != "" {
		return label
	}
	return string(EntityOther)
}

// Relationship is a directed, typed edge between two entity ids.
type Relationship struct {
	SourceID   string         `json:"source_id" yaml:"source_id"`
	TargetID   string         `json:"target_id" yaml:"target_id"`
	Type       string         `json:"type" yaml:"type"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Notebook is the top of the source hierarchy.
type Notebook struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Page is one page of a notebook.
type Page struct {
	ID         string `json:"id" yaml:"id"`
	NotebookID string `json:"notebook_id" yaml:"notebook_id"`
	Number     int    `json:"number" yaml:"number"`
	Title      string `json:"title" yaml:"title"`
}

// SourceReference records that an entity was mentioned on a page.
type SourceReference struct {
	EntityID     string `json:"entity_id" yaml:"entity_id"`
	NotebookID   string `json:"notebook_id" yaml:"notebook_id"`
	NotebookName string `json:"notebook_name" yaml:"notebook_name"`
	PageID       string `json:"page_id" yaml:"page_id"`
	PageNumber   int    `json:"page_number" yaml:"page_number"`
	PageTitle    string `json:"page_title" yaml:"page_title"`
}

// EntityFilter narrows an entity listing.
type EntityFilter struct {
	// Types restricts the listing to these tags. Empty means all types.
	Types []EntityType

	// MinReferences excludes entities with fewer references.
	MinReferences int
}

// ConnectionCount is the number of relationships touching an entity.
type ConnectionCount struct {
	EntityID string
	Count    int
}
