// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graphstore provides GraphStore adapters: an in-memory store built
// from a YAML graph export and a SQLite store that ingests those exports
// incrementally.
package graphstore

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// GraphFile is the YAML export produced by the extraction collaborator.
type GraphFile struct {
	Notebooks     []NotebookRecord     `json:"notebooks" yaml:"notebooks"`
	Entities      []types.Entity       `json:"entities" yaml:"entities"`
	Relationships []types.Relationship `json:"relationships" yaml:"relationships"`
}

// NotebookRecord is a notebook with its pages as exported.
type NotebookRecord struct {
	ID    string       `json:"id" yaml:"id"`
	Name  string       `json:"name" yaml:"name"`
	Pages []PageRecord `json:"pages" yaml:"pages"`
}

// PageRecord is a page and the ids of the entities mentioned on it.
type PageRecord struct {
	ID       string   `json:"id" yaml:"id"`
	Number   int      `json:"number" yaml:"number"`
	Title    string   `json:"title" yaml:"title"`
	Mentions []string `json:"mentions,omitempty" yaml:"mentions,omitempty"`
}

// LoadFile reads and validates a graph export.
func LoadFile(path string) (*GraphFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes and validates a graph export.
func ParseFile(data []byte) (*GraphFile, error) {
	var g GraphFile
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parsing graph file: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks that every record has an id and that page ids and
// entity ids are unique within the file.
func (g *GraphFile) Validate() error {
	entities := make(map[string]bool, len(g.Entities))
	for i, e := range g.Entities {
		if e.ID == "" {
			return fmt.Errorf("entity %d: missing id", i)
		}
		if e.Name == "" {
			return fmt.Errorf("entity %s: missing name", e.ID)
		}
		if entities[e.ID] {
			return fmt.Errorf("entity %s: duplicate id", e.ID)
		}
		entities[e.ID] = true
	}

	pages := make(map[string]bool)
	for i, nb := range g.Notebooks {
		if nb.ID == "" {
			return fmt.Errorf("notebook %d: missing id", i)
		}
		for j, p := range nb.Pages {
			if p.ID == "" {
				return fmt.Errorf("notebook %s page %d: missing id", nb.ID, j)
			}
			if pages[p.ID] {
				return fmt.Errorf("page %s: duplicate id", p.ID)
			}
			pages[p.ID] = true
		}
	}

	for i, r := range g.Relationships {
		if r.SourceID == "" || r.TargetID == "" || r.Type == "" {
			return fmt.Errorf("relationship %d: source_id, target_id, and type are required", i)
		}
	}
	return nil
}

// mentionCounts returns the number of pages mentioning each entity.
func (g *GraphFile) mentionCounts() map[string]int {
	counts := make(map[string]int)
	for _, nb := range g.Notebooks {
		for _, p := range nb.Pages {
			seen := make(map[string]bool, len(p.Mentions))
			for _, id := range p.Mentions {
				if !seen[id] {
					seen[id] = true
					counts[id]++
				}
			}
		}
	}
	return counts
}
