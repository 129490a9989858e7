// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"context"
	"sort"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// MemStore is a read-only GraphStore over one loaded GraphFile. It is safe
// for concurrent use.
type MemStore struct {
	entities  map[string]types.Entity
	order     []string
	rels      []types.Relationship
	notebooks []types.Notebook
	pages     map[string][]types.Page
	mentions  []types.SourceReference
}

// NewMemStore indexes g. Reference counts below the number of pages
// mentioning an entity are raised to that number.
func NewMemStore(g *GraphFile) *MemStore {
	counts := g.mentionCounts()
	s := &MemStore{
		entities: make(map[string]types.Entity, len(g.Entities)),
		pages:    make(map[string][]types.Page),
	}
	for _, e := range g.Entities {
		if c := counts[e.ID]; c > e.ReferenceCount {
			e.ReferenceCount = c
		}
		s.entities[e.ID] = e
		s.order = append(s.order, e.ID)
	}
	s.rels = append(s.rels, g.Relationships...)

	for _, nb := range g.Notebooks {
		s.notebooks = append(s.notebooks, types.Notebook{ID: nb.ID, Name: nb.Name})
		for _, p := range nb.Pages {
			page := types.Page{ID: p.ID, NotebookID: nb.ID, Number: p.Number, Title: p.Title}
			s.pages[nb.ID] = append(s.pages[nb.ID], page)
			seen := make(map[string]bool, len(p.Mentions))
			for _, id := range p.Mentions {
				if seen[id] {
					continue
				}
				seen[id] = true
				s.mentions = append(s.mentions, types.SourceReference{
					EntityID:     id,
					NotebookID:   nb.ID,
					NotebookName: nb.Name,
					PageID:       p.ID,
					PageNumber:   p.Number,
					PageTitle:    p.Title,
				})
			}
		}
	}
	return s
}

func (s *MemStore) Entities(_ context.Context, filter types.EntityFilter) ([]types.Entity, error) {
	var out []types.Entity
	for _, id := range s.order {
		e := s.entities[id]
		if e.ReferenceCount >= filter.MinReferences {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) EntitiesByID(_ context.Context, ids []string) ([]types.Entity, error) {
	var out []types.Entity
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) Relationships(_ context.Context, entityIDs []string) ([]types.Relationship, error) {
	want := toSet(entityIDs)
	var out []types.Relationship
	for _, r := range s.rels {
		if want[r.SourceID] || want[r.TargetID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemStore) Sources(_ context.Context, entityIDs []string) ([]types.SourceReference, error) {
	want := toSet(entityIDs)
	var out []types.SourceReference
	for _, m := range s.mentions {
		if want[m.EntityID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemStore) ConnectionCounts(_ context.Context, minConnections int) ([]types.ConnectionCount, error) {
	counts := make(map[string]int)
	for _, r := range s.rels {
		counts[r.SourceID]++
		if r.TargetID != r.SourceID {
			counts[r.TargetID]++
		}
	}
	var out []types.ConnectionCount
	for id, n := range counts {
		if n >= minConnections {
			out = append(out, types.ConnectionCount{EntityID: id, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (s *MemStore) Notebooks(context.Context) ([]types.Notebook, error) {
	return append([]types.Notebook(nil), s.notebooks...), nil
}

func (s *MemStore) Pages(_ context.Context, notebookID string) ([]types.Page, error) {
	return append([]types.Page(nil), s.pages[notebookID]...), nil
}

func (s *MemStore) NotebookMentions(_ context.Context, notebookID string) ([]types.SourceReference, error) {
	var out []types.SourceReference
	for _, m := range s.mentions {
		if m.NotebookID == notebookID {
			out = append(out, m)
		}
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
