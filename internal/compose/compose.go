// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compose turns query views into index documents. Composition is a
// pure function of its input: it never reads the store, and the same views
// always produce the same document.
package compose

import (
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// Document titles.
const (
	EntityTitle   = "Entity Index"
	TopicTitle    = "Topic Index"
	NotebookTitle = "Notebook Index"
	MasterTitle   = "Master Index"
	CrossRefTitle = "Cross-Reference"
)

// DefaultKeyEntitiesPerPage caps the key entities listed per notebook page.
const DefaultKeyEntitiesPerPage = 5

// Options tunes composition.
type Options struct {
	// KeyEntitiesPerPage caps the entities listed per notebook page. Zero
	// uses DefaultKeyEntitiesPerPage; a negative value lists all.
	KeyEntitiesPerPage int
}

func (o Options) keyEntities() int {
	if o.KeyEntitiesPerPage == 0 {
		return DefaultKeyEntitiesPerPage
	}
	return o.KeyEntitiesPerPage
}

// EntityIndex groups views by type label, in the order ListEntities
// returns them.
func EntityIndex(views []types.EntityView) types.IndexDocument {
	doc := types.IndexDocument{Title: EntityTitle, Format: types.FormatEntity}
	rel := newRelated()
	doc.Sections = entitySections(views, 2, rel)
	doc.Related = rel.names
	return doc
}

// TopicIndex lists topics in rank order.
func TopicIndex(topics []types.Topic) types.IndexDocument {
	doc := types.IndexDocument{Title: TopicTitle, Format: types.FormatTopic}
	rel := newRelated()
	doc.Sections = topicSections(topics, 2, rel)
	doc.Related = rel.names
	return doc
}

// NotebookIndex lists each notebook's pages as a table.
func NotebookIndex(listings []types.NotebookListing, opts Options) types.IndexDocument {
	doc := types.IndexDocument{Title: NotebookTitle, Format: types.FormatNotebook}
	rel := newRelated()
	doc.Sections = notebookSections(listings, 2, opts.keyEntities(), rel)
	doc.Related = rel.names
	return doc
}

func entitySections(views []types.EntityView, level int, rel *related) []types.Section {
	var out []types.Section
	group := ""
	for i, v := range views {
		label := v.TypeLabel()
		if i == 0 || !strings.EqualFold(label, group) {
			group = label
			out = append(out, types.Section{
				Heading: label,
				Level:   level,
				Kind:    types.SectionGroup,
				Name:    label,
				Body:    groupSummary(views[i:], label),
			})
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Type: %s. References: %d.\n", label, v.ReferenceCount)
		writeObservations(&b, v.Observations)
		writeRelated(&b, v.Related, rel)
		writeSources(&b, v.Sources)
		out = append(out, types.Section{
			Heading: v.Name,
			Level:   level + 1,
			Kind:    types.SectionEntity,
			Name:    v.Name,
			Body:    b.String(),
		})
	}
	return out
}

// groupSummary counts the leading views that share label.
func groupSummary(views []types.EntityView, label string) string {
	n := 0
	for _, v := range views {
		if !strings.EqualFold(v.TypeLabel(), label) {
			break
		}
		n++
	}
	if n == 1 {
		return "1 entity.\n"
	}
	return fmt.Sprintf("%d entities.\n", n)
}

func topicSections(topics []types.Topic, level int, rel *related) []types.Section {
	out := make([]types.Section, 0, len(topics))
	for i, t := range topics {
		var b strings.Builder
		fmt.Fprintf(&b, "Rank %d. Connections: %d. Type: %s.\n", i+1, t.ConnectionCount, t.TypeLabel())
		if desc := description(t.Observations); desc != "" {
			b.WriteString("\n")
			b.WriteString(desc)
			b.WriteString("\n")
		}
		writeRelated(&b, t.Related, rel)
		writeSources(&b, t.Sources)
		out = append(out, types.Section{
			Heading: t.Name,
			Level:   level,
			Kind:    types.SectionTopic,
			Name:    t.Name,
			Body:    b.String(),
		})
	}
	return out
}

func notebookSections(listings []types.NotebookListing, level, keyEntities int, rel *related) []types.Section {
	out := make([]types.Section, 0, len(listings))
	for _, nb := range listings {
		var b strings.Builder
		if len(nb.Pages) == 0 {
			b.WriteString("No pages.\n")
		} else {
			b.WriteString("| Page | Title | Key entities |\n")
			b.WriteString("| --- | --- | --- |\n")
			for _, p := range nb.Pages {
				ents := p.Entities
				if keyEntities > 0 && len(ents) > keyEntities {
					ents = ents[:keyEntities]
				}
				names := make([]string, len(ents))
				for i, e := range ents {
					names[i] = cell(e.Name)
					rel.add(e.Name)
				}
				fmt.Fprintf(&b, "| %d | %s | %s |\n", p.Page.Number, cell(p.Page.Title), strings.Join(names, ", "))
			}
		}
		out = append(out, types.Section{
			Heading: nb.Notebook.Name,
			Level:   level,
			Kind:    types.SectionNotebook,
			Name:    nb.Notebook.Name,
			Body:    b.String(),
		})
	}
	return out
}

func writeObservations(b *strings.Builder, obs []string) {
	if len(obs) == 0 {
		return
	}
	b.WriteString("\nObservations:\n\n")
	for _, o := range obs {
		fmt.Fprintf(b, "- %s\n", oneLine(o))
	}
}

func writeRelated(b *strings.Builder, groups []types.RelatedGroup, rel *related) {
	if len(groups) == 0 {
		return
	}
	b.WriteString("\nRelated:\n\n")
	for _, g := range groups {
		names := make([]string, len(g.Entities))
		for i, e := range g.Entities {
			names[i] = e.Name
			rel.add(e.Name)
		}
		label := g.Type
		if g.Direction == types.DirectionIncoming {
			label += " (incoming)"
		}
		fmt.Fprintf(b, "- %s: %s\n", label, strings.Join(names, ", "))
	}
}

func writeSources(b *strings.Builder, srcs []types.SourceReference) {
	if len(srcs) == 0 {
		return
	}
	b.WriteString("\nSources:\n\n")
	for _, s := range srcs {
		b.WriteString("- ")
		b.WriteString(pageRef(s.NotebookName, s.PageNumber, s.PageTitle))
		b.WriteString("\n")
	}
}

func pageRef(notebook string, number int, title string) string {
	ref := fmt.Sprintf("%s, page %d", oneLine(notebook), number)
	if title = oneLine(title); title != "" {
		ref += ": " + title
	}
	return ref
}

// description joins observations into one paragraph.
func description(obs []string) string {
	parts := make([]string, 0, len(obs))
	for _, o := range obs {
		if o = oneLine(o); o != "" {
			parts = append(parts, o)
		}
	}
	return strings.Join(parts, " ")
}

// oneLine collapses whitespace runs, including newlines, to single spaces.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cell makes s safe inside a table cell.
func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", `\|`)
}

// related collects names referenced in bodies, first seen first.
type related struct {
	seen  map[string]bool
	names []string
}

func newRelated() *related {
	return &related{seen: make(map[string]bool)}
}

func (r *related) add(name string) {
	if name == "" || r.seen[name] {
		return
	}
	r.seen[name] = true
	r.names = append(r.names, name)
}
