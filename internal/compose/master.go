// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package compose

import (
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// MasterIndex combines the three views under part headings and adds a
// cross-reference from each topic to the notebook pages that mention it.
// The views are passed in so that all parts reflect one snapshot.
func MasterIndex(views []types.EntityView, topics []types.Topic, listings []types.NotebookListing, opts Options) types.IndexDocument {
	doc := types.IndexDocument{Title: MasterTitle, Format: types.FormatMaster}
	rel := newRelated()

	part := func(title string, n int) types.Section {
		return types.Section{
			Heading: title,
			Level:   2,
			Kind:    types.SectionPart,
			Name:    title,
			Body:    partSummary(n),
		}
	}

	doc.Sections = append(doc.Sections, part(EntityTitle, len(views)))
	doc.Sections = append(doc.Sections, entitySections(views, 3, rel)...)

	doc.Sections = append(doc.Sections, part(TopicTitle, len(topics)))
	doc.Sections = append(doc.Sections, topicSections(topics, 3, rel)...)

	doc.Sections = append(doc.Sections, part(NotebookTitle, len(listings)))
	doc.Sections = append(doc.Sections, notebookSections(listings, 3, opts.keyEntities(), rel)...)

	doc.Sections = append(doc.Sections, types.Section{
		Heading: CrossRefTitle,
		Level:   2,
		Kind:    types.SectionCrossRef,
		Name:    CrossRefTitle,
		Body:    crossReference(topics, listings, rel),
	})

	doc.Related = rel.names
	return doc
}

func partSummary(n int) string {
	if n == 1 {
		return "1 entry.\n"
	}
	return fmt.Sprintf("%d entries.\n", n)
}

// crossReference joins topics to notebook pages on entity id. Topics are
// listed in rank order; pages in notebook order.
func crossReference(topics []types.Topic, listings []types.NotebookListing, rel *related) string {
	if len(topics) == 0 {
		return "No topics.\n"
	}

	pagesByEntity := make(map[string][]string)
	for _, nb := range listings {
		for _, p := range nb.Pages {
			for _, e := range p.Entities {
				pagesByEntity[e.ID] = append(pagesByEntity[e.ID],
					pageRef(nb.Notebook.Name, p.Page.Number, p.Page.Title))
			}
		}
	}

	var b strings.Builder
	for _, t := range topics {
		rel.add(t.Name)
		pages := pagesByEntity[t.ID]
		if len(pages) == 0 {
			fmt.Fprintf(&b, "- %s: no notebook pages\n", t.Name)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, strings.Join(pages, "; "))
	}
	return b.String()
}
