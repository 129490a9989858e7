// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// GraphStore is the read side of the entity/relationship store. Adapters
// wrap failures worth retrying with types.ErrTransient.
//
// Relationships are adjacency records; the engine resolves every endpoint
// through EntitiesByID rather than following pointers.
type GraphStore interface {
	// Entities lists entities with at least filter.MinReferences
	// references. Stores may ignore filter.Types; the engine filters again.
	Entities(ctx context.Context, filter types.EntityFilter) ([]types.Entity, error)

	// EntitiesByID returns the entities with the given ids. Unknown ids
	// are omitted.
	EntitiesByID(ctx context.Context, ids []string) ([]types.Entity, error)

	// Relationships returns every relationship whose source or target is
	// one of entityIDs.
	Relationships(ctx context.Context, entityIDs []string) ([]types.Relationship, error)

	// Sources returns the pages mentioning any of entityIDs.
	Sources(ctx context.Context, entityIDs []string) ([]types.SourceReference, error)

	// ConnectionCounts returns, for every entity touching at least
	// minConnections relationships, the number of relationships touching it.
	ConnectionCounts(ctx context.Context, minConnections int) ([]types.ConnectionCount, error)

	// Notebooks lists all notebooks.
	Notebooks(ctx context.Context) ([]types.Notebook, error)

	// Pages lists the pages of a notebook.
	Pages(ctx context.Context, notebookID string) ([]types.Page, error)

	// NotebookMentions returns every entity mention on the notebook's pages.
	NotebookMentions(ctx context.Context, notebookID string) ([]types.SourceReference, error)
}
