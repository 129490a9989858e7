// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// resolver turns entity ids into entities for one engine call. Entities
// shared between many relationships are fetched once.
type resolver struct {
	e     *Engine
	cache *lru.Cache[string, types.Entity]
}

func newResolver(e *Engine) *resolver {
	cache, err := lru.New[string, types.Entity](e.cacheSize)
	if err != nil {
		// Only a non-positive size fails, and the engine never uses one.
		panic(err)
	}
	return &resolver{e: e, cache: cache}
}

func (r *resolver) remember(ent types.Entity) {
	r.cache.Add(ent.ID, ent)
}

// resolve returns the entities for ids. Ids the store does not know are
// absent from the result.
func (r *resolver) resolve(ctx context.Context, ids []string) (map[string]types.Entity, error) {
	out := make(map[string]types.Entity, len(ids))
	var missing []string
	queued := make(map[string]bool)
	for _, id := range ids {
		if _, done := out[id]; done || queued[id] {
			continue
		}
		if ent, ok := r.cache.Get(id); ok {
			out[id] = ent
			continue
		}
		queued[id] = true
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := call(ctx, r.e, "entities_by_id", func(ctx context.Context) ([]types.Entity, error) {
		return r.e.store.EntitiesByID(ctx, missing)
	})
	if err != nil {
		return nil, err
	}
	for _, ent := range fetched {
		r.cache.Add(ent.ID, ent)
		out[ent.ID] = ent
	}
	return out, nil
}
