// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query provides the read-only aggregation views that index
// documents are composed from: entities by type, topics by connectivity,
// and notebooks by page.
//
// Every view is assembled from complete store reads. A read that still
// fails after bounded retries fails the whole view with an error matching
// types.ErrStoreUnavailable; no partial listing is ever returned.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/internal/retry"
	"github.com/pdiddy/notebook-index/pkg/types"
)

const defaultCacheSize = 4096

// EntityQuery selects entities for the Entity Index.
type EntityQuery struct {
	// Types restricts the listing to these tags. Empty means all types.
	// types.EntityOther selects every label outside the known set.
	Types []types.EntityType

	// MinReferences excludes entities with fewer references.
	MinReferences int
}

// TopicQuery selects topics for the Topic Index.
type TopicQuery struct {
	// TopN caps the number of topics. Zero or less means no cap.
	TopN int

	// MinConnections excludes entities touching fewer relationships.
	MinConnections int
}

// Engine answers index queries against a GraphStore. It holds no state
// between calls and is safe for concurrent use if the store is.
type Engine struct {
	store     GraphStore
	policy    retry.Policy
	logger    *slog.Logger
	recorder  metrics.Recorder
	cacheSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) {
		e.recorder = metrics.OrNoop(r)
	}
}

// WithCacheSize sets the capacity of the per-call entity cache.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// NewEngine returns an Engine reading from store. cfg supplies the retry
// policy for transient store failures.
func NewEngine(store GraphStore, cfg types.StoreConfig, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		logger:    slog.Default(),
		recorder:  metrics.NoopRecorder{},
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy = retry.Policy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
		Retryable:  func(err error) bool { return errors.Is(err, types.ErrTransient) },
	}
	return e
}

// call runs one store read under the engine's retry policy.
func call[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	p := e.policy
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		e.recorder.IncStoreRetry(op)
		e.logger.Warn("graph store read failed, retrying",
			"op", op, "attempt", attempt, "delay", delay, "error", err)
	}
	attempts, err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", op, ctxErr)
	}
	e.recorder.IncStoreUnavailable(op)
	e.logger.Error("graph store unavailable", "op", op, "attempts", attempts, "error", err)
	var zero T
	return zero, &StoreUnavailableError{Op: op, Attempts: attempts, Err: err}
}

// ListEntities returns the entities matching q with their sources and
// related entities, sorted by type label and then by name, both
// case-insensitively.
func (e *Engine) ListEntities(ctx context.Context, q EntityQuery) ([]types.EntityView, error) {
	filter := types.EntityFilter{Types: q.Types, MinReferences: q.MinReferences}
	ents, err := call(ctx, e, "entities", func(ctx context.Context) ([]types.Entity, error) {
		return e.store.Entities(ctx, filter)
	})
	if err != nil {
		return nil, err
	}

	kept := ents[:0:0]
	for _, ent := range ents {
		if ent.ReferenceCount < q.MinReferences || !matchesTypes(ent, q.Types) {
			continue
		}
		kept = append(kept, ent)
	}
	sortEntities(kept)

	return e.expand(ctx, kept, newResolver(e))
}

// ListTopics returns the best-connected entities, ranked by connection
// count descending with ties broken by name, truncated to q.TopN.
func (e *Engine) ListTopics(ctx context.Context, q TopicQuery) ([]types.Topic, error) {
	counts, err := call(ctx, e, "connection_counts", func(ctx context.Context) ([]types.ConnectionCount, error) {
		return e.store.ConnectionCounts(ctx, q.MinConnections)
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(counts))
	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		if c.Count < q.MinConnections {
			continue
		}
		if _, dup := byID[c.EntityID]; !dup {
			ids = append(ids, c.EntityID)
		}
		byID[c.EntityID] = c.Count
	}

	res := newResolver(e)
	known, err := res.resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranked := make([]types.Entity, 0, len(ids))
	for _, id := range ids {
		if ent, ok := known[id]; ok {
			ranked = append(ranked, ent)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ci, cj := byID[ranked[i].ID], byID[ranked[j].ID]
		if ci != cj {
			return ci > cj
		}
		return lessByName(ranked[i], ranked[j])
	})
	if q.TopN > 0 && len(ranked) > q.TopN {
		ranked = ranked[:q.TopN]
	}

	views, err := e.expand(ctx, ranked, res)
	if err != nil {
		return nil, err
	}
	topics := make([]types.Topic, len(views))
	for i, v := range views {
		topics[i] = types.Topic{EntityView: v, ConnectionCount: byID[v.ID]}
	}
	return topics, nil
}

// ListNotebooks returns every notebook by name with its pages in page
// order. Each page lists the entities mentioned on it, most referenced
// first.
func (e *Engine) ListNotebooks(ctx context.Context) ([]types.NotebookListing, error) {
	nbs, err := call(ctx, e, "notebooks", e.store.Notebooks)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(nbs, func(i, j int) bool {
		a, b := strings.ToLower(nbs[i].Name), strings.ToLower(nbs[j].Name)
		if a != b {
			return a < b
		}
		return nbs[i].ID < nbs[j].ID
	})

	res := newResolver(e)
	listings := make([]types.NotebookListing, 0, len(nbs))
	for _, nb := range nbs {
		pages, err := call(ctx, e, "pages", func(ctx context.Context) ([]types.Page, error) {
			return e.store.Pages(ctx, nb.ID)
		})
		if err != nil {
			return nil, err
		}
		mentions, err := call(ctx, e, "notebook_mentions", func(ctx context.Context) ([]types.SourceReference, error) {
			return e.store.NotebookMentions(ctx, nb.ID)
		})
		if err != nil {
			return nil, err
		}

		idsByPage := make(map[string][]string)
		var ids []string
		for _, m := range mentions {
			idsByPage[m.PageID] = append(idsByPage[m.PageID], m.EntityID)
			ids = append(ids, m.EntityID)
		}
		known, err := res.resolve(ctx, ids)
		if err != nil {
			return nil, err
		}

		sort.SliceStable(pages, func(i, j int) bool {
			if pages[i].Number != pages[j].Number {
				return pages[i].Number < pages[j].Number
			}
			return pages[i].ID < pages[j].ID
		})

		listing := types.NotebookListing{Notebook: nb}
		for _, p := range pages {
			listing.Pages = append(listing.Pages, types.PageListing{
				Page:     p,
				Entities: pageEntities(idsByPage[p.ID], known),
			})
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// expand attaches sources and related entities to ents, keeping their order.
func (e *Engine) expand(ctx context.Context, ents []types.Entity, res *resolver) ([]types.EntityView, error) {
	if len(ents) == 0 {
		return []types.EntityView{}, nil
	}
	ids := make([]string, len(ents))
	for i, ent := range ents {
		ids[i] = ent.ID
		res.remember(ent)
	}

	rels, err := call(ctx, e, "relationships", func(ctx context.Context) ([]types.Relationship, error) {
		return e.store.Relationships(ctx, ids)
	})
	if err != nil {
		return nil, err
	}
	srcs, err := call(ctx, e, "sources", func(ctx context.Context) ([]types.SourceReference, error) {
		return e.store.Sources(ctx, ids)
	})
	if err != nil {
		return nil, err
	}

	var neighbours []string
	for _, r := range rels {
		neighbours = append(neighbours, r.SourceID, r.TargetID)
	}
	known, err := res.resolve(ctx, neighbours)
	if err != nil {
		return nil, err
	}

	sourcesByID := make(map[string][]types.SourceReference)
	for _, s := range srcs {
		sourcesByID[s.EntityID] = append(sourcesByID[s.EntityID], s)
	}

	views := make([]types.EntityView, len(ents))
	for i, ent := range ents {
		views[i] = types.EntityView{
			Entity:  ent,
			Sources: sortSources(dedupeSources(sourcesByID[ent.ID])),
			Related: relatedGroups(ent.ID, rels, known, e.logger),
		}
	}
	return views, nil
}

// relatedGroups groups the neighbours of id by relationship type and
// direction. Dangling endpoints are skipped.
func relatedGroups(id string, rels []types.Relationship, known map[string]types.Entity, logger *slog.Logger) []types.RelatedGroup {
	type key struct {
		typ string
		dir types.Direction
	}
	groups := make(map[key]map[string]types.Entity)
	for _, r := range rels {
		var k key
		var other string
		switch {
		case r.SourceID == id:
			k, other = key{r.Type, types.DirectionOutgoing}, r.TargetID
		case r.TargetID == id:
			k, other = key{r.Type, types.DirectionIncoming}, r.SourceID
		default:
			continue
		}
		ent, ok := known[other]
		if !ok {
			logger.Debug("relationship endpoint not found", "entity", id, "missing", other, "type", r.Type)
			continue
		}
		if groups[k] == nil {
			groups[k] = make(map[string]types.Entity)
		}
		groups[k][ent.ID] = ent
	}
	if len(groups) == 0 {
		return nil
	}

	out := make([]types.RelatedGroup, 0, len(groups))
	for k, members := range groups {
		g := types.RelatedGroup{Type: k.typ, Direction: k.dir}
		for _, ent := range members {
			g.Entities = append(g.Entities, ent)
		}
		sort.Slice(g.Entities, func(i, j int) bool { return lessByName(g.Entities[i], g.Entities[j]) })
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		// Outgoing before incoming.
		return out[i].Direction > out[j].Direction
	})
	return out
}

// pageEntities resolves ids to entities, most referenced first.
func pageEntities(ids []string, known map[string]types.Entity) []types.Entity {
	seen := make(map[string]bool, len(ids))
	var out []types.Entity
	for _, id := range ids {
		ent, ok := known[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ent)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ReferenceCount != out[j].ReferenceCount {
			return out[i].ReferenceCount > out[j].ReferenceCount
		}
		return lessByName(out[i], out[j])
	})
	return out
}

// matchesTypes reports whether ent carries one of want. Known tags match
// case-insensitively, types.EntityOther matches every unknown label, and
// an unknown label also matches itself.
func matchesTypes(ent types.Entity, want []types.EntityType) bool {
	if len(want) == 0 {
		return true
	}
	kind := ent.Kind()
	for _, t := range want {
		switch {
		case strings.EqualFold(string(t), string(ent.Type)):
			return true
		case kind != types.EntityOther && types.ParseEntityType(string(t)) == kind:
			return true
		case kind == types.EntityOther && strings.EqualFold(string(t), string(types.EntityOther)):
			return true
		}
	}
	return false
}

func sortEntities(ents []types.Entity) {
	sort.SliceStable(ents, func(i, j int) bool {
		a, b := strings.ToLower(ents[i].TypeLabel()), strings.ToLower(ents[j].TypeLabel())
		if a != b {
			return a < b
		}
		return lessByName(ents[i], ents[j])
	})
}

// lessByName orders by case-insensitive name, then exact name, then id.
func lessByName(a, b types.Entity) bool {
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

func dedupeSources(srcs []types.SourceReference) []types.SourceReference {
	seen := make(map[string]bool, len(srcs))
	out := srcs[:0:0]
	for _, s := range srcs {
		if seen[s.PageID] {
			continue
		}
		seen[s.PageID] = true
		out = append(out, s)
	}
	return out
}

func sortSources(srcs []types.SourceReference) []types.SourceReference {
	sort.SliceStable(srcs, func(i, j int) bool {
		a, b := strings.ToLower(srcs[i].NotebookName), strings.ToLower(srcs[j].NotebookName)
		if a != b {
			return a < b
		}
		if srcs[i].NotebookID != srcs[j].NotebookID {
			return srcs[i].NotebookID < srcs[j].NotebookID
		}
		if srcs[i].PageNumber != srcs[j].PageNumber {
			return srcs[i].PageNumber < srcs[j].PageNumber
		}
		return srcs[i].PageID < srcs[j].PageID
	})
	return srcs
}
