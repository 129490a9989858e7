// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-index/internal/graphstore"
	"github.com/pdiddy/notebook-index/pkg/types"
)

// --- test helpers ---

func sampleGraph() *graphstore.GraphFile {
	return &graphstore.GraphFile{
		Notebooks: []graphstore.NotebookRecord{
			{ID: "nb2", Name: "lab book", Pages: []graphstore.PageRecord{
				{ID: "p3", Number: 1, Title: "Trials", Mentions: []string{"ml"}},
			}},
			{ID: "nb1", Name: "Field Notes", Pages: []graphstore.PageRecord{
				{ID: "p2", Number: 2, Title: "Design", Mentions: []string{"nn", "ml", "go"}},
				{ID: "p1", Number: 1, Title: "Kickoff", Mentions: []string{"ml", "ada"}},
			}},
		},
		Entities: []types.Entity{
			{ID: "ml", Name: "Machine Learning", Type: types.EntityConcept, ReferenceCount: 10},
			{ID: "nn", Name: "Neural Networks", Type: "concept", ReferenceCount: 4},
			{ID: "go", Name: "Go", Type: types.EntityTechnology, ReferenceCount: 4},
			{ID: "ada", Name: "Ada Lovelace", Type: types.EntityPerson, ReferenceCount: 2},
			{ID: "w", Name: "widget", Type: "gizmo", ReferenceCount: 1},
		},
		Relationships: []types.Relationship{
			{SourceID: "ml", TargetID: "nn", Type: "INCLUDES"},
			{SourceID: "ml", TargetID: "go", Type: "USES"},
			{SourceID: "ml", TargetID: "ada", Type: "INSPIRED_BY"},
			{SourceID: "ada", TargetID: "ml", Type: "INSPIRED_BY"},
			{SourceID: "go", TargetID: "ml", Type: "USED_FOR"},
			{SourceID: "nn", TargetID: "gone", Type: "MENTIONS"},
		},
	}
}

// flakyStore fails the first failures calls of each operation it is told
// to break.
type flakyStore struct {
	GraphStore

	mu       sync.Mutex
	err      error
	failures map[string]int
	calls    map[string]int
}

func newFlakyStore(inner GraphStore, err error, failures map[string]int) *flakyStore {
	return &flakyStore{GraphStore: inner, err: err, failures: failures, calls: make(map[string]int)}
}

func (f *flakyStore) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.failures[op] < 0 || f.calls[op] <= f.failures[op] {
		return f.err
	}
	return nil
}

func (f *flakyStore) Entities(ctx context.Context, filter types.EntityFilter) ([]types.Entity, error) {
	if err := f.fail("entities"); err != nil {
		return nil, err
	}
	return f.GraphStore.Entities(ctx, filter)
}

func (f *flakyStore) ConnectionCounts(ctx context.Context, minConnections int) ([]types.ConnectionCount, error) {
	if err := f.fail("connection_counts"); err != nil {
		return nil, err
	}
	return f.GraphStore.ConnectionCounts(ctx, minConnections)
}

func (f *flakyStore) Relationships(ctx context.Context, ids []string) ([]types.Relationship, error) {
	if err := f.fail("relationships"); err != nil {
		return nil, err
	}
	return f.GraphStore.Relationships(ctx, ids)
}

func (f *flakyStore) Notebooks(ctx context.Context) ([]types.Notebook, error) {
	if err := f.fail("notebooks"); err != nil {
		return nil, err
	}
	return f.GraphStore.Notebooks(ctx)
}

func testEngine(store GraphStore) *Engine {
	return NewEngine(store, types.StoreConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond})
}

func names(views []types.EntityView) []string {
	var out []string
	for _, v := range views {
		out = append(out, v.Name)
	}
	return out
}

func transient(msg string) error {
	return fmt.Errorf("%w: %s", types.ErrTransient, msg)
}

// --- tests ---

func TestListEntities_SortedByTypeThenName(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	views, err := e.ListEntities(context.Background(), EntityQuery{})
	require.NoError(t, err)

	// Type labels: Concept, gizmo, Person, Technology (case-insensitive).
	assert.Equal(t, []string{"Machine Learning", "Neural Networks", "widget", "Ada Lovelace", "Go"}, names(views))
}

func TestListEntities_Filters(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))
	ctx := context.Background()

	views, err := e.ListEntities(ctx, EntityQuery{Types: []types.EntityType{types.EntityConcept}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Machine Learning", "Neural Networks"}, names(views), "type match ignores case")

	views, err = e.ListEntities(ctx, EntityQuery{Types: []types.EntityType{types.EntityOther}})
	require.NoError(t, err)
	assert.Equal(t, []string{"widget"}, names(views))

	views, err = e.ListEntities(ctx, EntityQuery{Types: []types.EntityType{"GIZMO"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"widget"}, names(views))

	views, err = e.ListEntities(ctx, EntityQuery{MinReferences: 4})
	require.NoError(t, err)
	assert.Equal(t, []string{"Machine Learning", "Neural Networks", "Go"}, names(views))
}

func TestListEntities_Empty(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(&graphstore.GraphFile{}))
	views, err := e.ListEntities(context.Background(), EntityQuery{})
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestListEntities_RelatedAndSources(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	views, err := e.ListEntities(context.Background(), EntityQuery{Types: []types.EntityType{types.EntityConcept}})
	require.NoError(t, err)
	require.Len(t, views, 2)

	ml := views[0]
	require.Equal(t, "ml", ml.ID)
	var groups []string
	for _, g := range ml.Related {
		groups = append(groups, fmt.Sprintf("%s/%s/%s", g.Type, g.Direction, names(entitiesAsViews(g.Entities))))
	}
	assert.Equal(t, []string{
		"INCLUDES/outgoing/[Neural Networks]",
		"INSPIRED_BY/outgoing/[Ada Lovelace]",
		"INSPIRED_BY/incoming/[Ada Lovelace]",
		"USED_FOR/incoming/[Go]",
		"USES/outgoing/[Go]",
	}, groups)

	var pages []string
	for _, s := range ml.Sources {
		pages = append(pages, s.NotebookName+":"+s.PageTitle)
	}
	assert.Equal(t, []string{"Field Notes:Kickoff", "Field Notes:Design", "lab book:Trials"}, pages)

	nn := views[1]
	require.Len(t, nn.Related, 1, "dangling endpoint is dropped")
	assert.Equal(t, types.DirectionIncoming, nn.Related[0].Direction)
}

func entitiesAsViews(ents []types.Entity) []types.EntityView {
	out := make([]types.EntityView, len(ents))
	for i, ent := range ents {
		out[i] = types.EntityView{Entity: ent}
	}
	return out
}

func TestListTopics_RankedAndCapped(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	topics, err := e.ListTopics(context.Background(), TopicQuery{})
	require.NoError(t, err)

	var got []string
	for _, tp := range topics {
		got = append(got, fmt.Sprintf("%s=%d", tp.Name, tp.ConnectionCount))
	}
	// ml touches five edges; ada and go two each; nn two (one dangling).
	assert.Equal(t, []string{"Machine Learning=5", "Ada Lovelace=2", "Go=2", "Neural Networks=2"}, got)
}

func TestListTopics_ThresholdThenCap(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	topics, err := e.ListTopics(context.Background(), TopicQuery{TopN: 1, MinConnections: 5})
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Machine Learning", topics[0].Name)
	assert.Equal(t, 5, topics[0].ConnectionCount)

	topics, err = e.ListTopics(context.Background(), TopicQuery{TopN: 2, MinConnections: 2})
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestListTopics_SkipsUnknownIDs(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	topics, err := e.ListTopics(context.Background(), TopicQuery{MinConnections: 1})
	require.NoError(t, err)
	for _, tp := range topics {
		assert.NotEqual(t, "gone", tp.ID)
	}
}

func TestListNotebooks(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))

	listings, err := e.ListNotebooks(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "Field Notes", listings[0].Name, "sorted by name ignoring case")
	require.Len(t, listings[0].Pages, 2)
	assert.Equal(t, "Kickoff", listings[0].Pages[0].Title)
	assert.Equal(t, []string{"Machine Learning", "Ada Lovelace"}, names(entitiesAsViews(listings[0].Pages[0].Entities)))
	assert.Equal(t, []string{"Machine Learning", "Go", "Neural Networks"}, names(entitiesAsViews(listings[0].Pages[1].Entities)),
		"most referenced first, ties by name")

	assert.Equal(t, "lab book", listings[1].Name)
}

func TestEngine_TransientErrorsRetried(t *testing.T) {
	store := newFlakyStore(graphstore.NewMemStore(sampleGraph()), transient("database is locked"),
		map[string]int{"entities": 2})
	e := testEngine(store)

	views, err := e.ListEntities(context.Background(), EntityQuery{})
	require.NoError(t, err)
	assert.Len(t, views, 5)
	assert.Equal(t, 3, store.calls["entities"])
}

func TestEngine_StoreUnavailable(t *testing.T) {
	store := newFlakyStore(graphstore.NewMemStore(sampleGraph()), transient("down"),
		map[string]int{"relationships": -1})
	e := testEngine(store)

	views, err := e.ListEntities(context.Background(), EntityQuery{})
	require.Error(t, err)
	assert.Nil(t, views, "no partial listing")
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, err, types.ErrTransient)

	var sue *StoreUnavailableError
	require.True(t, errors.As(err, &sue))
	assert.Equal(t, "relationships", sue.Op)
	assert.Equal(t, 4, sue.Attempts)
	assert.Equal(t, 4, store.calls["relationships"])
}

func TestEngine_PermanentErrorNotRetried(t *testing.T) {
	boom := errors.New("no such table")
	store := newFlakyStore(graphstore.NewMemStore(sampleGraph()), boom, map[string]int{"notebooks": -1})
	e := testEngine(store)

	_, err := e.ListNotebooks(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.calls["notebooks"])
}

func TestEngine_ContextCanceled(t *testing.T) {
	store := newFlakyStore(graphstore.NewMemStore(sampleGraph()), transient("busy"),
		map[string]int{"connection_counts": -1})
	e := NewEngine(store, types.StoreConfig{MaxRetries: 5, RetryBaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := e.ListTopics(ctx, TopicQuery{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, types.ErrStoreUnavailable)
}

func TestEngine_Deterministic(t *testing.T) {
	e := testEngine(graphstore.NewMemStore(sampleGraph()))
	ctx := context.Background()

	first, err := e.ListEntities(ctx, EntityQuery{})
	require.NoError(t, err)
	for range 5 {
		again, err := e.ListEntities(ctx, EntityQuery{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatchesTypes(t *testing.T) {
	concept := types.Entity{Type: "CONCEPT"}
	odd := types.Entity{Type: "gizmo"}

	assert.True(t, matchesTypes(concept, nil))
	assert.True(t, matchesTypes(concept, []types.EntityType{types.EntityConcept}))
	assert.False(t, matchesTypes(concept, []types.EntityType{types.EntityOther}))
	assert.True(t, matchesTypes(odd, []types.EntityType{types.EntityOther}))
	assert.True(t, matchesTypes(odd, []types.EntityType{"Gizmo"}))
	assert.False(t, matchesTypes(odd, []types.EntityType{types.EntityPerson}))
}
