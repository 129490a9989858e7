// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/notebook-index/internal/export"
	"github.com/pdiddy/notebook-index/internal/graphstore"
	"github.com/pdiddy/notebook-index/internal/inject"
	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/internal/query"
	"github.com/pdiddy/notebook-index/pkg/types"
)

// --- test helpers ---

func graph() *graphstore.GraphFile {
	return &graphstore.GraphFile{
		Notebooks: []graphstore.NotebookRecord{{
			ID: "nb1", Name: "Field Notes",
			Pages: []graphstore.PageRecord{
				{ID: "p1", Number: 1, Title: "Kickoff", Mentions: []string{"ml", "nn"}},
				{ID: "p2", Number: 2, Title: "Models", Mentions: []string{"nn"}},
			},
		}},
		Entities: []types.Entity{
			{ID: "ml", Name: "Machine Learning", Type: types.EntityConcept, Observations: []string{"Neural Networks are explained under Machine Learning"}},
			{ID: "nn", Name: "Neural Networks", Type: types.EntityConcept},
			{ID: "ai", Name: "AI", Type: types.EntityConcept},
			{ID: "aie", Name: "AI Ethics", Type: types.EntityConcept, Observations: []string{"AI Ethics research is growing"}},
		},
		Relationships: []types.Relationship{
			{SourceID: "ml", TargetID: "nn", Type: "INCLUDES"},
			{SourceID: "aie", TargetID: "ai", Type: "PART_OF"},
		},
	}
}

type countingRecorder struct {
	metrics.NoopRecorder

	mu       sync.Mutex
	outcomes map[string]int
	retries  int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{outcomes: make(map[string]int)}
}

func (c *countingRecorder) IncBuildOutcome(format string, outcome metrics.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[format+"/"+string(outcome)]++
}

func (c *countingRecorder) IncStoreRetry(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.retries++
}

// flakyStore fails Entities with err for the first failures calls, or
// forever when failures is negative.
type flakyStore struct {
	query.GraphStore

	mu       sync.Mutex
	err      error
	failures int
	calls    int
}

func (f *flakyStore) Entities(ctx context.Context, filter types.EntityFilter) ([]types.Entity, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failures < 0 || f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, f.err
	}
	return f.GraphStore.Entities(ctx, filter)
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, types.RenderedDocument) (types.Artifact, error) {
	return types.Artifact{}, errors.New("render service down")
}

func newBuilder(store query.GraphStore, rec metrics.Recorder, opts ...export.Option) *Builder {
	engine := query.NewEngine(store, types.StoreConfig{MaxRetries: 3, RetryBaseDelay: time.Millisecond},
		query.WithRecorder(rec))
	return NewBuilder(engine, export.New(append(opts, export.WithRecorder(rec))...),
		types.IndexConfig{TopN: 20, MinConnections: 1}, WithRecorder(rec))
}

func slugs(res types.ExportResult) map[string]string {
	out := make(map[string]string)
	for _, a := range res.Primary.Anchors {
		out[a.Name] = a.Slug
	}
	return out
}

// --- tests ---

func TestBuildEntityIndex_LinksMentions(t *testing.T) {
	b := newBuilder(graphstore.NewMemStore(graph()), nil)

	res, err := b.BuildEntityIndex(context.Background(), b.EntityQuery())
	require.NoError(t, err)
	require.Equal(t, types.StatusOK, res.Status)

	s := slugs(res)
	assert.Equal(t, "machine-learning", s["Machine Learning"])
	assert.Equal(t, "neural-networks", s["Neural Networks"])

	md := res.Primary.Markdown
	assert.Contains(t, md, "- [Neural Networks](#neural-networks) are explained under [Machine Learning](#machine-learning)\n")
	assert.Contains(t, md, "\n### Machine Learning\n", "headings stay unlinked")
	assert.Contains(t, md, "- [AI Ethics](#ai-ethics) research is growing\n", "longest name wins")
	assert.NotContains(t, md, "[AI](#ai) Ethics")
}

func TestBuildTopicIndex_TopN(t *testing.T) {
	b := newBuilder(graphstore.NewMemStore(graph()), nil)

	res, err := b.BuildTopicIndex(context.Background(), query.TopicQuery{TopN: 1, MinConnections: 1})
	require.NoError(t, err)
	require.Equal(t, types.StatusOK, res.Status)
	assert.Equal(t, 1, strings.Count(res.Fallback.Markdown, "\n## "))
	assert.Contains(t, res.Fallback.Markdown, "\n## AI\n", "ties broken by name")
}

func TestBuildNotebookIndex(t *testing.T) {
	b := newBuilder(graphstore.NewMemStore(graph()), nil)

	res, err := b.BuildNotebookIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.StatusOK, res.Status)
	assert.Contains(t, res.Fallback.Markdown, "| 1 | Kickoff | Neural Networks, Machine Learning |\n", "most referenced first")
	assert.Equal(t, 3, res.Stats.Skipped, "entity names have no sections in the notebook index")
}

func TestBuildMasterIndex_CrossLinks(t *testing.T) {
	b := newBuilder(graphstore.NewMemStore(graph()), nil)

	res, err := b.BuildMasterIndex(context.Background())
	require.NoError(t, err)
	require.Equal(t, types.StatusOK, res.Status)

	md := res.Primary.Markdown
	assert.Contains(t, md, "## Entity Index\n")
	assert.Contains(t, md, "## Cross-Reference\n")
	assert.Contains(t, md, "| 1 | Kickoff | [Neural Networks](#neural-networks), [Machine Learning](#machine-learning) |\n")
	assert.Contains(t, md, "- [Neural Networks](#neural-networks): Field Notes, page 1: Kickoff; Field Notes, page 2: Models\n")
	assert.Equal(t, inject.StripLinks(res.Fallback.Markdown), inject.StripLinks(md))
}

func TestBuild_TransientErrorsRecovered(t *testing.T) {
	rec := newCountingRecorder()
	store := &flakyStore{GraphStore: graphstore.NewMemStore(graph()), err: fmt.Errorf("%w: locked", types.ErrTransient), failures: 2}
	b := newBuilder(store, rec)

	res, err := b.BuildEntityIndex(context.Background(), b.EntityQuery())
	require.NoError(t, err)
	assert.Equal(t, types.StatusOK, res.Status)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 2, rec.retries)
	assert.Equal(t, 1, rec.outcomes["entity/ok"])
}

func TestBuild_StoreUnavailable(t *testing.T) {
	rec := newCountingRecorder()
	store := &flakyStore{GraphStore: graphstore.NewMemStore(graph()), err: fmt.Errorf("%w: locked", types.ErrTransient), failures: -1}
	b := newBuilder(store, rec)

	res, err := b.BuildEntityIndex(context.Background(), b.EntityQuery())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.Empty(t, res.Fallback.Markdown, "no partial index")
	assert.Equal(t, 1, rec.outcomes["entity/failed"])
}

func TestBuild_RendererFailureDegrades(t *testing.T) {
	rec := newCountingRecorder()
	b := newBuilder(graphstore.NewMemStore(graph()), rec, export.WithRenderer(failingRenderer{}))

	res, err := b.BuildEntityIndex(context.Background(), b.EntityQuery())
	require.NoError(t, err)
	assert.Equal(t, types.StatusDegraded, res.Status)
	assert.Nil(t, res.Primary)
	assert.Contains(t, res.Fallback.Markdown, "### Machine Learning\n")
	assert.Equal(t, 1, rec.outcomes["entity/degraded"])
}

func TestBuild_Deterministic(t *testing.T) {
	b := newBuilder(graphstore.NewMemStore(graph()), nil)
	ctx := context.Background()

	first, err := b.BuildMasterIndex(ctx)
	require.NoError(t, err)
	for range 3 {
		again, err := b.BuildMasterIndex(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.Fallback.Markdown, again.Fallback.Markdown)
		assert.Equal(t, first.Primary.Anchors, again.Primary.Anchors)
	}
}

func TestBuildAll(t *testing.T) {
	rec := newCountingRecorder()
	b := newBuilder(graphstore.NewMemStore(graph()), rec)

	results, err := b.BuildAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, format := range types.IndexFormats {
		res := results[format]
		assert.Equal(t, types.StatusOK, res.Status, format)
		assert.Equal(t, format, res.Fallback.Format)
		assert.Equal(t, 1, rec.outcomes[string(format)+"/ok"])
	}

	single, err := b.BuildEntityIndex(context.Background(), b.EntityQuery())
	require.NoError(t, err)
	assert.Equal(t, single.Fallback.Markdown, results[types.FormatEntity].Fallback.Markdown)
}

func TestBuildAll_StoreFailureKeepsOtherIndexes(t *testing.T) {
	rec := newCountingRecorder()
	store := &flakyStore{GraphStore: graphstore.NewMemStore(graph()), err: errors.New("disk gone"), failures: -1}
	b := newBuilder(store, rec)

	results, err := b.BuildAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "building entity index")
	assert.Contains(t, err.Error(), "building master index")

	require.Len(t, results, 2, "topic and notebook builds never list entities")
	assert.Equal(t, types.StatusOK, results[types.FormatTopic].Status)
	assert.Equal(t, types.StatusOK, results[types.FormatNotebook].Status)
	assert.NotContains(t, results, types.FormatEntity)
	assert.NotContains(t, results, types.FormatMaster)
	assert.Equal(t, 1, rec.outcomes["entity/failed"])
	assert.Equal(t, 1, rec.outcomes["master/failed"])
}
