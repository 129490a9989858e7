// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index runs index builds end to end: query the graph, compose the
// document, and export it. Every build owns its registry and document, so
// builds may run concurrently.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/notebook-index/internal/compose"
	"github.com/pdiddy/notebook-index/internal/export"
	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/internal/query"
	"github.com/pdiddy/notebook-index/pkg/types"
)

// Builder exposes the four index builds.
type Builder struct {
	engine   *query.Engine
	exporter *export.Exporter
	cfg      types.IndexConfig
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(b *Builder) { b.recorder = metrics.OrNoop(r) }
}

// NewBuilder returns a Builder reading through engine and exporting with
// exporter. cfg supplies composition settings and query defaults.
func NewBuilder(engine *query.Engine, exporter *export.Exporter, cfg types.IndexConfig, opts ...Option) *Builder {
	b := &Builder{
		engine:   engine,
		exporter: exporter,
		cfg:      cfg,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EntityQuery returns the entity query configured in cfg.
func (b *Builder) EntityQuery() query.EntityQuery {
	return query.EntityQuery{Types: b.cfg.Types, MinReferences: b.cfg.MinReferences}
}

// TopicQuery returns the topic query configured in cfg.
func (b *Builder) TopicQuery() query.TopicQuery {
	return query.TopicQuery{TopN: b.cfg.TopN, MinConnections: b.cfg.MinConnections}
}

func (b *Builder) composeOptions() compose.Options {
	return compose.Options{KeyEntitiesPerPage: b.cfg.KeyEntitiesPerPage}
}

// BuildEntityIndex builds the Entity Index for q.
func (b *Builder) BuildEntityIndex(ctx context.Context, q query.EntityQuery) (types.ExportResult, error) {
	return b.run(ctx, types.FormatEntity, func(ctx context.Context) (types.IndexDocument, error) {
		views, err := b.engine.ListEntities(ctx, q)
		if err != nil {
			return types.IndexDocument{}, err
		}
		return compose.EntityIndex(views), nil
	})
}

// BuildTopicIndex builds the Topic Index for q.
func (b *Builder) BuildTopicIndex(ctx context.Context, q query.TopicQuery) (types.ExportResult, error) {
	return b.run(ctx, types.FormatTopic, func(ctx context.Context) (types.IndexDocument, error) {
		topics, err := b.engine.ListTopics(ctx, q)
		if err != nil {
			return types.IndexDocument{}, err
		}
		return compose.TopicIndex(topics), nil
	})
}

// BuildNotebookIndex builds the Notebook Index.
func (b *Builder) BuildNotebookIndex(ctx context.Context) (types.ExportResult, error) {
	return b.run(ctx, types.FormatNotebook, func(ctx context.Context) (types.IndexDocument, error) {
		listings, err := b.engine.ListNotebooks(ctx)
		if err != nil {
			return types.IndexDocument{}, err
		}
		return compose.NotebookIndex(listings, b.composeOptions()), nil
	})
}

// BuildMasterIndex builds the Master Index. Each view is fetched once and
// shared by every part of the document.
func (b *Builder) BuildMasterIndex(ctx context.Context) (types.ExportResult, error) {
	return b.run(ctx, types.FormatMaster, func(ctx context.Context) (types.IndexDocument, error) {
		views, err := b.engine.ListEntities(ctx, b.EntityQuery())
		if err != nil {
			return types.IndexDocument{}, err
		}
		topics, err := b.engine.ListTopics(ctx, b.TopicQuery())
		if err != nil {
			return types.IndexDocument{}, err
		}
		listings, err := b.engine.ListNotebooks(ctx)
		if err != nil {
			return types.IndexDocument{}, err
		}
		return compose.MasterIndex(views, topics, listings, b.composeOptions()), nil
	})
}

// BuildAll runs the four builds concurrently with the configured queries.
// The builds are independent: a failed build does not stop the others.
// The result holds every build that finished; the error joins the
// failures.
func (b *Builder) BuildAll(ctx context.Context) (map[types.IndexFormat]types.ExportResult, error) {
	builds := map[types.IndexFormat]func(context.Context) (types.ExportResult, error){
		types.FormatEntity: func(ctx context.Context) (types.ExportResult, error) {
			return b.BuildEntityIndex(ctx, b.EntityQuery())
		},
		types.FormatTopic: func(ctx context.Context) (types.ExportResult, error) {
			return b.BuildTopicIndex(ctx, b.TopicQuery())
		},
		types.FormatNotebook: b.BuildNotebookIndex,
		types.FormatMaster:   b.BuildMasterIndex,
	}

	results := make([]types.ExportResult, len(types.IndexFormats))
	errs := make([]error, len(types.IndexFormats))
	var g errgroup.Group
	for i, format := range types.IndexFormats {
		build := builds[format]
		g.Go(func() error {
			res, err := build(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("building %s index: %w", format, err)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[types.IndexFormat]types.ExportResult, len(results))
	for i, format := range types.IndexFormats {
		if errs[i] == nil {
			out[format] = results[i]
		}
	}
	return out, errors.Join(errs...)
}

// run composes one document and exports it, tagging logs with a build id.
// Only a failed composition is returned as an error; export problems are
// reported through the result's status.
func (b *Builder) run(ctx context.Context, format types.IndexFormat, composeDoc func(context.Context) (types.IndexDocument, error)) (types.ExportResult, error) {
	start := time.Now()
	logger := b.logger.With("build_id", uuid.NewString(), "format", format)
	logger.Info("index build started")

	defer func() {
		b.recorder.ObserveBuildDuration(string(format), time.Since(start))
	}()

	doc, err := composeDoc(ctx)
	if err != nil {
		b.recorder.IncBuildOutcome(string(format), metrics.OutcomeFailed)
		logger.Error("index build failed", "error", err)
		return types.ExportResult{}, err
	}

	res := b.exporter.Export(ctx, doc)

	outcome := metrics.OutcomeOK
	if res.Status == types.StatusDegraded {
		outcome = metrics.OutcomeDegraded
	}
	b.recorder.IncBuildOutcome(string(format), outcome)
	logger.Info("index build finished",
		"status", res.Status,
		"sections", len(doc.Sections),
		"linked", res.Stats.Linked,
		"skipped", res.Stats.Skipped,
		"duration", time.Since(start))
	return res, nil
}
