// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-index/internal/export"
	"github.com/pdiddy/notebook-index/internal/graphstore"
	"github.com/pdiddy/notebook-index/internal/index"
	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/internal/query"
	"github.com/pdiddy/notebook-index/internal/secrets"
	"github.com/pdiddy/notebook-index/pkg/types"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build and export indexes (entity, topic, notebook, master, all)",
	Long: `Build queries the graph, composes an index document, and exports it.
The hyperlinked form goes to the renderer (files under the output
directory, or a render service when --render-url is set). The link-free
fallback is always written to <format>-index-fallback.md, so a failed
render still leaves a complete index behind.

By default builds read the SQLite store filled by "graph ingest". Use
--graph-file to build straight from one YAML graph export instead.`,
}

func newBuildSubcommand(use, short string, run func(context.Context, *index.Builder) (map[types.IndexFormat]types.ExportResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, run)
		},
	}
}

func single(format types.IndexFormat, res types.ExportResult, err error) (map[types.IndexFormat]types.ExportResult, error) {
	if err != nil {
		return nil, err
	}
	return map[types.IndexFormat]types.ExportResult{format: res}, nil
}

var (
	buildEntityCmd = newBuildSubcommand("entity", "Build the Entity Index",
		func(ctx context.Context, b *index.Builder) (map[types.IndexFormat]types.ExportResult, error) {
			res, err := b.BuildEntityIndex(ctx, b.EntityQuery())
			return single(types.FormatEntity, res, err)
		})

	buildTopicCmd = newBuildSubcommand("topic", "Build the Topic Index",
		func(ctx context.Context, b *index.Builder) (map[types.IndexFormat]types.ExportResult, error) {
			res, err := b.BuildTopicIndex(ctx, b.TopicQuery())
			return single(types.FormatTopic, res, err)
		})

	buildNotebookCmd = newBuildSubcommand("notebook", "Build the Notebook Index",
		func(ctx context.Context, b *index.Builder) (map[types.IndexFormat]types.ExportResult, error) {
			res, err := b.BuildNotebookIndex(ctx)
			return single(types.FormatNotebook, res, err)
		})

	buildMasterCmd = newBuildSubcommand("master", "Build the Master Index",
		func(ctx context.Context, b *index.Builder) (map[types.IndexFormat]types.ExportResult, error) {
			res, err := b.BuildMasterIndex(ctx)
			return single(types.FormatMaster, res, err)
		})

	buildAllCmd = newBuildSubcommand("all", "Build all four indexes concurrently",
		func(ctx context.Context, b *index.Builder) (map[types.IndexFormat]types.ExportResult, error) {
			return b.BuildAll(ctx)
		})
)

// buildEnv holds what one build command wires together.
type buildEnv struct {
	builder  *index.Builder
	files    *export.FileRenderer
	prom     *metrics.PrometheusRecorder
	closeFns []func() error
}

func (e *buildEnv) Close() {
	for _, fn := range e.closeFns {
		_ = fn()
	}
}

func newBuildEnv(cfg types.Config, graphFile string, creds secrets.Set, logger *slog.Logger) (*buildEnv, error) {
	env := &buildEnv{files: export.NewFileRenderer(cfg.Export)}

	var store query.GraphStore
	if graphFile != "" {
		g, err := graphstore.LoadFile(graphFile)
		if err != nil {
			return nil, err
		}
		store = graphstore.NewMemStore(g)
	} else {
		s, err := graphstore.NewStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		env.closeFns = append(env.closeFns, s.Close)
		store = s
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Textfile != "" {
		env.prom = metrics.NewPrometheusRecorder(nil)
		rec = env.prom
	}

	var renderer export.Renderer = env.files
	if cfg.Export.RenderURL != "" {
		hr := export.NewHTTPRenderer(cfg.Export)
		hr.Token = creds.Get(secrets.RenderToken)
		renderer = hr
	}

	engine := query.NewEngine(store, cfg.Store, query.WithLogger(logger), query.WithRecorder(rec))
	exporter := export.New(
		export.WithRenderer(renderer),
		export.WithLinkScope(cfg.Index.LinkScope),
		export.WithMaxSlugLength(cfg.Index.MaxSlugLength),
		export.WithLogger(logger),
		export.WithRecorder(rec),
	)
	env.builder = index.NewBuilder(engine, exporter, cfg.Index, index.WithLogger(logger), index.WithRecorder(rec))
	return env, nil
}

func runBuild(cmd *cobra.Command, run func(context.Context, *index.Builder) (map[types.IndexFormat]types.ExportResult, error)) error {
	cfg := loadConfig()
	graphFile, _ := cmd.Flags().GetString("graph-file")

	env, err := newBuildEnv(cfg, graphFile, loadedSecrets, slog.Default())
	if err != nil {
		return err
	}
	defer env.Close()

	results, buildErr := run(cmd.Context(), env.builder)
	if buildErr != nil && len(results) == 0 {
		return buildErr
	}

	degraded := 0
	for _, format := range types.IndexFormats {
		res, ok := results[format]
		if !ok {
			continue
		}
		if err := report(os.Stdout, env.files, format, res); err != nil {
			return err
		}
		if res.Status == types.StatusDegraded {
			degraded++
		}
	}

	if env.prom != nil {
		if err := env.prom.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	if degraded > 0 {
		fmt.Fprintf(os.Stderr, "%d index(es) exported without hyperlinks; see the fallback files\n", degraded)
	}
	return buildErr
}

// report writes the fallback next to the primary output and prints a
// one-line summary per index.
func report(w io.Writer, files *export.FileRenderer, format types.IndexFormat, res types.ExportResult) error {
	fallback, err := files.WriteFallback(res.Fallback)
	if err != nil {
		return fmt.Errorf("writing %s fallback: %w", format, err)
	}

	primary := "-"
	if res.Artifact != nil {
		primary = res.Artifact.Location
	}
	fmt.Fprintf(w, "%-8s  %-8s  linked: %-4d  skipped: %-4d  %s  (fallback %s)\n",
		format, res.Status, res.Stats.Linked, res.Stats.Skipped, primary, fallback.Location)
	return nil
}

func init() {
	buildCmd.PersistentFlags().String("graph-file", "", "build from one YAML graph export instead of the SQLite store")
	buildCmd.PersistentFlags().String("output-dir", "", "directory for exported indexes (default output/)")
	buildCmd.PersistentFlags().String("anchor-format", "", "anchor map encoding: yaml or json")
	buildCmd.PersistentFlags().String("render-url", "", "render service URL for the hyperlinked form")
	buildCmd.PersistentFlags().String("link-scope", "", "link first mentions per paragraph, section, or document")
	buildCmd.PersistentFlags().StringSlice("type", nil, "entity types to include (repeatable; default all)")
	buildCmd.PersistentFlags().Int("min-references", 0, "exclude entities with fewer references")
	buildCmd.PersistentFlags().Int("top-n", 0, "maximum topics (default 20; -1 for no cap)")
	buildCmd.PersistentFlags().Int("min-connections", 0, "exclude topics with fewer relationships (default 1)")
	buildCmd.PersistentFlags().String("metrics-textfile", "", "write Prometheus metrics to this file after the build")

	for flag, key := range map[string]string{
		"output-dir":       "export.output_dir",
		"anchor-format":    "export.anchor_format",
		"render-url":       "export.render_url",
		"link-scope":       "index.link_scope",
		"type":             "index.types",
		"min-references":   "index.min_references",
		"top-n":            "index.top_n",
		"min-connections":  "index.min_connections",
		"metrics-textfile": "metrics.textfile",
	} {
		_ = viper.BindPFlag(key, buildCmd.PersistentFlags().Lookup(flag))
	}

	buildCmd.AddCommand(buildEntityCmd)
	buildCmd.AddCommand(buildTopicCmd)
	buildCmd.AddCommand(buildNotebookCmd)
	buildCmd.AddCommand(buildMasterCmd)
	buildCmd.AddCommand(buildAllCmd)

	rootCmd.AddCommand(buildCmd)
}
