// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export turns a composed index document into its two delivery
// forms: a hyperlinked primary form with an anchor map, and a link-free
// fallback. A failure anywhere in producing or rendering the primary form
// degrades the result to the fallback; it never fails the export.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/notebook-index/internal/anchor"
	"github.com/pdiddy/notebook-index/internal/inject"
	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/pkg/types"
)

// Renderer turns a rendered document into a deliverable artifact.
type Renderer interface {
	Render(ctx context.Context, doc types.RenderedDocument) (types.Artifact, error)
}

// Exporter produces both export forms of an index document. It holds no
// per-document state and is safe for concurrent use if its Renderer is.
type Exporter struct {
	renderer  Renderer
	injector  *inject.Injector
	scope     types.LinkScope
	maxLength int
	logger    *slog.Logger
	recorder  metrics.Recorder
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRenderer sets the renderer for the primary form. Without one the
// primary form is returned but not rendered.
func WithRenderer(r Renderer) Option {
	return func(x *Exporter) { x.renderer = r }
}

// WithLinkScope sets the first-mention scope used by the injector.
func WithLinkScope(scope types.LinkScope) Option {
	return func(x *Exporter) { x.scope = scope }
}

// WithMaxSlugLength sets the anchor slug length cap.
func WithMaxSlugLength(n int) Option {
	return func(x *Exporter) { x.maxLength = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(x *Exporter) {
		if l != nil {
			x.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(x *Exporter) { x.recorder = metrics.OrNoop(r) }
}

// New returns an Exporter.
func New(opts ...Option) *Exporter {
	x := &Exporter{
		scope:     types.ScopeParagraph,
		maxLength: anchor.DefaultMaxLength,
		logger:    slog.Default(),
		recorder:  metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(x)
	}
	x.injector = inject.New(
		inject.WithScope(x.scope),
		inject.WithLogger(x.logger),
		inject.WithRecorder(x.recorder),
	)
	return x
}

// Export builds the fallback form, then attempts the primary form. If the
// primary form cannot be produced or rendered, the result carries only the
// fallback with status types.StatusDegraded.
func (x *Exporter) Export(ctx context.Context, doc types.IndexDocument) types.ExportResult {
	res := types.ExportResult{
		Fallback: types.RenderedDocument{
			Format:   doc.Format,
			Markdown: assemble(doc, doc.Sections, false),
		},
		Status: types.StatusDegraded,
	}

	primary, stats, err := x.primary(doc)
	if err != nil {
		x.degrade(doc.Format, "assembling hyperlinked form", err)
		return res
	}
	res.Stats = stats

	if x.renderer != nil {
		artifact, err := x.render(ctx, primary)
		if err != nil {
			x.degrade(doc.Format, "rendering hyperlinked form", err)
			return res
		}
		res.Artifact = &artifact
	}

	res.Primary = &primary
	res.Status = types.StatusOK
	return res
}

func (x *Exporter) degrade(format types.IndexFormat, stage string, err error) {
	x.recorder.IncExportFailure(string(format))
	x.logger.Warn("export degraded to fallback", "format", format, "stage", stage, "error", err)
}

// primary registers every section and referenced name in a fresh registry,
// injects links into every body, and assembles the hyperlinked form.
func (x *Exporter) primary(doc types.IndexDocument) (out types.RenderedDocument, stats types.ExportStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	reg := anchor.NewRegistry(anchor.WithMaxLength(x.maxLength), anchor.WithLogger(x.logger))
	sections := append([]types.Section(nil), doc.Sections...)

	var vocabulary []string
	inVocabulary := make(map[string]bool)
	addWord := func(name string) {
		if name != "" && !inVocabulary[name] {
			inVocabulary[name] = true
			vocabulary = append(vocabulary, name)
		}
	}

	for i := range sections {
		s := &sections[i]
		if s.Kind.Named() {
			slug, ok := reg.RegisterSection(s.Name)
			if !ok {
				slug = registerSection(reg, string(s.Kind)+": "+s.Name)
			}
			s.AnchorID = slug
			addWord(s.Name)
			continue
		}
		s.AnchorID = registerSection(reg, string(s.Kind)+": "+s.Heading)
	}
	for _, name := range doc.Related {
		reg.Register(name)
		addWord(name)
	}

	session := x.injector.NewSession(reg, vocabulary)
	for i := range sections {
		r := session.Inject(sections[i].Body)
		sections[i].Body = r.Text
		stats.Linked += r.Linked
		stats.Skipped += r.Skipped
	}

	return types.RenderedDocument{
		Format:   doc.Format,
		Markdown: assemble(doc, sections, true),
		Anchors:  reg.Entries(),
	}, stats, nil
}

// registerSection binds key, or key with a numeric suffix, to a new section.
func registerSection(reg *anchor.Registry, key string) string {
	slug, ok := reg.RegisterSection(key)
	for n := 2; !ok; n++ {
		slug, ok = reg.RegisterSection(fmt.Sprintf("%s #%d", key, n))
	}
	return slug
}

func (x *Exporter) render(ctx context.Context, doc types.RenderedDocument) (artifact types.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return x.renderer.Render(ctx, doc)
}

// assemble lays out the title, a table of contents, and every section.
// With links set, contents entries link to section anchors; headings are
// written the same way in both forms.
func assemble(doc types.IndexDocument, sections []types.Section, links bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", oneLine(doc.Title))

	if len(sections) > 0 {
		top := sections[0].Level
		for _, s := range sections {
			top = min(top, s.Level)
		}

		b.WriteString("\nContents:\n\n")
		for _, s := range sections {
			indent := strings.Repeat("  ", s.Level-top)
			heading := oneLine(s.Heading)
			if links && s.AnchorID != "" {
				heading = inject.Link(heading, s.AnchorID)
			}
			fmt.Fprintf(&b, "%s- %s\n", indent, heading)
		}
	}

	for _, s := range sections {
		level := min(max(s.Level, 1), 6)
		fmt.Fprintf(&b, "\n%s %s\n", strings.Repeat("#", level), oneLine(s.Heading))
		if body := strings.TrimRight(s.Body, "\n"); body != "" {
			b.WriteString("\n")
			b.WriteString(body)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
