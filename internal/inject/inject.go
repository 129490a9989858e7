// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package inject rewrites plain-text mentions of registered names in
// composed markdown into links to their anchors.
//
// Markdown is parsed with goldmark to find the text that is eligible for
// linking. Headings, code, existing links, images, autolinks, and raw HTML
// are never modified. Rewrites are applied at byte offsets, so every byte
// outside a linked mention is preserved.
package inject

import (
	"bytes"
	"log/slog"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/pdiddy/notebook-index/internal/anchor"
	"github.com/pdiddy/notebook-index/internal/metrics"
	"github.com/pdiddy/notebook-index/pkg/types"
)

// Result reports the rewritten body and what happened to the mentions.
type Result struct {
	Text string

	// Linked is the number of links added.
	Linked int

	// Skipped is the number of mentions left unlinked because the name had
	// no anchor target in the registry.
	Skipped int
}

// Injector holds the linking policy. It is safe for concurrent use; each
// call to NewSession returns independent state.
type Injector struct {
	scope    types.LinkScope
	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures an Injector.
type Option func(*Injector)

// WithScope sets how often a name is linked. Unknown scopes fall back to
// types.ScopeParagraph.
func WithScope(scope types.LinkScope) Option {
	return func(in *Injector) {
		switch scope {
		case types.ScopeParagraph, types.ScopeSection, types.ScopeDocument:
			in.scope = scope
		}
	}
}

// WithLogger sets the logger for skipped mentions.
func WithLogger(l *slog.Logger) Option {
	return func(in *Injector) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(in *Injector) {
		in.recorder = metrics.OrNoop(r)
	}
}

// New returns an Injector that links each name once per paragraph.
func New(opts ...Option) *Injector {
	in := &Injector{
		scope:    types.ScopeParagraph,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Inject links mentions of every name in reg within body.
func (in *Injector) Inject(body string, reg *anchor.Registry) Result {
	return in.NewSession(reg, nil).Inject(body)
}

// Session links a sequence of bodies against one completed registry.
// Under types.ScopeDocument, a name linked in one body is not linked again
// in later bodies of the same session.
type Session struct {
	in      *Injector
	reg     *anchor.Registry
	md      goldmark.Markdown
	matcher *matcher
	linked  map[string]bool
}

// NewSession prepares a session. vocabulary lists the names to look for;
// nil means every name in reg. Names outside reg are matched but never
// linked, and each such mention counts as skipped.
func (in *Injector) NewSession(reg *anchor.Registry, vocabulary []string) *Session {
	if vocabulary == nil {
		vocabulary = reg.Names()
	}
	return &Session{
		in:      in,
		reg:     reg,
		md:      goldmark.New(goldmark.WithExtensions(extension.Table)),
		matcher: newMatcher(vocabulary),
		linked:  make(map[string]bool),
	}
}

// Inject rewrites one body.
func (s *Session) Inject(body string) Result {
	if s.in.scope != types.ScopeDocument {
		s.linked = make(map[string]bool)
	}
	if body == "" || s.matcher.empty() {
		return Result{Text: body}
	}

	src := []byte(body)
	root := s.md.Parser().Parse(text.NewReader(src))
	headings := headingLines(src)

	var (
		res     Result
		edits   []edit
		block   gmast.Node
		scanned int
	)

	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Heading, *gmast.FencedCodeBlock, *gmast.CodeBlock, *gmast.HTMLBlock,
			*gmast.CodeSpan, *gmast.Link, *gmast.Image, *gmast.AutoLink, *gmast.RawHTML:
			return gmast.WalkSkipChildren, nil
		case *gmast.Text:
			seg := node.Segment
			if seg.Start < scanned || headings.contains(seg.Start) {
				return gmast.WalkContinue, nil
			}
			if b := enclosingBlock(node); b != block {
				block = b
				if s.in.scope == types.ScopeParagraph {
					s.linked = make(map[string]bool)
				}
			}
			scanned = textRun(node)
			edits = append(edits, s.scan(src, seg.Start, scanned, &res)...)
		}
		return gmast.WalkContinue, nil
	})

	res.Text = string(applyEdits(src, edits))
	s.in.recorder.AddLinksInjected(res.Linked)
	return res
}

// scan finds mentions in src[start:end] and returns the edits that link
// them. Matches are taken left to right; at each position the longest
// name wins.
func (s *Session) scan(src []byte, start, end int, res *Result) []edit {
	var edits []edit
	for i := start; i < end; {
		r, size := utf8.DecodeRune(src[i:])
		if !boundaryBefore(src, i) || !linkable(src, i) {
			i += size
			continue
		}
		name, j, ok := s.matcher.match(src, i, end, r)
		if !ok {
			i += size
			continue
		}

		if !s.linked[name] {
			if e, ok := s.link(name, src, i, j, res); ok {
				edits = append(edits, e)
			}
		}
		i = j
	}
	return edits
}

// link resolves name against the registry and returns the edit linking
// src[i:j]. A name without an anchor target is counted as skipped.
func (s *Session) link(name string, src []byte, i, j int, res *Result) (edit, bool) {
	entry, found := s.reg.Lookup(name)
	if !found || entry.TargetSectionID == "" {
		res.Skipped++
		s.in.recorder.IncInjectionSkipped()
		s.in.logger.Debug("hyperlink injection skipped", "name", name, "offset", i)
		return edit{}, false
	}
	s.linked[name] = true
	res.Linked++
	return edit{start: i, end: j, replacement: linkFor(src[i:j], entry.TargetSectionID)}, true
}

// Link renders an internal link to target, escaped the same way as
// injected links so that StripLinks recovers text exactly.
func Link(text, target string) string {
	return string(linkFor([]byte(text), target))
}

// linkFor renders a markdown link keeping the mention's original casing.
func linkFor(mention []byte, target string) []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	for _, c := range mention {
		if c == '[' || c == ']' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteString("](#")
	b.WriteString(target)
	b.WriteByte(')')
	return b.Bytes()
}

// textRun returns the end offset of the run of Text siblings starting at
// n whose segments are contiguous. The parser splits text at inline
// delimiters such as '_' even when they end up literal, so names
// containing them only match across the whole run.
func textRun(n *gmast.Text) int {
	stop := n.Segment.Stop
	for next := n.NextSibling(); next != nil; next = next.NextSibling() {
		t, ok := next.(*gmast.Text)
		if !ok || t.Segment.Start != stop {
			break
		}
		stop = t.Segment.Stop
	}
	return stop
}

// linkable reports whether a link may open at i. After '!' the link would
// read as an image, and after an unescaped backslash the bracket would be
// literal.
func linkable(src []byte, i int) bool {
	if i == 0 {
		return true
	}
	if src[i-1] == '!' {
		return false
	}
	backslashes := 0
	for k := i - 1; k >= 0 && src[k] == '\\'; k-- {
		backslashes++
	}
	return backslashes%2 == 0
}

// enclosingBlock returns the nearest block ancestor: the paragraph, text
// block, or table cell that owns an inline node.
func enclosingBlock(n gmast.Node) gmast.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == gmast.TypeBlock {
			return p
		}
	}
	return nil
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func boundaryBefore(src []byte, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(src[:i])
	return !isWordRune(r)
}

func boundaryAfter(src []byte, j int) bool {
	if j >= len(src) {
		return true
	}
	r, _ := utf8.DecodeRune(src[j:])
	return !isWordRune(r)
}

// matcher indexes the vocabulary by lowercased first rune, longest first.
type matcher struct {
	byFirst map[rune][]string
}

func newMatcher(vocabulary []string) *matcher {
	m := &matcher{byFirst: make(map[rune][]string)}
	seen := make(map[string]bool, len(vocabulary))
	for _, name := range vocabulary {
		if strings.TrimSpace(name) == "" || seen[name] {
			continue
		}
		seen[name] = true
		r, _ := utf8.DecodeRuneInString(name)
		key := unicode.ToLower(r)
		m.byFirst[key] = append(m.byFirst[key], name)
	}
	for _, names := range m.byFirst {
		sort.Slice(names, func(i, j int) bool {
			if len(names[i]) != len(names[j]) {
				return len(names[i]) > len(names[j])
			}
			return names[i] < names[j]
		})
	}
	return m
}

func (m *matcher) empty() bool {
	return len(m.byFirst) == 0
}

// match returns the longest name that matches src at i, ends at or before
// end, and is followed by a word boundary.
func (m *matcher) match(src []byte, i, end int, first rune) (string, int, bool) {
	for _, name := range m.byFirst[unicode.ToLower(first)] {
		j := i + len(name)
		if j > end {
			continue
		}
		if !bytes.EqualFold(src[i:j], []byte(name)) {
			continue
		}
		if !boundaryAfter(src, j) {
			continue
		}
		return name, j, true
	}
	return "", 0, false
}

// lineSet holds the byte ranges of lines that start with '#'.
type lineSet [][2]int

func (ls lineSet) contains(offset int) bool {
	for _, r := range ls {
		if offset >= r[0] && offset < r[1] {
			return true
		}
	}
	return false
}

// headingLines returns every line whose first non-space character, after
// at most three spaces, is '#'. Such lines are left alone even when
// markdown would not treat them as headings.
func headingLines(src []byte) lineSet {
	var ls lineSet
	start := 0
	for start <= len(src) {
		end := bytes.IndexByte(src[start:], '\n')
		if end < 0 {
			end = len(src)
		} else {
			end += start
		}
		line := src[start:end]
		trimmed := bytes.TrimLeft(line, " ")
		if len(line)-len(trimmed) <= 3 && len(trimmed) > 0 && trimmed[0] == '#' {
			ls = append(ls, [2]int{start, end})
		}
		if end == len(src) {
			break
		}
		start = end + 1
	}
	return ls
}
