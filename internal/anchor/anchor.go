// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package anchor assigns collision-free anchor slugs to display names for
// a single index build.
package anchor

import (
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/notebook-index/pkg/types"
)

const (
	// DefaultMaxLength caps slugs when no option overrides it.
	DefaultMaxLength = 64

	// fallbackSlug is used for names with no letters or digits.
	fallbackSlug = "section"
)

// Registry maps display names to unique slugs. A Registry belongs to one
// build and is not safe for concurrent use.
type Registry struct {
	maxLength int
	logger    *slog.Logger

	entries map[string]*types.AnchorEntry
	owners  map[string]string // slug -> name
	order   []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxLength sets the slug length cap. Values below 8 are ignored.
func WithMaxLength(n int) Option {
	return func(r *Registry) {
		if n >= 8 {
			r.maxLength = n
		}
	}
}

// WithLogger sets the logger used to report collisions.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		maxLength: DefaultMaxLength,
		logger:    slog.Default(),
		entries:   make(map[string]*types.AnchorEntry),
		owners:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the slug for name, assigning one on first use. A slug
// already owned by a different name gets a numeric suffix (-2, -3, ...).
func (r *Registry) Register(name string) string {
	if e, ok := r.entries[name]; ok {
		return e.Slug
	}

	base := Slugify(name, r.maxLength)
	slug := base
	for n := 2; ; n++ {
		owner, taken := r.owners[slug]
		if !taken {
			break
		}
		if n == 2 {
			r.logger.Debug("anchor collision", "name", name, "slug", base, "owner", owner)
		}
		suffix := "-" + strconv.Itoa(n)
		slug = truncate(base, r.maxLength-len(suffix)) + suffix
	}

	r.entries[name] = &types.AnchorEntry{Name: name, Slug: slug}
	r.owners[slug] = name
	r.order = append(r.order, name)
	return slug
}

// RegisterSection registers name and binds it to its own section. The
// first section registered under a name keeps the binding; the returned
// bool is false for later sections with the same name.
func (r *Registry) RegisterSection(name string) (string, bool) {
	slug := r.Register(name)
	e := r.entries[name]
	if e.TargetSectionID != "" {
		return slug, false
	}
	e.TargetSectionID = slug
	return slug, true
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (types.AnchorEntry, bool) {
	e, ok := r.entries[name]
	if !ok {
		return types.AnchorEntry{}, false
	}
	return *e, true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Entries returns copies of all entries in registration order.
func (r *Registry) Entries() []types.AnchorEntry {
	out := make([]types.AnchorEntry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.entries[name])
	}
	return out
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.order)
}

// foldLatin maps a Latin letter carrying diacritics to its ASCII base, so
// "é" becomes "e". Letters of other scripts are returned unchanged because
// their combining marks distinguish words.
func foldLatin(c rune) rune {
	if c < utf8.RuneSelf || !unicode.Is(unicode.Latin, c) {
		return c
	}
	base, _ := utf8.DecodeRuneInString(norm.NFD.String(string(c)))
	if base < utf8.RuneSelf {
		return base
	}
	return c
}

// Slugify lowercases name, folds Latin diacritics to ASCII, collapses every
// run of characters other than letters, digits, and marks into one hyphen,
// trims hyphens from both ends, and truncates to maxLength bytes at a
// hyphen boundary. Letters of non-Latin scripts are kept.
func Slugify(name string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var b strings.Builder
	pendingHyphen := false
	for _, c := range strings.ToLower(norm.NFC.String(name)) {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(foldLatin(c))
		case unicode.IsMark(c) && b.Len() > 0 && !pendingHyphen:
			// Marks that survive NFC belong to the preceding letter.
			if !unicode.Is(unicode.Latin, lastRune(b.String())) {
				b.WriteRune(c)
			}
		default:
			pendingHyphen = true
		}
	}

	slug := truncate(b.String(), maxLength)
	if slug == "" {
		return fallbackSlug
	}
	return slug
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

// truncate shortens slug to at most n bytes without splitting a rune,
// cutting at the last hyphen inside the limit when there is one.
func truncate(slug string, n int) string {
	if n < 1 {
		n = 1
	}
	if len(slug) <= n {
		return slug
	}
	for n > 0 && !utf8.RuneStart(slug[n]) {
		n--
	}
	cut := slug[:n]
	if slug[n] == '-' {
		return cut
	}
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, "-")
}
