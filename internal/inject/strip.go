// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inject

import (
	"regexp"
	"strings"
)

// internalLinkPattern matches links to in-document anchors: [text](#slug).
var internalLinkPattern = regexp.MustCompile(`\[((?:\\.|[^\[\]\\])*)\]\(#([\p{L}\p{M}\p{N}-]+)\)`)

var linkTextUnescaper = strings.NewReplacer(`\[`, `[`, `\]`, `]`, `\\`, `\`)

// StripLinks replaces every in-document link with its unescaped text.
// Links to other destinations are left alone.
func StripLinks(markdown string) string {
	return internalLinkPattern.ReplaceAllStringFunc(markdown, func(m string) string {
		sub := internalLinkPattern.FindStringSubmatch(m)
		return linkTextUnescaper.Replace(sub[1])
	})
}
