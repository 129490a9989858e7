// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package inject

import (
	"bytes"
	"sort"
)

// edit replaces src[start:end] with replacement.
type edit struct {
	start       int
	end         int
	replacement []byte
}

// applyEdits applies non-overlapping edits, given as offsets into the
// original source, and returns the new content. Bytes outside the edited
// ranges are copied unchanged.
func applyEdits(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	out.Grow(len(src) + len(edits)*16)
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out.Write(src[pos:e.start])
		out.Write(e.replacement)
		pos = e.end
	}
	out.Write(src[pos:])
	return out.Bytes()
}
