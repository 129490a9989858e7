// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/notebook-index/pkg/types"
)

// FileRenderer writes the markdown and its anchor map to a directory:
// <format>-index.md plus <format>-index.anchors.yaml (or .json).
type FileRenderer struct {
	Dir          string
	AnchorFormat types.AnchorFormat
}

// NewFileRenderer returns a FileRenderer for cfg.
func NewFileRenderer(cfg types.ExportConfig) *FileRenderer {
	return &FileRenderer{Dir: cfg.OutputDir, AnchorFormat: cfg.AnchorFormat}
}

// Render writes the hyperlinked form.
func (f *FileRenderer) Render(_ context.Context, doc types.RenderedDocument) (types.Artifact, error) {
	return f.write(doc, string(doc.Format)+"-index")
}

// WriteFallback writes the link-free form as <format>-index-fallback.md.
func (f *FileRenderer) WriteFallback(doc types.RenderedDocument) (types.Artifact, error) {
	return f.write(doc, string(doc.Format)+"-index-fallback")
}

func (f *FileRenderer) write(doc types.RenderedDocument, base string) (types.Artifact, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return types.Artifact{}, fmt.Errorf("creating output directory: %w", err)
	}

	path := filepath.Join(f.Dir, base+".md")
	if err := os.WriteFile(path, []byte(doc.Markdown), 0o644); err != nil {
		return types.Artifact{}, fmt.Errorf("writing %s: %w", path, err)
	}

	if len(doc.Anchors) > 0 {
		if err := f.writeAnchors(doc.Anchors, base); err != nil {
			return types.Artifact{}, err
		}
	}

	return types.Artifact{Location: path, Bytes: int64(len(doc.Markdown))}, nil
}

func (f *FileRenderer) writeAnchors(anchors []types.AnchorEntry, base string) error {
	var (
		data []byte
		ext  string
		err  error
	)
	switch f.AnchorFormat {
	case types.AnchorsJSON:
		data, err = json.MarshalIndent(anchors, "", "  ")
		ext = ".anchors.json"
	default:
		data, err = yaml.Marshal(anchors)
		ext = ".anchors.yaml"
	}
	if err != nil {
		return fmt.Errorf("marshaling anchors: %w", err)
	}

	path := filepath.Join(f.Dir, base+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
