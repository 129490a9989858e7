//go:build mage

// Package main contains Mage build targets for notebook-index developer tooling.
package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the index builds expect.
var projectDirs = []string{
	"graph",
	"index",
	"output",
}

// Init creates the directories for graph exports, the store, and output.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "notebook-index"
	cmdPkg  = "./cmd/notebook-index"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests. The SQLite store needs cgo.
func Test() error {
	return sh.RunWithV(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "./...")
}

// Stats prints project metrics: Go production/test lines, graph exports
// waiting in graph/, and the indexes last written to output/.
func Stats() error {
	prodLines, testLines, err := countGoLines(".")
	if err != nil {
		return err
	}
	exports, exportBytes, err := sizeOf("graph", "*.yaml", "*.yml")
	if err != nil {
		return err
	}
	indexes, indexBytes, err := sizeOf("output", "*-index.md")
	if err != nil {
		return err
	}
	links, err := countLinks("output", "*-index.md")
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Graph exports:                  %d (%d bytes)\n", exports, exportBytes)
	fmt.Printf("Hyperlinked indexes:            %d (%d bytes, %d links)\n", indexes, indexBytes, links)
	return nil
}

// countGoLines counts non-blank lines in .go files, split into production
// and test files. Directories the go tool ignores (_ or . prefixed) are
// skipped.
func countGoLines(root string) (prod, test int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range bytes.Split(data, []byte("\n")) {
			if len(bytes.TrimSpace(line)) > 0 {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			test += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, test, err
}

// matching lists the files in dir matching any pattern. A missing dir has
// no files.
func matching(dir string, patterns ...string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		m, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	return files, nil
}

// sizeOf returns the number and total size of the matching files in dir.
func sizeOf(dir string, patterns ...string) (count int, size int64, err error) {
	files, err := matching(dir, patterns...)
	if err != nil {
		return 0, 0, err
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return 0, 0, fmt.Errorf("stat %s: %w", f, err)
		}
		count++
		size += info.Size()
	}
	return count, size, nil
}

// countLinks counts in-document links, "](#", across the matching files.
func countLinks(dir string, patterns ...string) (int, error) {
	files, err := matching(dir, patterns...)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return 0, fmt.Errorf("reading %s: %w", f, err)
		}
		total += bytes.Count(data, []byte("](#"))
	}
	return total, nil
}
