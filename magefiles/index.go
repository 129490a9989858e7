//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Index groups targets that run the CLI against the project directories.
type Index mg.Namespace

func cli(args ...string) error {
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Ingest loads graph/*.yaml into index/graph.db, skipping unchanged files.
func (Index) Ingest() error {
	mg.Deps(Init, Build)
	return cli("graph", "ingest")
}

// All ingests the graph and builds the four indexes into output/.
func (Index) All() error {
	mg.SerialDeps(Index{}.Ingest)
	return cli("build", "all")
}

// Metrics builds all indexes and writes Prometheus metrics to output/metrics.prom.
func (Index) Metrics() error {
	mg.SerialDeps(Index{}.Ingest)
	return cli("build", "all", "--metrics-textfile", filepath.Join("output", "metrics.prom"))
}
