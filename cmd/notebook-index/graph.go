// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/notebook-index/internal/graphstore"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Manage the local graph store (ingest, import)",
	Long: `Graph manages the SQLite store the index builds read from. Graph
exports are YAML files with notebooks, entities, and relationships.`,
}

// --- ingest subcommand ---

var graphIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest graph exports from the graph directory",
	Long: `Ingest reads every *.yaml file in the graph directory and loads it into
the SQLite store. Unchanged files are skipped on subsequent runs; a
changed file replaces everything it imported before.`,
	RunE: runGraphIngest,
}

func runGraphIngest(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	store, err := graphstore.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d graph file(s) failed ingest", summary.Failed)
	}
	return nil
}

// --- import subcommand ---

var graphImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a single graph export from any path",
	Args:  cobra.ExactArgs(1),
	RunE:  runGraphImport,
}

func runGraphImport(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	g, err := graphstore.LoadFile(args[0])
	if err != nil {
		return err
	}

	store, err := graphstore.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	name := filepath.Base(args[0])
	if err := store.Import(cmd.Context(), name, g); err != nil {
		return err
	}
	fmt.Printf("imported %s (%d entities, %d relationships)\n", name, len(g.Entities), len(g.Relationships))
	return nil
}

func init() {
	graphCmd.PersistentFlags().String("graph-dir", "", "directory of YAML graph exports (default graph/)")
	_ = viper.BindPFlag("store.graph_dir", graphCmd.PersistentFlags().Lookup("graph-dir"))

	graphCmd.AddCommand(graphIngestCmd)
	graphCmd.AddCommand(graphImportCmd)

	rootCmd.AddCommand(graphCmd)
}
