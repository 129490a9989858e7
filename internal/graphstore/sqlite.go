// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/pdiddy/notebook-index/pkg/types"
)

const (
	defaultDBPath = "index/graph.db"

	// maxParams keeps IN lists well under SQLite's variable limit.
	maxParams = 500
)

// Store is a GraphStore backed by SQLite.
type Store struct {
	db       *sql.DB
	graphDir string
}

// NewStore opens or creates the graph database at cfg.DBPath and creates
// the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, graphDir: cfg.GraphDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS notebooks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			source_file TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			notebook_id TEXT NOT NULL REFERENCES notebooks(id) ON DELETE CASCADE,
			number INTEGER,
			title TEXT,
			source_file TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT,
			observations TEXT,
			reference_count INTEGER,
			source_file TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			type TEXT NOT NULL,
			properties TEXT,
			source_file TEXT,
			PRIMARY KEY (source_id, target_id, type)
		)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			entity_id TEXT NOT NULL,
			page_id TEXT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
			PRIMARY KEY (entity_id, page_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_notebook ON pages(notebook_id)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_page ON mentions(page_id)`,
		`CREATE TABLE IF NOT EXISTS import_status (
			file TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// classify marks busy and locked database errors as transient so the
// query engine retries them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %v", types.ErrTransient, err)
	}
	return err
}

// IngestSummary holds counts from a graph ingest run.
type IngestSummary struct {
	Imported int
	Updated  int
	Skipped  int
	Failed   int
}

// Total returns the number of files processed.
func (s IngestSummary) Total() int {
	return s.Imported + s.Updated + s.Skipped + s.Failed
}

// Ingest reads graph exports (*.yaml) from the graph directory and loads
// them into the database. Files whose modification time matches the last
// import are skipped; changed files replace what they imported before.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	entries, err := os.ReadDir(s.graphDir)
	if err != nil {
		return IngestSummary{}, fmt.Errorf("reading graph directory %s: %w", s.graphDir, err)
	}

	var summary IngestSummary

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}

		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var storedModTime string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM import_status WHERE file = ?`, name,
		).Scan(&storedModTime)

		if err == nil && storedModTime == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		g, err := LoadFile(filepath.Join(s.graphDir, name))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if err := s.importFile(ctx, name, g, modTime, isUpdate); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d entities, %d relationships)\n", name, len(g.Entities), len(g.Relationships))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "imported %s (%d entities, %d relationships)\n", name, len(g.Entities), len(g.Relationships))
			summary.Imported++
		}
	}

	fmt.Fprintf(w, "\nimported: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Imported, summary.Updated, summary.Skipped, summary.Failed)

	return summary, nil
}

// Import loads one graph export under the given file key, replacing
// anything previously imported under that key.
func (s *Store) Import(ctx context.Context, file string, g *GraphFile) error {
	return s.importFile(ctx, file, g, time.Now().UTC().Format(time.RFC3339Nano), true)
}

func (s *Store) importFile(ctx context.Context, file string, g *GraphFile, modTime string, isUpdate bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if isUpdate {
		for _, table := range []string{"relationships", "pages", "notebooks", "entities"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE source_file = ?`, file); err != nil {
				return fmt.Errorf("deleting old %s: %w", table, err)
			}
		}
	}

	for _, e := range g.Entities {
		obsJSON, _ := json.Marshal(e.Observations)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, name, type, observations, reference_count, source_file)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				name=excluded.name, type=excluded.type, observations=excluded.observations,
				reference_count=excluded.reference_count, source_file=excluded.source_file`,
			e.ID, e.Name, string(e.Type), string(obsJSON), e.ReferenceCount, file,
		)
		if err != nil {
			return fmt.Errorf("upserting entity %s: %w", e.ID, err)
		}
	}

	for _, nb := range g.Notebooks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO notebooks (id, name, source_file) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name=excluded.name, source_file=excluded.source_file`,
			nb.ID, nb.Name, file,
		)
		if err != nil {
			return fmt.Errorf("upserting notebook %s: %w", nb.ID, err)
		}
		for _, p := range nb.Pages {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pages (id, notebook_id, number, title, source_file) VALUES (?, ?, ?, ?, ?)
				 ON CONFLICT(id) DO UPDATE SET
					notebook_id=excluded.notebook_id, number=excluded.number,
					title=excluded.title, source_file=excluded.source_file`,
				p.ID, nb.ID, p.Number, p.Title, file,
			)
			if err != nil {
				return fmt.Errorf("upserting page %s: %w", p.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM mentions WHERE page_id = ?`, p.ID); err != nil {
				return fmt.Errorf("clearing mentions of page %s: %w", p.ID, err)
			}
			for _, id := range p.Mentions {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO mentions (entity_id, page_id) VALUES (?, ?)`, id, p.ID,
				); err != nil {
					return fmt.Errorf("inserting mention %s on page %s: %w", id, p.ID, err)
				}
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO relationships (source_id, target_id, type, properties, source_file)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range g.Relationships {
		propsJSON, _ := json.Marshal(r.Properties)
		if _, err := stmt.ExecContext(ctx, r.SourceID, r.TargetID, r.Type, string(propsJSON), file); err != nil {
			return fmt.Errorf("inserting relationship %s-%s->%s: %w", r.SourceID, r.Type, r.TargetID, err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO import_status (file, file_mod_time) VALUES (?, ?)
		 ON CONFLICT(file) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
		file, modTime,
	)
	if err != nil {
		return fmt.Errorf("updating import status: %w", err)
	}

	return tx.Commit()
}
