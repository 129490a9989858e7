// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package graphstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/notebook-index/pkg/types"
)

const entityColumns = `e.id, e.name, e.type, e.observations,
	MAX(COALESCE(e.reference_count, 0),
		(SELECT COUNT(*) FROM mentions m WHERE m.entity_id = e.id))`

const mentionColumns = `m.entity_id, n.id, n.name, p.id, p.number, p.title
	FROM mentions m
	JOIN pages p ON p.id = m.page_id
	JOIN notebooks n ON n.id = p.notebook_id`

// Entities lists entities whose reference count (the larger of the stored
// count and the number of pages mentioning them) meets filter.MinReferences.
func (s *Store) Entities(ctx context.Context, filter types.EntityFilter) ([]types.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM (SELECT `+entityColumns+` AS refs FROM entities e)
		 WHERE refs >= ? ORDER BY id`, filter.MinReferences)
	if err != nil {
		return nil, classify(fmt.Errorf("querying entities: %w", err))
	}
	defer rows.Close()
	return scanEntities(rows)
}

func (s *Store) EntitiesByID(ctx context.Context, ids []string) ([]types.Entity, error) {
	var out []types.Entity
	err := chunked(ids, func(batch []string) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+entityColumns+` FROM entities e WHERE e.id IN (`+placeholders(len(batch))+`) ORDER BY e.id`,
			args(batch)...)
		if err != nil {
			return fmt.Errorf("querying entities by id: %w", err)
		}
		defer rows.Close()
		got, err := scanEntities(rows)
		out = append(out, got...)
		return err
	})
	return out, classify(err)
}

func (s *Store) Relationships(ctx context.Context, entityIDs []string) ([]types.Relationship, error) {
	seen := make(map[[3]string]bool)
	var out []types.Relationship
	err := chunked(entityIDs, func(batch []string) error {
		in := placeholders(len(batch))
		q := `SELECT source_id, target_id, type, properties FROM relationships
			WHERE source_id IN (` + in + `) OR target_id IN (` + in + `)
			ORDER BY source_id, target_id, type`
		rows, err := s.db.QueryContext(ctx, q, append(args(batch), args(batch)...)...)
		if err != nil {
			return fmt.Errorf("querying relationships: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r types.Relationship
			var props sql.NullString
			if err := rows.Scan(&r.SourceID, &r.TargetID, &r.Type, &props); err != nil {
				return fmt.Errorf("scanning relationship: %w", err)
			}
			key := [3]string{r.SourceID, r.TargetID, r.Type}
			if seen[key] {
				continue
			}
			seen[key] = true
			if props.Valid && props.String != "" && props.String != "null" {
				if err := json.Unmarshal([]byte(props.String), &r.Properties); err != nil {
					return fmt.Errorf("decoding properties of %s-%s->%s: %w", r.SourceID, r.Type, r.TargetID, err)
				}
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, classify(err)
}

func (s *Store) Sources(ctx context.Context, entityIDs []string) ([]types.SourceReference, error) {
	var out []types.SourceReference
	err := chunked(entityIDs, func(batch []string) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+mentionColumns+` WHERE m.entity_id IN (`+placeholders(len(batch))+`)
			 ORDER BY m.entity_id, n.name, p.number`,
			args(batch)...)
		if err != nil {
			return fmt.Errorf("querying sources: %w", err)
		}
		defer rows.Close()
		got, err := scanMentions(rows)
		out = append(out, got...)
		return err
	})
	return out, classify(err)
}

// ConnectionCounts counts each relationship once per distinct endpoint, so
// a self-loop counts once.
func (s *Store) ConnectionCounts(ctx context.Context, minConnections int) ([]types.ConnectionCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, COUNT(*) AS n FROM (
			SELECT source_id AS entity_id FROM relationships
			UNION ALL
			SELECT target_id FROM relationships WHERE target_id != source_id
		 ) GROUP BY entity_id HAVING n >= ? ORDER BY entity_id`, minConnections)
	if err != nil {
		return nil, classify(fmt.Errorf("querying connection counts: %w", err))
	}
	defer rows.Close()

	var out []types.ConnectionCount
	for rows.Next() {
		var c types.ConnectionCount
		if err := rows.Scan(&c.EntityID, &c.Count); err != nil {
			return nil, classify(fmt.Errorf("scanning connection count: %w", err))
		}
		out = append(out, c)
	}
	return out, classify(rows.Err())
}

func (s *Store) Notebooks(ctx context.Context) ([]types.Notebook, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM notebooks ORDER BY name, id`)
	if err != nil {
		return nil, classify(fmt.Errorf("querying notebooks: %w", err))
	}
	defer rows.Close()

	var out []types.Notebook
	for rows.Next() {
		var nb types.Notebook
		if err := rows.Scan(&nb.ID, &nb.Name); err != nil {
			return nil, classify(fmt.Errorf("scanning notebook: %w", err))
		}
		out = append(out, nb)
	}
	return out, classify(rows.Err())
}

func (s *Store) Pages(ctx context.Context, notebookID string) ([]types.Page, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, notebook_id, COALESCE(number, 0), COALESCE(title, '') FROM pages
		 WHERE notebook_id = ? ORDER BY number, id`, notebookID)
	if err != nil {
		return nil, classify(fmt.Errorf("querying pages: %w", err))
	}
	defer rows.Close()

	var out []types.Page
	for rows.Next() {
		var p types.Page
		if err := rows.Scan(&p.ID, &p.NotebookID, &p.Number, &p.Title); err != nil {
			return nil, classify(fmt.Errorf("scanning page: %w", err))
		}
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

func (s *Store) NotebookMentions(ctx context.Context, notebookID string) ([]types.SourceReference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+mentionColumns+` WHERE n.id = ? ORDER BY p.number, m.entity_id`, notebookID)
	if err != nil {
		return nil, classify(fmt.Errorf("querying notebook mentions: %w", err))
	}
	defer rows.Close()
	out, err := scanMentions(rows)
	return out, classify(err)
}

// rowScanner is the part of *sql.Rows the scan helpers use.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanEntities reads entity rows. Errors are classified, so a busy
// database met while iterating is retried like one met by the query.
func scanEntities(rows rowScanner) ([]types.Entity, error) {
	var out []types.Entity
	for rows.Next() {
		var e types.Entity
		var typ, obs sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &typ, &obs, &e.ReferenceCount); err != nil {
			return nil, classify(fmt.Errorf("scanning entity: %w", err))
		}
		e.Type = types.EntityType(typ.String)
		if obs.Valid && obs.String != "" && obs.String != "null" {
			if err := json.Unmarshal([]byte(obs.String), &e.Observations); err != nil {
				return nil, fmt.Errorf("decoding observations of %s: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, classify(rows.Err())
}

func scanMentions(rows rowScanner) ([]types.SourceReference, error) {
	var out []types.SourceReference
	for rows.Next() {
		var ref types.SourceReference
		var number sql.NullInt64
		var title sql.NullString
		if err := rows.Scan(&ref.EntityID, &ref.NotebookID, &ref.NotebookName, &ref.PageID, &number, &title); err != nil {
			return nil, classify(fmt.Errorf("scanning mention: %w", err))
		}
		ref.PageNumber = int(number.Int64)
		ref.PageTitle = title.String
		out = append(out, ref)
	}
	return out, classify(rows.Err())
}

// chunked calls fn on successive slices of ids no longer than maxParams.
func chunked(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
