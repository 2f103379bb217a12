// Package choices supplies option lists for choice fields, either from a
// form definition or from a SQLite table.
package choices

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"

	"github.com/matthewbaird/formengine/internal/form"
)

// Source provides option lists keyed by field name.
type Source interface {
	// Choices returns the options for one field, empty if it has none.
	Choices(ctx context.Context, field string) ([]form.Choice, error)

	// All returns every field's options.
	All(ctx context.Context) (map[string][]form.Choice, error)
}

// MemorySource serves fixed option lists.
type MemorySource struct {
	byField map[string][]form.Choice
}

// NewMemorySource copies the given lists.
func NewMemorySource(lists map[string][]form.Choice) *MemorySource {
	m := &MemorySource{byField: make(map[string][]form.Choice, len(lists))}
	for field, list := range lists {
		m.byField[field] = slices.Clone(list)
	}
	return m
}

func (m *MemorySource) Choices(_ context.Context, field string) ([]form.Choice, error) {
	return slices.Clone(m.byField[field]), nil
}

func (m *MemorySource) All(_ context.Context) (map[string][]form.Choice, error) {
	out := make(map[string][]form.Choice, len(m.byField))
	for _, field := range slices.Sorted(maps.Keys(m.byField)) {
		out[field] = slices.Clone(m.byField[field])
	}
	return out, nil
}

// SQLSource reads options from a choices table. Rows are ordered by
// position, then insertion order.
type SQLSource struct {
	db *sql.DB
}

// NewSQLSource wraps an open database.
func NewSQLSource(db *sql.DB) *SQLSource {
	return &SQLSource{db: db}
}

// Migrate creates the choices table if it does not exist.
func (s *SQLSource) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS choices (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			field    TEXT NOT NULL,
			value    TEXT NOT NULL,
			label    TEXT NOT NULL,
			choice_key TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			UNIQUE (field, value)
		);

		CREATE INDEX IF NOT EXISTS idx_choices_field ON choices (field, position);
	`)
	if err != nil {
		return fmt.Errorf("creating choices table: %w", err)
	}
	return nil
}

// Put appends options to a field, positioned after any existing ones.
func (s *SQLSource) Put(ctx context.Context, field string, list []form.Choice) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM choices WHERE field = ?`, field,
	).Scan(&next); err != nil {
		return fmt.Errorf("reading position for %q: %w", field, err)
	}
	for i, c := range list {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO choices (field, value, label, choice_key, position) VALUES (?, ?, ?, ?, ?)`,
			field, c.Value, c.Label, c.Key, next+i,
		); err != nil {
			return fmt.Errorf("inserting choice %q for %q: %w", c.Value, field, err)
		}
	}
	return tx.Commit()
}

func (s *SQLSource) Choices(ctx context.Context, field string) ([]form.Choice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT value, label, choice_key FROM choices WHERE field = ? ORDER BY position, id`, field)
	if err != nil {
		return nil, fmt.Errorf("querying choices for %q: %w", field, err)
	}
	defer rows.Close()

	list := []form.Choice{}
	for rows.Next() {
		var c form.Choice
		if err := rows.Scan(&c.Value, &c.Label, &c.Key); err != nil {
			return nil, fmt.Errorf("scanning choice: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (s *SQLSource) All(ctx context.Context) (map[string][]form.Choice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value, label, choice_key FROM choices ORDER BY field, position, id`)
	if err != nil {
		return nil, fmt.Errorf("querying choices: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]form.Choice)
	for rows.Next() {
		var field string
		var c form.Choice
		if err := rows.Scan(&field, &c.Value, &c.Label, &c.Key); err != nil {
			return nil, fmt.Errorf("scanning choice: %w", err)
		}
		out[field] = append(out[field], c)
	}
	return out, rows.Err()
}

// Merge layers sources: later sources replace a field's list entirely.
func Merge(ctx context.Context, sources ...Source) (map[string][]form.Choice, error) {
	out := make(map[string][]form.Choice)
	for _, src := range sources {
		all, err := src.All(ctx)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, all)
	}
	return out, nil
}
