package supabase

import (
	"context"
	"fmt"

	"github.com/supabase-community/postgrest-go"

	"github.com/creastat/chatcore/source"
)

const defaultTable = "documents"

// Table reads live rows of a documents table, keyed by URL and ordered
// by creation time.
type Table struct {
	query func(table string) *postgrest.QueryBuilder
	table string
}

// NewTable creates a table source.
func NewTable(cfg Config) (*Table, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	return &Table{query: client.From, table: table}, nil
}

// List implements source.Source.
func (t *Table) List(ctx context.Context, limit int) ([]string, error) {
	q := t.query(t.table).
		Select("url", "", false).
		Eq("is_deleted", "false").
		Order("created_at", &postgrest.OrderOpts{Ascending: true})
	if limit > 0 {
		q = q.Limit(limit, "")
	}

	var rows []Document
	if _, err := q.ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.URL != "" {
			keys = append(keys, row.URL)
		}
	}
	return keys, nil
}

// Fetch implements source.Source.
func (t *Table) Fetch(ctx context.Context, key string) (string, error) {
	var rows []Document
	_, err := t.query(t.table).
		Select("content", "", false).
		Eq("url", key).
		Eq("is_deleted", "false").
		Limit(1, "").
		ExecuteTo(&rows)
	if err != nil {
		return "", fmt.Errorf("failed to get document: %w", err)
	}
	if len(rows) == 0 {
		return "", source.ErrNotFound
	}
	return rows[0].Content, nil
}

// Compile-time check that Table implements Source
var _ source.Source = (*Table)(nil)
