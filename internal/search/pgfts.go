package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across items and action_items using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultItem {
		itemWhere := "i.fts @@ " + tsQuery
		if q.FilterRetroID != "" {
			itemWhere += fmt.Sprintf(" AND r.id::text = $%d", argN)
			args = append(args, q.FilterRetroID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'item'::text AS type, i.id::text, r.name AS title,
				ts_headline('english', coalesce(i.content, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.id::text AS retro_id, r.name AS retro_name, s.name AS section,
				ts_rank(i.fts, %s) AS rank
			FROM items i
			JOIN sections s ON s.id = i.section_id
			JOIN retro r ON r.id = s.retro_id
			WHERE %s`, tsQuery, tsQuery, itemWhere))
	}

	if q.FilterType == "" || q.FilterType == ResultAction {
		actionWhere := "a.fts @@ " + tsQuery
		if q.FilterRetroID != "" {
			actionWhere += fmt.Sprintf(" AND r.id::text = $%d", argN)
			args = append(args, q.FilterRetroID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'action'::text AS type, a.id::text, a.assigned_owner AS title,
				ts_headline('english', coalesce(a.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.id::text AS retro_id, r.name AS retro_name, s.name AS section,
				ts_rank(a.fts, %s) AS rank
			FROM action_items a
			JOIN sections s ON s.id = a.section_id
			JOIN retro r ON r.id = s.retro_id
			WHERE %s`, tsQuery, tsQuery, actionWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, retro_id, retro_name, section
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.RetroID, &r.RetroName, &r.Section); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ItemRecord, []ActionRecord, error) {
	itemRows, err := p.db.QueryContext(ctx, `
		SELECT i.id::text, i.content, s.name, r.id::text, r.name
		FROM items i
		JOIN sections s ON s.id = i.section_id
		JOIN retro r ON r.id = s.retro_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load items: %w", err)
	}
	defer itemRows.Close()

	items := make([]ItemRecord, 0)
	for itemRows.Next() {
		var rec ItemRecord
		if err := itemRows.Scan(&rec.ID, &rec.Content, &rec.Section, &rec.RetroID, &rec.RetroName); err != nil {
			return nil, nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, rec)
	}
	if err := itemRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate items: %w", err)
	}

	actionRows, err := p.db.QueryContext(ctx, `
		SELECT a.id::text, a.description, a.assigned_owner, a.priority, r.id::text, r.name
		FROM action_items a
		JOIN sections s ON s.id = a.section_id
		JOIN retro r ON r.id = s.retro_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load action items: %w", err)
	}
	defer actionRows.Close()

	actions := make([]ActionRecord, 0)
	for actionRows.Next() {
		var rec ActionRecord
		if err := actionRows.Scan(&rec.ID, &rec.Description, &rec.Owner, &rec.Priority, &rec.RetroID, &rec.RetroName); err != nil {
			return nil, nil, fmt.Errorf("scan action item: %w", err)
		}
		actions = append(actions, rec)
	}
	if err := actionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate action items: %w", err)
	}

	return items, actions, nil
}
