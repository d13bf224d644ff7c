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

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries the songs table using plainto_tsquery and ts_rank, with
// ts_headline for snippets.
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

	where := "s.fts @@ plainto_tsquery('simple', $1)"
	args := []any{q.Text}
	if q.FilterTag != "" {
		where += " AND s.tags ? $2"
		args = append(args, q.FilterTag)
	}

	countSQL := "SELECT count(*) FROM songs s WHERE " + where
	dataSQL := fmt.Sprintf(`
		SELECT s.id, s.slug, s.title_en, s.title_zh, s.artist_en, s.artist_zh,
			ts_headline('simple', coalesce(s.title_zh, '') || ' ' || coalesce(s.title_en, ''),
				plainto_tsquery('simple', $1), 'MaxFragments=1,MaxWords=20') AS snippet
		FROM songs s
		WHERE %s
		ORDER BY ts_rank(s.fts, plainto_tsquery('simple', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

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
		if err := rows.Scan(&r.ID, &r.Slug, &r.TitleEN, &r.TitleZH, &r.ArtistEN, &r.ArtistZH, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all published songs for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SongRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, slug, title_en, title_zh, artist_en, artist_zh
		FROM songs
	`)
	if err != nil {
		return nil, fmt.Errorf("load songs: %w", err)
	}
	defer rows.Close()

	songs := make([]SongRecord, 0)
	for rows.Next() {
		var s SongRecord
		if err := rows.Scan(&s.ID, &s.Slug, &s.TitleEN, &s.TitleZH, &s.ArtistEN, &s.ArtistZH); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		songs = append(songs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return songs, nil
}
