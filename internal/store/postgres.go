package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	VoteOriginalLine = "original-line"
	VoteTranslation  = "translation"
	VoteComment      = "comment"
)

// ErrDuplicateVote is returned when a concurrent insert races the toggle's
// existence check and the unique (actor, kind, target) index rejects the row.
var ErrDuplicateVote = errors.New("duplicate vote")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const songColumns = `id, slug, title_en, title_zh, artist_en, artist_zh, cover_url, youtube_url, credits,
	lyrics_chinese, lyrics_pinyin, lyrics_english, tags, submitted_by, created_at, updated_at`

func scanSong(row interface{ Scan(...any) error }) (Song, error) {
	var item Song
	var tags []byte
	err := row.Scan(
		&item.ID,
		&item.Slug,
		&item.TitleEN,
		&item.TitleZH,
		&item.ArtistEN,
		&item.ArtistZH,
		&item.CoverURL,
		&item.YoutubeURL,
		&item.Credits,
		&item.LyricsChinese,
		&item.LyricsPinyin,
		&item.LyricsEnglish,
		&tags,
		&item.SubmittedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return Song{}, err
	}
	item.Tags = tagsFromJSON(tags)
	return item, nil
}

func (s *PostgresStore) ListSongs(ctx context.Context) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	items := make([]Song, 0)
	for rows.Next() {
		item, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListSongsByArtist(ctx context.Context, artist string) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`
		FROM songs
		WHERE artist_en=$1 OR artist_zh=$1
		ORDER BY created_at DESC
	`, artist)
	if err != nil {
		return nil, fmt.Errorf("list songs by artist: %w", err)
	}
	defer rows.Close()

	items := make([]Song, 0)
	for rows.Next() {
		item, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSongBySlug(ctx context.Context, slug string) (Song, error) {
	return scanSong(s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE slug=$1`, slug))
}

func (s *PostgresStore) GetSongByID(ctx context.Context, songID string) (Song, error) {
	return scanSong(s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id=$1`, songID))
}

func (s *PostgresStore) InsertSong(ctx context.Context, item Song) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, slug, title_en, title_zh, artist_en, artist_zh, cover_url, youtube_url, credits,
			lyrics_chinese, lyrics_pinyin, lyrics_english, tags, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		item.ID, item.Slug, item.TitleEN, item.TitleZH, item.ArtistEN, item.ArtistZH,
		item.CoverURL, item.YoutubeURL, item.Credits,
		item.LyricsChinese, item.LyricsPinyin, item.LyricsEnglish,
		tagsToJSON(item.Tags), item.SubmittedBy,
	)
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

// UpdateSongContent overwrites the reviewable content of a song. The id,
// slug, and submitted_by columns are left untouched so attached
// translations, comments, and votes keep their anchors.
func (s *PostgresStore) UpdateSongContent(ctx context.Context, item Song) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET title_en=$2, title_zh=$3, artist_en=$4, artist_zh=$5, cover_url=$6, youtube_url=$7, credits=$8,
			lyrics_chinese=$9, lyrics_pinyin=$10, lyrics_english=$11, tags=$12, updated_at=NOW()
		WHERE id=$1
	`,
		item.ID, item.TitleEN, item.TitleZH, item.ArtistEN, item.ArtistZH,
		item.CoverURL, item.YoutubeURL, item.Credits,
		item.LyricsChinese, item.LyricsPinyin, item.LyricsEnglish,
		tagsToJSON(item.Tags),
	)
	if err != nil {
		return fmt.Errorf("update song content: %w", err)
	}
	return nil
}

const submissionColumns = `id, song_id, status, slug, title_en, title_zh, artist_en, artist_zh, cover_url,
	youtube_url, credits, lyrics_chinese, lyrics_pinyin, lyrics_english, tags, submitted_by, created_at`

func scanSubmission(row interface{ Scan(...any) error }) (Submission, error) {
	var item Submission
	var tags []byte
	err := row.Scan(
		&item.ID,
		&item.SongID,
		&item.Status,
		&item.Slug,
		&item.TitleEN,
		&item.TitleZH,
		&item.ArtistEN,
		&item.ArtistZH,
		&item.CoverURL,
		&item.YoutubeURL,
		&item.Credits,
		&item.LyricsChinese,
		&item.LyricsPinyin,
		&item.LyricsEnglish,
		&tags,
		&item.SubmittedBy,
		&item.CreatedAt,
	)
	if err != nil {
		return Submission{}, err
	}
	item.Tags = tagsFromJSON(tags)
	return item, nil
}

func (s *PostgresStore) InsertSubmission(ctx context.Context, item Submission) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO song_submissions (id, song_id, status, slug, title_en, title_zh, artist_en, artist_zh,
			cover_url, youtube_url, credits, lyrics_chinese, lyrics_pinyin, lyrics_english, tags, submitted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		item.ID, item.SongID, item.Status, item.Slug, item.TitleEN, item.TitleZH,
		item.ArtistEN, item.ArtistZH, item.CoverURL, item.YoutubeURL, item.Credits,
		item.LyricsChinese, item.LyricsPinyin, item.LyricsEnglish,
		tagsToJSON(item.Tags), item.SubmittedBy,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, submissionID string) (Submission, error) {
	return scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM song_submissions WHERE id=$1`, submissionID))
}

func (s *PostgresStore) ListPendingSubmissions(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM song_submissions
		WHERE status IN ($1, $2)
		ORDER BY created_at DESC
	`, SubmissionPending, SubmissionPendingEdit)
	if err != nil {
		return nil, fmt.Errorf("list pending submissions: %w", err)
	}
	defer rows.Close()

	items := make([]Submission, 0)
	for rows.Next() {
		item, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteSubmission(ctx context.Context, submissionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM song_submissions WHERE id=$1`, submissionID)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertTranslation(ctx context.Context, item Translation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO line_translations (id, song_id, line_index, content, author_name, author_key)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.SongID, item.LineIndex, item.Content, item.Author, item.AuthorKey)
	if err != nil {
		return fmt.Errorf("insert translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTranslation(ctx context.Context, translationID string) (Translation, error) {
	var item Translation
	err := s.db.QueryRowContext(ctx, `
		SELECT id, song_id, line_index, content, author_name, author_key, votes, created_at
		FROM line_translations
		WHERE id=$1
	`, translationID).Scan(
		&item.ID, &item.SongID, &item.LineIndex, &item.Content,
		&item.Author, &item.AuthorKey, &item.Votes, &item.CreatedAt,
	)
	if err != nil {
		return Translation{}, err
	}
	return item, nil
}

// ListLineTranslations returns translations ranked by votes, oldest first on
// ties. The ordering is computed here on every read; the votes column is a
// cache of the ledger and never a persisted rank.
func (s *PostgresStore) ListLineTranslations(ctx context.Context, songID string, lineIndex int) ([]Translation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, song_id, line_index, content, author_name, author_key, votes, created_at
		FROM line_translations
		WHERE song_id=$1 AND line_index=$2
		ORDER BY votes DESC, created_at ASC, id ASC
	`, songID, lineIndex)
	if err != nil {
		return nil, fmt.Errorf("list line translations: %w", err)
	}
	defer rows.Close()

	items := make([]Translation, 0)
	for rows.Next() {
		var item Translation
		if err := rows.Scan(
			&item.ID, &item.SongID, &item.LineIndex, &item.Content,
			&item.Author, &item.AuthorKey, &item.Votes, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteTranslation(ctx context.Context, translationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM line_translations WHERE id=$1`, translationID)
	if err != nil {
		return fmt.Errorf("delete translation: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, song_id, line_index, translation_id, parent_id, content, author_name, author_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, item.ID, item.SongID, item.LineIndex, item.TranslationID, item.ParentID,
		item.Content, item.Author, item.AuthorKey)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var item Comment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, song_id, line_index, translation_id, parent_id, content, author_name, author_key, votes, created_at
		FROM comments
		WHERE id=$1
	`, commentID).Scan(
		&item.ID, &item.SongID, &item.LineIndex, &item.TranslationID, &item.ParentID,
		&item.Content, &item.Author, &item.AuthorKey, &item.Votes, &item.CreatedAt,
	)
	if err != nil {
		return Comment{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListSongComments(ctx context.Context, songID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, song_id, line_index, translation_id, parent_id, content, author_name, author_key, votes, created_at
		FROM comments
		WHERE song_id=$1
		ORDER BY created_at ASC, id ASC
	`, songID)
	if err != nil {
		return nil, fmt.Errorf("list song comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(
			&item.ID, &item.SongID, &item.LineIndex, &item.TranslationID, &item.ParentID,
			&item.Content, &item.Author, &item.AuthorKey, &item.Votes, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ToggleVote removes the actor's vote if one exists, otherwise records it.
// Returns whether the actor holds a vote after the call. The denormalized
// counter on the target row is adjusted alongside the ledger write; the
// ledger stays authoritative if the two ever drift.
func (s *PostgresStore) ToggleVote(ctx context.Context, actorKey, targetKind, targetID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM votes
		WHERE actor_key=$1 AND target_kind=$2 AND target_id=$3
	`, actorKey, targetKind, targetID)
	if err != nil {
		return false, fmt.Errorf("remove vote: %w", err)
	}
	if removed, err := result.RowsAffected(); err == nil && removed > 0 {
		if err := s.adjustVoteCounter(ctx, targetKind, targetID, -1); err != nil {
			return false, err
		}
		return false, nil
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO votes (actor_key, target_kind, target_id)
		VALUES ($1, $2, $3)
	`, actorKey, targetKind, targetID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return true, ErrDuplicateVote
		}
		return false, fmt.Errorf("record vote: %w", err)
	}
	if err := s.adjustVoteCounter(ctx, targetKind, targetID, 1); err != nil {
		return true, err
	}
	return true, nil
}

// adjustVoteCounter updates the cached vote count on the voted row.
// Original-line votes have no backing row, their count is always read from
// the ledger.
func (s *PostgresStore) adjustVoteCounter(ctx context.Context, targetKind, targetID string, delta int) error {
	var query string
	switch targetKind {
	case VoteTranslation:
		query = `UPDATE line_translations SET votes = GREATEST(votes + $2, 0) WHERE id=$1`
	case VoteComment:
		query = `UPDATE comments SET votes = GREATEST(votes + $2, 0) WHERE id=$1`
	default:
		return nil
	}
	if _, err := s.db.ExecContext(ctx, query, targetID, delta); err != nil {
		return fmt.Errorf("adjust vote counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasVoted(ctx context.Context, actorKey, targetKind, targetID string) (bool, error) {
	var voted bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM votes WHERE actor_key=$1 AND target_kind=$2 AND target_id=$3)
	`, actorKey, targetKind, targetID).Scan(&voted)
	if err != nil {
		return false, fmt.Errorf("check vote: %w", err)
	}
	return voted, nil
}

func (s *PostgresStore) CountVotes(ctx context.Context, targetKind, targetID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM votes WHERE target_kind=$1 AND target_id=$2
	`, targetKind, targetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) InsertModerationLog(ctx context.Context, entry ModerationLogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_log (submission_id, song_id, action, moderator, note)
		VALUES ($1, $2, $3, $4, $5)
	`, entry.SubmissionID, entry.SongID, entry.Action, entry.Moderator, entry.Note)
	if err != nil {
		return fmt.Errorf("insert moderation log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListModerationLog(ctx context.Context, limit int) ([]ModerationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, song_id, action, moderator, note, created_at
		FROM moderation_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	items := make([]ModerationLogEntry, 0)
	for rows.Next() {
		var item ModerationLogEntry
		if err := rows.Scan(
			&item.ID, &item.SubmissionID, &item.SongID, &item.Action,
			&item.Moderator, &item.Note, &item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation log: %w", err)
	}
	return items, nil
}

func tagsToJSON(tags []string) []byte {
	if len(tags) == 0 {
		return []byte(`[]`)
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return []byte(`[]`)
	}
	return data
}

func tagsFromJSON(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil
	}
	return tags
}
