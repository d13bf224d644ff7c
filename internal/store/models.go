package store

import "time"

type Song struct {
	ID            string
	Slug          string
	TitleEN       string
	TitleZH       string
	ArtistEN      string
	ArtistZH      string
	CoverURL      string
	YoutubeURL    string
	Credits       string
	LyricsChinese string
	LyricsPinyin  string
	LyricsEnglish string
	Tags          []string
	SubmittedBy   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Submission is a full copy of proposed song content. SongID is nil for
// new-song submissions and set for edits.
type Submission struct {
	ID            string
	SongID        *string
	Status        string
	Slug          string
	TitleEN       string
	TitleZH       string
	ArtistEN      string
	ArtistZH      string
	CoverURL      string
	YoutubeURL    string
	Credits       string
	LyricsChinese string
	LyricsPinyin  string
	LyricsEnglish string
	Tags          []string
	SubmittedBy   string
	CreatedAt     time.Time
}

const (
	SubmissionPending     = "pending"
	SubmissionPendingEdit = "pending_edit"
)

type Translation struct {
	ID        string
	SongID    string
	LineIndex int
	Content   string
	Author    string
	AuthorKey string
	Votes     int
	CreatedAt time.Time
}

// Comment rows form a flat table; LineIndex, TranslationID, and ParentID
// discriminate song-wide comments, line comments, translation comments,
// and one-level replies.
type Comment struct {
	ID            string
	SongID        string
	LineIndex     *int
	TranslationID *string
	ParentID      *string
	Content       string
	Author        string
	AuthorKey     string
	Votes         int
	CreatedAt     time.Time
}

type Vote struct {
	ActorKey   string
	TargetKind string
	TargetID   string
	CreatedAt  time.Time
}

type ModerationLogEntry struct {
	ID           int64
	SubmissionID string
	SongID       string
	Action       string
	Moderator    string
	Note         string
	CreatedAt    time.Time
}
