package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"versebook/api/internal/cache"
	"versebook/api/internal/config"
	"versebook/api/internal/diff"
	"versebook/api/internal/identity"
	"versebook/api/internal/search"
	"versebook/api/internal/store"
)

type dataStore interface {
	ListSongs(context.Context) ([]store.Song, error)
	ListSongsByArtist(context.Context, string) ([]store.Song, error)
	GetSongBySlug(context.Context, string) (store.Song, error)
	GetSongByID(context.Context, string) (store.Song, error)
	InsertSong(context.Context, store.Song) error
	UpdateSongContent(context.Context, store.Song) error
	InsertSubmission(context.Context, store.Submission) error
	GetSubmission(context.Context, string) (store.Submission, error)
	ListPendingSubmissions(context.Context) ([]store.Submission, error)
	DeleteSubmission(context.Context, string) error
	InsertTranslation(context.Context, store.Translation) error
	GetTranslation(context.Context, string) (store.Translation, error)
	ListLineTranslations(context.Context, string, int) ([]store.Translation, error)
	DeleteTranslation(context.Context, string) error
	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	ListSongComments(context.Context, string) ([]store.Comment, error)
	DeleteComment(context.Context, string) error
	ToggleVote(context.Context, string, string, string) (bool, error)
	HasVoted(context.Context, string, string, string) (bool, error)
	CountVotes(context.Context, string, string) (int, error)
	InsertModerationLog(context.Context, store.ModerationLogEntry) error
	ListModerationLog(context.Context, int) ([]store.ModerationLogEntry, error)
	Ping(ctx context.Context) error
}

type songCache interface {
	Get(ctx context.Context, slug string) (store.Song, error)
	Set(ctx context.Context, song store.Song) error
	Invalidate(ctx context.Context, slug string) error
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexSong(song search.SongRecord)
	DeleteSong(id string)
}

type Service struct {
	cfg    config.Config
	store  dataStore
	cache  songCache
	search searchIndex
}

// New wires the service. songCache and searchService may be nil when Redis
// or Meilisearch are not configured; the service degrades to direct reads.
func New(cfg config.Config, dataStore *store.PostgresStore, songCache *cache.SongCache, searchService *search.Service) *Service {
	s := &Service{
		cfg:   cfg,
		store: dataStore,
	}
	if songCache != nil {
		s.cache = songCache
	}
	if searchService != nil {
		s.search = searchService
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// requireModerator gates moderation operations on the configured list of
// moderator user IDs. Anonymous actors are never moderators.
func (s *Service) requireModerator(actor identity.Actor) error {
	if actor.IsAuthenticated() && s.cfg.IsModerator(actor.ID) {
		return nil
	}
	return domainError(http.StatusForbidden, "FORBIDDEN", "moderator access required", nil)
}

func songFields(song store.Song) diff.Fields {
	return diff.Fields{
		TitleEN:       song.TitleEN,
		TitleZH:       song.TitleZH,
		ArtistEN:      song.ArtistEN,
		ArtistZH:      song.ArtistZH,
		YoutubeURL:    song.YoutubeURL,
		CoverURL:      song.CoverURL,
		Credits:       song.Credits,
		LyricsChinese: song.LyricsChinese,
		LyricsPinyin:  song.LyricsPinyin,
		LyricsEnglish: song.LyricsEnglish,
	}
}

func submissionFields(sub store.Submission) diff.Fields {
	return diff.Fields{
		TitleEN:       sub.TitleEN,
		TitleZH:       sub.TitleZH,
		ArtistEN:      sub.ArtistEN,
		ArtistZH:      sub.ArtistZH,
		YoutubeURL:    sub.YoutubeURL,
		CoverURL:      sub.CoverURL,
		Credits:       sub.Credits,
		LyricsChinese: sub.LyricsChinese,
		LyricsPinyin:  sub.LyricsPinyin,
		LyricsEnglish: sub.LyricsEnglish,
	}
}

func songSummaryView(song store.Song) map[string]any {
	return map[string]any{
		"id":        song.ID,
		"slug":      song.Slug,
		"titleEn":   song.TitleEN,
		"titleZh":   song.TitleZH,
		"artistEn":  song.ArtistEN,
		"artistZh":  song.ArtistZH,
		"coverUrl":  song.CoverURL,
		"tags":      nonNilStrings(song.Tags),
		"createdAt": song.CreatedAt.Format(time.RFC3339),
	}
}

func songView(song store.Song) map[string]any {
	view := songSummaryView(song)
	view["youtubeUrl"] = song.YoutubeURL
	view["credits"] = song.Credits
	view["lyricsChinese"] = song.LyricsChinese
	view["lyricsPinyin"] = song.LyricsPinyin
	view["lyricsEnglish"] = song.LyricsEnglish
	view["submittedBy"] = song.SubmittedBy
	return view
}

func translationView(item store.Translation, viewerVoted bool) map[string]any {
	return map[string]any{
		"id":          item.ID,
		"songId":      item.SongID,
		"lineIndex":   item.LineIndex,
		"content":     item.Content,
		"author":      item.Author,
		"votes":       item.Votes,
		"viewerVoted": viewerVoted,
		"createdAt":   item.CreatedAt.Format(time.RFC3339),
	}
}

func commentView(item store.Comment, viewerVoted bool) map[string]any {
	return map[string]any{
		"id":            item.ID,
		"songId":        item.SongID,
		"lineIndex":     item.LineIndex,
		"translationId": item.TranslationID,
		"parentId":      item.ParentID,
		"content":       item.Content,
		"author":        item.Author,
		"votes":         item.Votes,
		"viewerVoted":   viewerVoted,
		"createdAt":     item.CreatedAt.Format(time.RFC3339),
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// lyricLineCount is the number of addressable lines in a song: the longest
// of the three lyric blocks. Line-scoped operations validate against it.
func lyricLineCount(song store.Song) int {
	count := 0
	for _, block := range []string{song.LyricsChinese, song.LyricsPinyin, song.LyricsEnglish} {
		if block == "" {
			continue
		}
		if n := len(strings.Split(block, "\n")); n > count {
			count = n
		}
	}
	return count
}

func lineAt(block string, index int) string {
	if block == "" {
		return ""
	}
	lines := strings.Split(block, "\n")
	if index < 0 || index >= len(lines) {
		return ""
	}
	return lines[index]
}
