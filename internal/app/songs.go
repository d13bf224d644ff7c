package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"versebook/api/internal/cache"
	"versebook/api/internal/identity"
	"versebook/api/internal/search"
	"versebook/api/internal/store"
)

func (s *Service) ListSongs(ctx context.Context, artist string) ([]map[string]any, error) {
	var (
		songs []store.Song
		err   error
	)
	if strings.TrimSpace(artist) != "" {
		songs, err = s.store.ListSongsByArtist(ctx, strings.TrimSpace(artist))
	} else {
		songs, err = s.store.ListSongs(ctx)
	}
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(songs))
	for _, song := range songs {
		items = append(items, songSummaryView(song))
	}
	return items, nil
}

// songBySlug reads through the cache. Cache failures degrade to a direct
// database read; a stale entry can only survive until the next approval
// invalidates it or the TTL lapses.
func (s *Service) songBySlug(ctx context.Context, slug string) (store.Song, error) {
	if s.cache != nil {
		song, err := s.cache.Get(ctx, slug)
		if err == nil {
			return song, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("song cache read failed for %s: %v", slug, err)
		}
	}

	song, err := s.store.GetSongBySlug(ctx, slug)
	if err != nil {
		return store.Song{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, song); err != nil {
			log.Printf("song cache write failed for %s: %v", slug, err)
		}
	}
	return song, nil
}

func (s *Service) GetSong(ctx context.Context, slug string) (map[string]any, error) {
	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return songView(song), nil
}

// LineView assembles everything the line sidebar needs: the line in all
// three scripts, its vote state, ranked translations with their comment
// threads, and the line-scoped discussion.
func (s *Service) LineView(ctx context.Context, slug string, lineIndex int, actor identity.Actor) (map[string]any, error) {
	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if lineIndex < 0 || lineIndex >= lyricLineCount(song) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "line index out of range", map[string]any{
			"lineIndex": lineIndex,
			"lineCount": lyricLineCount(song),
		})
	}

	lineID := lineTargetID(song.ID, lineIndex)
	lineVotes, err := s.store.CountVotes(ctx, store.VoteOriginalLine, lineID)
	if err != nil {
		return nil, err
	}
	viewerVotedLine := false
	if !actor.IsZero() {
		viewerVotedLine, err = s.store.HasVoted(ctx, actor.Key(), store.VoteOriginalLine, lineID)
		if err != nil {
			return nil, err
		}
	}

	comments, err := s.store.ListSongComments(ctx, song.ID)
	if err != nil {
		return nil, err
	}
	commentsByTranslation := make(map[string][]store.Comment)
	var lineComments []store.Comment
	for _, comment := range comments {
		if comment.TranslationID != nil {
			commentsByTranslation[*comment.TranslationID] = append(commentsByTranslation[*comment.TranslationID], comment)
			continue
		}
		if comment.LineIndex != nil && *comment.LineIndex == lineIndex {
			lineComments = append(lineComments, comment)
		}
	}

	translations, err := s.store.ListLineTranslations(ctx, song.ID, lineIndex)
	if err != nil {
		return nil, err
	}
	translationItems := make([]map[string]any, 0, len(translations))
	for _, translation := range translations {
		viewerVoted := false
		if !actor.IsZero() {
			viewerVoted, err = s.store.HasVoted(ctx, actor.Key(), store.VoteTranslation, translation.ID)
			if err != nil {
				return nil, err
			}
		}
		view := translationView(translation, viewerVoted)
		view["comments"], err = s.commentThread(ctx, commentsByTranslation[translation.ID], actor)
		if err != nil {
			return nil, err
		}
		translationItems = append(translationItems, view)
	}

	lineThread, err := s.commentThread(ctx, lineComments, actor)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"songId":    song.ID,
		"slug":      song.Slug,
		"lineIndex": lineIndex,
		"line": map[string]any{
			"chinese": lineAt(song.LyricsChinese, lineIndex),
			"pinyin":  lineAt(song.LyricsPinyin, lineIndex),
			"english": lineAt(song.LyricsEnglish, lineIndex),
		},
		"votes":        lineVotes,
		"viewerVoted":  viewerVotedLine,
		"translations": translationItems,
		"comments":     lineThread,
	}, nil
}

// commentThread groups a flat comment slice into roots with their replies.
// Nesting is capped at one level, so replies never recurse.
func (s *Service) commentThread(ctx context.Context, comments []store.Comment, actor identity.Actor) ([]map[string]any, error) {
	repliesByParent := make(map[string][]store.Comment)
	var roots []store.Comment
	for _, comment := range comments {
		if comment.ParentID != nil {
			repliesByParent[*comment.ParentID] = append(repliesByParent[*comment.ParentID], comment)
			continue
		}
		roots = append(roots, comment)
	}

	items := make([]map[string]any, 0, len(roots))
	for _, root := range roots {
		view, err := s.commentWithViewerState(ctx, root, actor)
		if err != nil {
			return nil, err
		}
		replies := make([]map[string]any, 0, len(repliesByParent[root.ID]))
		for _, reply := range repliesByParent[root.ID] {
			replyView, err := s.commentWithViewerState(ctx, reply, actor)
			if err != nil {
				return nil, err
			}
			replies = append(replies, replyView)
		}
		view["replies"] = replies
		items = append(items, view)
	}
	return items, nil
}

func (s *Service) commentWithViewerState(ctx context.Context, comment store.Comment, actor identity.Actor) (map[string]any, error) {
	viewerVoted := false
	if !actor.IsZero() {
		var err error
		viewerVoted, err = s.store.HasVoted(ctx, actor.Key(), store.VoteComment, comment.ID)
		if err != nil {
			return nil, err
		}
	}
	return commentView(comment, viewerVoted), nil
}

// SongComments returns the song-wide discussion: comments with no line,
// translation, or parent discriminator beyond the song itself.
func (s *Service) SongComments(ctx context.Context, slug string, actor identity.Actor) ([]map[string]any, error) {
	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListSongComments(ctx, song.ID)
	if err != nil {
		return nil, err
	}
	var songWide []store.Comment
	for _, comment := range comments {
		if comment.LineIndex == nil && comment.TranslationID == nil {
			songWide = append(songWide, comment)
		}
	}
	return s.commentThread(ctx, songWide, actor)
}

func (s *Service) Search(ctx context.Context, text, tag string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{Text: text, FilterTag: tag, Limit: limit, Offset: offset}), nil
}
