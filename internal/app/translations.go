package app

import (
	"context"
	"net/http"
	"strings"

	"versebook/api/internal/identity"
	"versebook/api/internal/store"
	"versebook/api/internal/util"
)

const maxTranslationLength = 500

// ProposeTranslation attaches a community translation to one lyric line.
func (s *Service) ProposeTranslation(ctx context.Context, actor identity.Actor, slug string, lineIndex int, content string) (map[string]any, error) {
	if actor.IsZero() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "an identity is required to propose a translation", nil)
	}

	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if lineIndex < 0 || lineIndex >= lyricLineCount(song) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "line index out of range", nil)
	}

	text := strings.TrimSpace(content)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len([]rune(text)) > maxTranslationLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}

	translation := store.Translation{
		ID:        util.NewID("tr"),
		SongID:    song.ID,
		LineIndex: lineIndex,
		Content:   text,
		Author:    actor.Name,
		AuthorKey: actor.Key(),
	}
	if err := s.store.InsertTranslation(ctx, translation); err != nil {
		return nil, err
	}
	return translationView(translation, false), nil
}

// RemoveTranslation deletes a translation. The author can always remove
// their own; moderators can remove anyone's.
func (s *Service) RemoveTranslation(ctx context.Context, actor identity.Actor, translationID string) error {
	translation, err := s.store.GetTranslation(ctx, translationID)
	if err != nil {
		return err
	}
	if translation.AuthorKey != actor.Key() && s.requireModerator(actor) != nil {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author or a moderator can remove a translation", nil)
	}
	return s.store.DeleteTranslation(ctx, translationID)
}
