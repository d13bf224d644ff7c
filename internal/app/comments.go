package app

import (
	"context"
	"net/http"
	"strings"

	"versebook/api/internal/identity"
	"versebook/api/internal/store"
	"versebook/api/internal/util"
)

const maxCommentLength = 2000

// PostCommentInput carries a new comment. At most one of LineIndex and
// TranslationID may be set; both nil means a song-level comment. ParentID
// turns the comment into a reply.
type PostCommentInput struct {
	LineIndex     *int    `json:"lineIndex"`
	TranslationID *string `json:"translationId"`
	ParentID      *string `json:"parentId"`
	Content       string  `json:"content"`
}

// PostComment stores a comment on a song, a line, or a translation.
// Replies inherit the parent's anchor and cannot themselves be replied to.
func (s *Service) PostComment(ctx context.Context, actor identity.Actor, slug string, in PostCommentInput) (map[string]any, error) {
	if actor.IsZero() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "an identity is required to comment", nil)
	}

	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(in.Content)
	if text == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is required", nil)
	}
	if len([]rune(text)) > maxCommentLength {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "content is too long", nil)
	}
	if in.LineIndex != nil && in.TranslationID != nil {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a comment targets a line or a translation, not both", nil)
	}

	comment := store.Comment{
		ID:        util.NewID("cm"),
		SongID:    song.ID,
		LineIndex: in.LineIndex,
		Content:   text,
		Author:    actor.Name,
		AuthorKey: actor.Key(),
	}

	if in.ParentID != nil {
		parent, err := s.store.GetComment(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.SongID != song.ID {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent comment belongs to a different song", nil)
		}
		if parent.ParentID != nil {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "replies to replies are not allowed", nil)
		}
		// Replies sit in the same thread as the parent.
		comment.ParentID = in.ParentID
		comment.LineIndex = parent.LineIndex
		comment.TranslationID = parent.TranslationID
	} else {
		if in.LineIndex != nil && (*in.LineIndex < 0 || *in.LineIndex >= lyricLineCount(song)) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "line index out of range", nil)
		}
		if in.TranslationID != nil {
			translation, err := s.store.GetTranslation(ctx, *in.TranslationID)
			if err != nil {
				return nil, err
			}
			if translation.SongID != song.ID {
				return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "translation belongs to a different song", nil)
			}
			comment.TranslationID = in.TranslationID
		}
	}

	if err := s.store.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	return commentView(comment, false), nil
}

// DeleteComment removes a comment. Only its author may do so.
func (s *Service) DeleteComment(ctx context.Context, actor identity.Actor, commentID string) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.AuthorKey != actor.Key() {
		return domainError(http.StatusForbidden, "FORBIDDEN", "only the author can delete a comment", nil)
	}
	return s.store.DeleteComment(ctx, commentID)
}
