package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"versebook/api/internal/identity"
	"versebook/api/internal/store"
)

// lineTargetID composes the vote ledger target for an original line. Lines
// have no row of their own, so the song ID and index form the identity.
func lineTargetID(songID string, lineIndex int) string {
	return fmt.Sprintf("%s:%d", songID, lineIndex)
}

// ToggleLineVote flips the actor's vote on an original lyric line.
func (s *Service) ToggleLineVote(ctx context.Context, actor identity.Actor, slug string, lineIndex int) (map[string]any, error) {
	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if lineIndex < 0 || lineIndex >= lyricLineCount(song) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "line index out of range", nil)
	}
	return s.toggleVote(ctx, actor, store.VoteOriginalLine, lineTargetID(song.ID, lineIndex))
}

// ToggleTranslationVote flips the actor's vote on a community translation.
func (s *Service) ToggleTranslationVote(ctx context.Context, actor identity.Actor, translationID string) (map[string]any, error) {
	if _, err := s.store.GetTranslation(ctx, translationID); err != nil {
		return nil, err
	}
	return s.toggleVote(ctx, actor, store.VoteTranslation, translationID)
}

// ToggleCommentVote flips the actor's vote on a comment.
func (s *Service) ToggleCommentVote(ctx context.Context, actor identity.Actor, commentID string) (map[string]any, error) {
	if _, err := s.store.GetComment(ctx, commentID); err != nil {
		return nil, err
	}
	return s.toggleVote(ctx, actor, store.VoteComment, commentID)
}

// toggleVote is the single write path of the vote ledger. A duplicate-key
// conflict means another request of the same actor already recorded the
// vote, which the toggle treats as its own success.
func (s *Service) toggleVote(ctx context.Context, actor identity.Actor, targetKind, targetID string) (map[string]any, error) {
	if actor.IsZero() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "an identity is required to vote", nil)
	}

	voted, err := s.store.ToggleVote(ctx, actor.Key(), targetKind, targetID)
	if err != nil && !errors.Is(err, store.ErrDuplicateVote) {
		return nil, err
	}

	count, err := s.store.CountVotes(ctx, targetKind, targetID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"targetKind": targetKind,
		"targetId":   targetID,
		"voted":      voted,
		"votes":      count,
	}, nil
}
