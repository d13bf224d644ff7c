package app

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"versebook/api/internal/diff"
	"versebook/api/internal/identity"
	"versebook/api/internal/search"
	"versebook/api/internal/store"
	"versebook/api/internal/util"
)

// SubmissionInput carries proposed song content, either for a brand new
// song or as a full-copy edit of an existing one.
type SubmissionInput struct {
	Slug          string   `json:"slug"`
	TitleEN       string   `json:"titleEn"`
	TitleZH       string   `json:"titleZh"`
	ArtistEN      string   `json:"artistEn"`
	ArtistZH      string   `json:"artistZh"`
	CoverURL      string   `json:"coverUrl"`
	YoutubeURL    string   `json:"youtubeUrl"`
	Credits       string   `json:"credits"`
	LyricsChinese string   `json:"lyricsChinese"`
	LyricsPinyin  string   `json:"lyricsPinyin"`
	LyricsEnglish string   `json:"lyricsEnglish"`
	Tags          []string `json:"tags"`
}

func (in SubmissionInput) validate(newSong bool) error {
	if newSong && strings.TrimSpace(in.Slug) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "slug is required", nil)
	}
	if strings.TrimSpace(in.TitleEN) == "" && strings.TrimSpace(in.TitleZH) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a title is required", nil)
	}
	if strings.TrimSpace(in.LyricsChinese) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "chinese lyrics are required", nil)
	}
	return nil
}

// SubmitNewSong queues a brand new song for moderation.
func (s *Service) SubmitNewSong(ctx context.Context, actor identity.Actor, in SubmissionInput) (map[string]any, error) {
	if !actor.IsAuthenticated() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "sign in to submit a song", nil)
	}
	if err := in.validate(true); err != nil {
		return nil, err
	}

	sub := submissionFromInput(in)
	sub.ID = util.NewID("sub")
	sub.Status = store.SubmissionPending
	sub.SubmittedBy = actor.ID
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return submissionView(sub, nil), nil
}

// SubmitEdit queues a full-copy edit of an existing song.
func (s *Service) SubmitEdit(ctx context.Context, actor identity.Actor, slug string, in SubmissionInput) (map[string]any, error) {
	if !actor.IsAuthenticated() {
		return nil, domainError(http.StatusUnauthorized, "UNAUTHORIZED", "sign in to submit an edit", nil)
	}
	song, err := s.songBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := in.validate(false); err != nil {
		return nil, err
	}

	sub := submissionFromInput(in)
	sub.ID = util.NewID("sub")
	sub.SongID = &song.ID
	sub.Status = store.SubmissionPendingEdit
	sub.Slug = song.Slug
	sub.SubmittedBy = actor.ID
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		return nil, err
	}
	live := songFields(song)
	return submissionView(sub, &live), nil
}

// ModerationQueue lists pending submissions with a change set against the
// live song computed on the fly.
func (s *Service) ModerationQueue(ctx context.Context, actor identity.Actor) ([]map[string]any, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	subs, err := s.store.ListPendingSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(subs))
	for _, sub := range subs {
		live, err := s.liveFields(ctx, sub)
		if err != nil {
			return nil, err
		}
		views = append(views, submissionView(sub, live))
	}
	return views, nil
}

// ReviewSubmission returns one submission with its change set.
func (s *Service) ReviewSubmission(ctx context.Context, actor identity.Actor, submissionID string) (map[string]any, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	live, err := s.liveFields(ctx, sub)
	if err != nil {
		return nil, err
	}
	return submissionView(sub, live), nil
}

// Approve publishes a submission. The moderator may pass final content that
// overrides what was submitted; nil means approve as submitted. The live
// song row keeps its id, slug, and relations. The submission row is removed
// last so a failed cleanup never loses published content.
func (s *Service) Approve(ctx context.Context, actor identity.Actor, submissionID string, final *SubmissionInput) (map[string]any, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != store.SubmissionPending && sub.Status != store.SubmissionPendingEdit {
		return nil, domainError(http.StatusConflict, "INVALID_STATE", "submission is not pending review", nil)
	}

	if final != nil {
		merged := *final
		merged.Slug = sub.Slug
		if err := merged.validate(sub.SongID == nil); err != nil {
			return nil, err
		}
		applyInput(&sub, merged)
	}

	var song store.Song
	if sub.SongID != nil {
		live, err := s.store.GetSongByID(ctx, *sub.SongID)
		if err != nil {
			return nil, err
		}
		song = live
		applySubmission(&song, sub)
		if err := s.store.UpdateSongContent(ctx, song); err != nil {
			return nil, err
		}
	} else {
		song = store.Song{
			ID:          util.NewID("song"),
			Slug:        sub.Slug,
			SubmittedBy: sub.SubmittedBy,
		}
		applySubmission(&song, sub)
		if err := s.store.InsertSong(ctx, song); err != nil {
			return nil, err
		}
	}

	if err := s.store.InsertModerationLog(ctx, store.ModerationLogEntry{
		SubmissionID: sub.ID,
		SongID:       song.ID,
		Action:       "approved",
		Moderator:    actor.ID,
	}); err != nil {
		log.Printf("moderation log write failed for submission %s: %v", sub.ID, err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, song.Slug); err != nil {
			log.Printf("song cache invalidate failed for %s: %v", song.Slug, err)
		}
	}
	if s.search != nil {
		s.search.IndexSong(search.SongRecord{
			ID:       song.ID,
			Slug:     song.Slug,
			TitleEN:  song.TitleEN,
			TitleZH:  song.TitleZH,
			ArtistEN: song.ArtistEN,
			ArtistZH: song.ArtistZH,
			Tags:     song.Tags,
		})
	}

	// Deleting last keeps the published song even if cleanup fails; a
	// leftover submission row is an inconsistency worth logging, not a
	// reason to fail the approval.
	if err := s.store.DeleteSubmission(ctx, sub.ID); err != nil {
		log.Printf("submission %s approved but not deleted: %v", sub.ID, err)
	}

	return songView(song), nil
}

// Reject discards a submission without touching any song.
func (s *Service) Reject(ctx context.Context, actor identity.Actor, submissionID string, note string) error {
	if err := s.requireModerator(actor); err != nil {
		return err
	}
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status != store.SubmissionPending && sub.Status != store.SubmissionPendingEdit {
		return domainError(http.StatusConflict, "INVALID_STATE", "submission is not pending review", nil)
	}

	songID := ""
	if sub.SongID != nil {
		songID = *sub.SongID
	}
	if err := s.store.InsertModerationLog(ctx, store.ModerationLogEntry{
		SubmissionID: sub.ID,
		SongID:       songID,
		Action:       "rejected",
		Moderator:    actor.ID,
		Note:         note,
	}); err != nil {
		log.Printf("moderation log write failed for submission %s: %v", sub.ID, err)
	}
	return s.store.DeleteSubmission(ctx, sub.ID)
}

// ModerationLog lists recent moderation decisions, newest first.
func (s *Service) ModerationLog(ctx context.Context, actor identity.Actor, limit int) ([]map[string]any, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	entries, err := s.store.ListModerationLog(ctx, limit)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		views = append(views, map[string]any{
			"id":           entry.ID,
			"submissionId": entry.SubmissionID,
			"songId":       entry.SongID,
			"action":       entry.Action,
			"moderator":    entry.Moderator,
			"note":         entry.Note,
			"createdAt":    entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return views, nil
}

// liveFields loads the current content for an edit submission; new-song
// submissions have no live counterpart.
func (s *Service) liveFields(ctx context.Context, sub store.Submission) (*diff.Fields, error) {
	if sub.SongID == nil {
		return nil, nil
	}
	song, err := s.store.GetSongByID(ctx, *sub.SongID)
	if err != nil {
		return nil, err
	}
	fields := songFields(song)
	return &fields, nil
}

func submissionFromInput(in SubmissionInput) store.Submission {
	return store.Submission{
		Slug:          strings.TrimSpace(in.Slug),
		TitleEN:       strings.TrimSpace(in.TitleEN),
		TitleZH:       strings.TrimSpace(in.TitleZH),
		ArtistEN:      strings.TrimSpace(in.ArtistEN),
		ArtistZH:      strings.TrimSpace(in.ArtistZH),
		CoverURL:      strings.TrimSpace(in.CoverURL),
		YoutubeURL:    strings.TrimSpace(in.YoutubeURL),
		Credits:       strings.TrimSpace(in.Credits),
		LyricsChinese: in.LyricsChinese,
		LyricsPinyin:  in.LyricsPinyin,
		LyricsEnglish: in.LyricsEnglish,
		Tags:          in.Tags,
	}
}

func applyInput(sub *store.Submission, in SubmissionInput) {
	replacement := submissionFromInput(in)
	replacement.ID = sub.ID
	replacement.SongID = sub.SongID
	replacement.Status = sub.Status
	replacement.Slug = sub.Slug
	replacement.SubmittedBy = sub.SubmittedBy
	replacement.CreatedAt = sub.CreatedAt
	*sub = replacement
}

// applySubmission copies submitted content onto a song row, leaving its
// identity fields alone.
func applySubmission(song *store.Song, sub store.Submission) {
	song.TitleEN = sub.TitleEN
	song.TitleZH = sub.TitleZH
	song.ArtistEN = sub.ArtistEN
	song.ArtistZH = sub.ArtistZH
	song.CoverURL = sub.CoverURL
	song.YoutubeURL = sub.YoutubeURL
	song.Credits = sub.Credits
	song.LyricsChinese = sub.LyricsChinese
	song.LyricsPinyin = sub.LyricsPinyin
	song.LyricsEnglish = sub.LyricsEnglish
	song.Tags = sub.Tags
}

func submissionView(sub store.Submission, live *diff.Fields) map[string]any {
	view := map[string]any{
		"id":            sub.ID,
		"songId":        sub.SongID,
		"status":        sub.Status,
		"slug":          sub.Slug,
		"titleEn":       sub.TitleEN,
		"titleZh":       sub.TitleZH,
		"artistEn":      sub.ArtistEN,
		"artistZh":      sub.ArtistZH,
		"coverUrl":      sub.CoverURL,
		"youtubeUrl":    sub.YoutubeURL,
		"credits":       sub.Credits,
		"lyricsChinese": sub.LyricsChinese,
		"lyricsPinyin":  sub.LyricsPinyin,
		"lyricsEnglish": sub.LyricsEnglish,
		"tags":          nonNilStrings(sub.Tags),
		"submittedBy":   sub.SubmittedBy,
		"createdAt":     sub.CreatedAt.Format(time.RFC3339),
	}
	view["changes"] = diff.Changes(submissionFields(sub), live)
	return view
}
