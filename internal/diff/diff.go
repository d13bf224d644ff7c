// Package diff computes the change set between a submission's proposed
// song content and the live song it targets. The output is deterministic:
// the same pair of inputs always produces the same ChangeSet, so it is
// safe to recompute on every moderation read instead of persisting it.
package diff

import "strings"

// Fields is the reviewable content of a song. Scalar fields are compared
// verbatim; the three lyric fields are compared line by line.
type Fields struct {
	TitleEN       string `json:"titleEn"`
	TitleZH       string `json:"titleZh"`
	ArtistEN      string `json:"artistEn"`
	ArtistZH      string `json:"artistZh"`
	YoutubeURL    string `json:"youtubeUrl"`
	CoverURL      string `json:"coverUrl"`
	Credits       string `json:"credits"`
	LyricsChinese string `json:"lyricsChinese"`
	LyricsPinyin  string `json:"lyricsPinyin"`
	LyricsEnglish string `json:"lyricsEnglish"`
}

// FieldChange records one scalar field whose value differs.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// LineChange records one lyric line whose value differs. A line missing on
// one side is reported as an empty string.
type LineChange struct {
	Index int    `json:"index"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// ChangeSet is the full comparison result for a submission.
type ChangeSet struct {
	New    bool                    `json:"new"`
	Fields []FieldChange           `json:"fields"`
	Lines  map[string][]LineChange `json:"lines"`
}

// HasChanges reports whether the change set contains any difference.
// A new-song change set always counts as changed.
func (c ChangeSet) HasChanges() bool {
	return c.New || len(c.Fields) > 0 || len(c.Lines) > 0
}

const (
	FieldTitleEN       = "title_en"
	FieldTitleZH       = "title_zh"
	FieldArtistEN      = "artist_en"
	FieldArtistZH      = "artist_zh"
	FieldYoutubeURL    = "youtube_url"
	FieldCoverURL      = "cover_url"
	FieldCredits       = "credits"
	FieldLyricsChinese = "lyrics_chinese"
	FieldLyricsPinyin  = "lyrics_pinyin"
	FieldLyricsEnglish = "lyrics_english"
)

type scalarAccessor struct {
	name string
	get  func(Fields) string
}

// Fixed comparison order keeps the Fields slice stable across runs.
var scalarFields = []scalarAccessor{
	{FieldTitleEN, func(f Fields) string { return f.TitleEN }},
	{FieldTitleZH, func(f Fields) string { return f.TitleZH }},
	{FieldArtistEN, func(f Fields) string { return f.ArtistEN }},
	{FieldArtistZH, func(f Fields) string { return f.ArtistZH }},
	{FieldYoutubeURL, func(f Fields) string { return f.YoutubeURL }},
	{FieldCoverURL, func(f Fields) string { return f.CoverURL }},
	{FieldCredits, func(f Fields) string { return f.Credits }},
}

var lyricFields = []scalarAccessor{
	{FieldLyricsChinese, func(f Fields) string { return f.LyricsChinese }},
	{FieldLyricsPinyin, func(f Fields) string { return f.LyricsPinyin }},
	{FieldLyricsEnglish, func(f Fields) string { return f.LyricsEnglish }},
}

// Changes compares proposed content against the live song. A nil live song
// marks the change set as a new-song submission and reports no per-field
// detail, since every value would be "new".
func Changes(proposed Fields, live *Fields) ChangeSet {
	if live == nil {
		return ChangeSet{New: true}
	}

	set := ChangeSet{}
	for _, field := range scalarFields {
		from := field.get(*live)
		to := field.get(proposed)
		if from == to {
			continue
		}
		set.Fields = append(set.Fields, FieldChange{Field: field.name, From: from, To: to})
	}

	for _, field := range lyricFields {
		changes := diffLines(field.get(*live), field.get(proposed))
		if len(changes) == 0 {
			continue
		}
		if set.Lines == nil {
			set.Lines = make(map[string][]LineChange)
		}
		set.Lines[field.name] = changes
	}
	return set
}

// diffLines compares two lyric blocks index by index. Indices absent on one
// side compare as empty; indices absent (or equal) on both sides are not
// reported.
func diffLines(from, to string) []LineChange {
	fromLines := splitLines(from)
	toLines := splitLines(to)

	count := len(fromLines)
	if len(toLines) > count {
		count = len(toLines)
	}

	var changes []LineChange
	for i := 0; i < count; i++ {
		fromLine := lineAt(fromLines, i)
		toLine := lineAt(toLines, i)
		if fromLine == toLine {
			continue
		}
		changes = append(changes, LineChange{Index: i, From: fromLine, To: toLine})
	}
	return changes
}

// splitLines treats an empty block as having no lines, so a blank field
// compared with a blank field produces no changes.
func splitLines(block string) []string {
	if block == "" {
		return nil
	}
	return strings.Split(block, "\n")
}

func lineAt(lines []string, index int) string {
	if index < 0 || index >= len(lines) {
		return ""
	}
	return lines[index]
}
