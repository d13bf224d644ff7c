package diff

import (
	"reflect"
	"testing"
)

func TestChangesNewSong(t *testing.T) {
	set := Changes(Fields{TitleZH: "有点甜", LyricsChinese: "摘一颗苹果"}, nil)
	if !set.New {
		t.Fatalf("expected new-song change set")
	}
	if len(set.Fields) != 0 || len(set.Lines) != 0 {
		t.Fatalf("new-song change set should carry no per-field detail, got %+v", set)
	}
	if !set.HasChanges() {
		t.Fatalf("new-song change set should report changes")
	}
}

func TestChangesIdenticalContent(t *testing.T) {
	live := Fields{
		TitleEN:       "A Little Sweet",
		TitleZH:       "有点甜",
		ArtistEN:      "Silence Wang",
		LyricsChinese: "摘一颗苹果\n等你从门前经过",
	}
	set := Changes(live, &live)
	if set.HasChanges() {
		t.Fatalf("identical content should produce an empty change set, got %+v", set)
	}
}

func TestChangesScalarFields(t *testing.T) {
	live := Fields{TitleEN: "Old Title", YoutubeURL: "https://youtu.be/old", Credits: "a"}
	proposed := Fields{TitleEN: "New Title", YoutubeURL: "https://youtu.be/old", Credits: "b"}

	set := Changes(proposed, &live)
	want := []FieldChange{
		{Field: "title_en", From: "Old Title", To: "New Title"},
		{Field: "credits", From: "a", To: "b"},
	}
	if !reflect.DeepEqual(set.Fields, want) {
		t.Fatalf("scalar changes = %+v, want %+v", set.Fields, want)
	}
	if len(set.Lines) != 0 {
		t.Fatalf("unexpected line changes: %+v", set.Lines)
	}
}

func TestChangesLyricLines(t *testing.T) {
	live := Fields{LyricsChinese: "A\nB\nC"}
	proposed := Fields{LyricsChinese: "A\nX\nC\nD"}

	set := Changes(proposed, &live)
	changes := set.Lines["lyrics_chinese"]
	want := []LineChange{
		{Index: 1, From: "B", To: "X"},
		{Index: 3, From: "", To: "D"},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("line changes = %+v, want %+v", changes, want)
	}
}

func TestChangesSingleLineEdit(t *testing.T) {
	live := Fields{
		TitleZH:      "有点甜",
		LyricsPinyin: "zhai yi ke ping guo\ndeng ni cong men qian jing guo",
	}
	proposed := live
	proposed.LyricsPinyin = "zhai yi ke ping guo\nděng nǐ cóng mén qián jīng guò"

	set := Changes(proposed, &live)
	if len(set.Fields) != 0 {
		t.Fatalf("unexpected scalar changes: %+v", set.Fields)
	}
	changes := set.Lines["lyrics_pinyin"]
	if len(changes) != 1 || changes[0].Index != 1 {
		t.Fatalf("expected a single change on line 1, got %+v", changes)
	}
}

func TestChangesEmptySides(t *testing.T) {
	live := Fields{LyricsEnglish: ""}
	proposed := Fields{LyricsEnglish: ""}
	if set := Changes(proposed, &live); set.HasChanges() {
		t.Fatalf("two empty lyric blocks should not differ, got %+v", set)
	}

	proposed.LyricsEnglish = "Pick an apple"
	set := Changes(proposed, &live)
	want := []LineChange{{Index: 0, From: "", To: "Pick an apple"}}
	if !reflect.DeepEqual(set.Lines["lyrics_english"], want) {
		t.Fatalf("line changes = %+v, want %+v", set.Lines["lyrics_english"], want)
	}
}

func TestChangesDeterministic(t *testing.T) {
	live := Fields{
		TitleEN:       "Old",
		TitleZH:       "旧",
		ArtistZH:      "某人",
		CoverURL:      "https://img.example/old.jpg",
		LyricsChinese: "一\n二\n三",
		LyricsEnglish: "one\ntwo",
	}
	proposed := Fields{
		TitleEN:       "New",
		TitleZH:       "新",
		ArtistZH:      "某人",
		CoverURL:      "https://img.example/new.jpg",
		LyricsChinese: "一\n2\n三",
		LyricsEnglish: "one\ntwo\nthree",
	}

	first := Changes(proposed, &live)
	for i := 0; i < 20; i++ {
		if next := Changes(proposed, &live); !reflect.DeepEqual(first, next) {
			t.Fatalf("run %d diverged: %+v != %+v", i, next, first)
		}
	}
}
