package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxSongs = "versebook_songs"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the songs index.
// An unreachable instance is tolerated; the health loop keeps probing and
// the caller falls back to Postgres FTS in the meantime.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxSongs,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxSongs, err)
	}

	index := m.client.Index(idxSongs)
	filterable := []interface{}{"tags"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxSongs, err)
	}
	searchable := []string{"titleEn", "titleZh", "artistEn", "artistZh"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxSongs, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the songs index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	sr := &meili.SearchRequest{
		Limit:                 limit,
		Offset:                int64(q.Offset),
		AttributesToHighlight: []string{"*"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if q.FilterTag != "" {
		sr.Filter = fmt.Sprintf("tags = %q", q.FilterTag)
	}

	resp, err := m.client.Index(idxSongs).Search(q.Text, sr)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		results = append(results, hitToResult(hit))
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func hitToResult(hit meili.Hit) Result {
	r := Result{
		ID:       decodeString(hit, "id"),
		Slug:     decodeString(hit, "slug"),
		TitleEN:  decodeString(hit, "titleEn"),
		TitleZH:  decodeString(hit, "titleZh"),
		ArtistEN: decodeString(hit, "artistEn"),
		ArtistZH: decodeString(hit, "artistZh"),
	}
	r.Snippet = firstNonBlank(
		decodeFormattedString(hit, "titleZh"),
		decodeFormattedString(hit, "titleEn"),
		decodeFormattedString(hit, "artistZh"),
		decodeFormattedString(hit, "artistEn"),
	)
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	// _formatted carries every attribute, including non-string ones like
	// tags, so decode field by field.
	var formatted map[string]json.RawMessage
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(formatted[key], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexSong adds or updates a song in the search index.
func (m *Meili) IndexSong(song SongRecord) error {
	_, err := m.client.Index(idxSongs).AddDocuments([]SongRecord{song}, nil)
	return err
}

// IndexSongs bulk-indexes songs.
func (m *Meili) IndexSongs(songs []SongRecord) error {
	if len(songs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxSongs).AddDocuments(songs, nil)
	return err
}

// DeleteSong removes a song from the search index.
func (m *Meili) DeleteSong(id string) error {
	_, err := m.client.Index(idxSongs).DeleteDocument(id, nil)
	return err
}
