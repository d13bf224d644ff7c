package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	TitleEN  string `json:"titleEn"`
	TitleZH  string `json:"titleZh"`
	ArtistEN string `json:"artistEn"`
	ArtistZH string `json:"artistZh"`
	Snippet  string `json:"snippet"`
}

// Query describes a search request over the published song catalogue.
type Query struct {
	Text      string
	FilterTag string
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SongRecord is the data indexed for a published song. Only approved
// content is ever indexed; pending submissions stay out of the index.
type SongRecord struct {
	ID       string   `json:"id"`
	Slug     string   `json:"slug"`
	TitleEN  string   `json:"titleEn"`
	TitleZH  string   `json:"titleZh"`
	ArtistEN string   `json:"artistEn"`
	ArtistZH string   `json:"artistZh"`
	Tags     []string `json:"tags"`
}
