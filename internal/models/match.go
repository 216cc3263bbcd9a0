// Package models defines the data structures shared by the store, engine,
// ingestion, and HTTP layers.
package models

// Match is a single similarity hit: the indexed image and its cosine
// similarity to the query, reported unclamped (range roughly [-1, 1]).
type Match struct {
	Filename   string  `json:"filename"`
	FilePath   string  `json:"file_path"`
	Similarity float64 `json:"similarity"`
}

// SearchResponse is the response for a similarity search request. Matches are
// ordered best first.
type SearchResponse struct {
	Matches   []Match `json:"matches"`
	Total     int     `json:"total"`
	QueryTime int64   `json:"query_time_ms"`
	// NoFace indicates the query image produced no embedding (no face
	// detected). Matches is empty in that case; it is not an error.
	NoFace bool `json:"no_face,omitempty"`
}
