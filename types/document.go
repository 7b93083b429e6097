package types

import "time"

// ContentRecord is one retrievable unit: a whole text document or one page of
// a paginated one.
type ContentRecord struct {
	ID       string    `json:"id,omitempty"`
	Content  string    `json:"content"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	PostedAt time.Time `json:"posted_at"`
	Page     int       `json:"page,omitempty"` // 1-based, zero for single-body sources
}

// MetaRecord is the per-document descriptor used for listings
type MetaRecord struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	PostedAt time.Time `json:"posted_at"`
}

// IngestionResult reports the ids written for one ingested document
type IngestionResult struct {
	MetaID     string   `json:"meta_id"`
	ContentIDs []string `json:"content_ids"`
}

// DocumentGroup is one title's slice of search hits, relevance order preserved
type DocumentGroup struct {
	Title   string          `json:"title"`
	Matches []ContentRecord `json:"matches"`
}

// UnknownTitleGroup keys search hits whose title property is missing
const UnknownTitleGroup = "unknown"

// DocumentServiceConfig contains options for document text extraction
type DocumentServiceConfig struct {
	OCRLanguages string // tesseract language packs, e.g. "eng+rus"
}
