package types

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type UploadRequest struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}
