package types

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SearchResponse struct {
	Groups []DocumentGroup `json:"groups"`
}

type ListDocumentsResponse struct {
	Documents []MetaRecord `json:"documents"`
}

type UploadResponse struct {
	OriginalName string       `json:"original_name,omitempty"`
	Ingestion    *IngestionResult `json:"ingestion,omitempty"`
}
