package service

import (
	"context"
	"encoding/json"

	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	TOOL_SEARCH_DOCUMENTS = "search_documents"
	TOOL_LIST_DOCUMENTS   = "list_documents"
)

// RegisterRAGTools exposes the retrieval service to the agent as the
// document-search and document-listing tools.
func RegisterRAGTools(registry *ToolRegistry, retrieval *RetrievalService) error {
	searchDef := types.ToolDefinition{
		Name:        TOOL_SEARCH_DOCUMENTS,
		Description: "Semantic search over the ingested documents. Returns matching passages grouped by source document, most relevant first.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "What to look for in the documents",
				},
				"limit": {
					Type:        jsonschema.Integer,
					Description: "Maximum number of passages to return, default 5",
				},
			},
			Required: []string{"query"},
		},
	}
	err := registry.Register(searchDef, func(ctx context.Context, args []byte) (any, error) {
		var req types.SearchRequest
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		groups, err := retrieval.Search(ctx, req.Query, req.Limit)
		if err != nil {
			return nil, err
		}
		return types.SearchResponse{Groups: groups}, nil
	})
	if err != nil {
		return err
	}

	listDef := types.ToolDefinition{
		Name:        TOOL_LIST_DOCUMENTS,
		Description: "List every ingested document with its title, source url and ingestion date.",
		Parameters: jsonschema.Definition{
			Type:       jsonschema.Object,
			Properties: map[string]jsonschema.Definition{},
		},
	}
	return registry.Register(listDef, func(ctx context.Context, args []byte) (any, error) {
		documents, err := retrieval.ListDocuments(ctx)
		if err != nil {
			return nil, err
		}
		return types.ListDocumentsResponse{Documents: documents}, nil
	})
}
