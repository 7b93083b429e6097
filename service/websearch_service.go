package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

const TOOL_WEB_SEARCH = "web_search"

// WebSearchResult represents a single result from Google Custom Search
type WebSearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// WebSearchService handles Google Custom Search operations, offered to the
// agent as a fallback when the document base has no answer.
type WebSearchService struct {
	apiKey   string
	engineID string
}

func NewWebSearchService(apiKey, engineID string) *WebSearchService {
	return &WebSearchService{
		apiKey:   apiKey,
		engineID: engineID,
	}
}

func (s *WebSearchService) Search(ctx context.Context, query string) ([]WebSearchResult, error) {
	opts := []option.ClientOption{}
	if s.apiKey != "" {
		opts = append(opts, option.WithAPIKey(s.apiKey))
	}
	searchService, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %v", err)
	}

	search := searchService.Cse.List()
	search.Q(query)
	search.Cx(s.engineID)
	search.Num(5)

	result, err := search.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %v", err)
	}

	searchResults := make([]WebSearchResult, 0)
	for _, item := range result.Items {
		searchResults = append(searchResults, WebSearchResult{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}

	return searchResults, nil
}

// RegisterSearchTool exposes web search to the agent
func (s *WebSearchService) RegisterSearchTool(registry *ToolRegistry) error {
	def := types.ToolDefinition{
		Name:        TOOL_WEB_SEARCH,
		Description: "Search the public web. Use only when the ingested documents do not contain the answer.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {
					Type:        jsonschema.String,
					Description: "The search query",
				},
			},
			Required: []string{"query"},
		},
	}
	return registry.Register(def, func(ctx context.Context, args []byte) (any, error) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, err
		}
		return s.Search(ctx, req.Query)
	})
}
