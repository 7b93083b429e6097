package service

import (
	"context"

	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/types"
)

const DEFAULT_SEARCH_LIMIT = 5

// RetrievalService runs semantic queries over the content collection and
// presents hits grouped by source document.
type RetrievalService struct {
	store database.VectorStore
}

func NewRetrievalService(store database.VectorStore) *RetrievalService {
	return &RetrievalService{
		store: store,
	}
}

// Search returns up to limit raw matches, partitioned by document title.
// Relevance order is preserved inside each group and groups appear in
// first-seen order.
func (s *RetrievalService) Search(ctx context.Context, query string, limit int) ([]types.DocumentGroup, error) {
	if limit <= 0 {
		limit = DEFAULT_SEARCH_LIMIT
	}
	records, err := s.store.QueryContent(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return GroupByTitle(records), nil
}

// ListDocuments returns every metadata record in store iteration order.
// Callers that need a particular order must sort the result themselves.
func (s *RetrievalService) ListDocuments(ctx context.Context) ([]types.MetaRecord, error) {
	documents := []types.MetaRecord{}
	err := s.store.IterateMeta(ctx, func(rec types.MetaRecord) error {
		documents = append(documents, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return documents, nil
}

// GroupByTitle partitions records by title. Multi-page documents yield
// several independently ranked chunks; grouping presents them as one logical
// source. Records without a title land in the "unknown" group instead of
// being dropped.
func GroupByTitle(records []types.ContentRecord) []types.DocumentGroup {
	index := make(map[string]int)
	groups := []types.DocumentGroup{}
	for _, rec := range records {
		title := rec.Title
		if title == "" {
			title = types.UnknownTitleGroup
		}
		i, seen := index[title]
		if !seen {
			i = len(groups)
			index[title] = i
			groups = append(groups, types.DocumentGroup{Title: title})
		}
		groups[i].Matches = append(groups[i].Matches, rec)
	}
	return groups
}
