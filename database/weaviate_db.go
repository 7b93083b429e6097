package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neproger/docbot/config"
	"github.com/neproger/docbot/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const ITERATE_BATCH_SIZE = 100

var (
	CONTENT_CLASS_OBJECT = &models.Class{
		Class:       CONTENT_CLASS,
		Description: "Searchable document content, one object per page or text body",
		Properties: []*models.Property{
			{Name: "content", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "url", DataType: []string{"text"}},
			{Name: "postedAt", DataType: []string{"date"}},
			{Name: "page", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
	}
	META_CLASS_OBJECT = &models.Class{
		Class:       META_CLASS,
		Description: "Per-document descriptors for listings",
		Properties: []*models.Property{
			{Name: "title", DataType: []string{"text"}},
			{Name: "url", DataType: []string{"text"}},
			{Name: "postedAt", DataType: []string{"date"}},
		},
	}
)

type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(config config.WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	CONTENT_CLASS_OBJECT.Vectorizer = config.Text2Vec
	CONTENT_CLASS_OBJECT.ModuleConfig = config.ModuleConfig
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}
	return &WeaviateStore{
		client: client,
	}, nil
}

// EnsureSchema creates the content and metadata classes if they are missing.
// Existing classes are left untouched.
func (s *WeaviateStore) EnsureSchema(ctx context.Context) error {
	schema, err := s.client.Schema().Getter().Do(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to read schema: %v", types.ErrSchema, err)
	}

	existing := make(map[string]bool)
	for _, class := range schema.Classes {
		existing[class.Class] = true
	}

	for _, classObj := range []*models.Class{CONTENT_CLASS_OBJECT, META_CLASS_OBJECT} {
		if existing[classObj.Class] {
			continue
		}
		err := s.client.Schema().ClassCreator().WithClass(classObj).Do(ctx)
		if err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("%w: failed to create class %s: %v", types.ErrSchema, classObj.Class, err)
		}
	}
	return nil
}

func (s *WeaviateStore) InsertContent(ctx context.Context, id string, rec *types.ContentRecord) (string, error) {
	properties := map[string]interface{}{
		"content":  rec.Content,
		"title":    rec.Title,
		"url":      rec.URL,
		"postedAt": rec.PostedAt.Format(time.RFC3339),
	}
	if rec.Page > 0 {
		properties["page"] = rec.Page
	}
	return s.insert(ctx, CONTENT_CLASS, id, properties)
}

func (s *WeaviateStore) InsertMeta(ctx context.Context, id string, rec *types.MetaRecord) (string, error) {
	properties := map[string]interface{}{
		"title":    rec.Title,
		"url":      rec.URL,
		"postedAt": rec.PostedAt.Format(time.RFC3339),
	}
	return s.insert(ctx, META_CLASS, id, properties)
}

func (s *WeaviateStore) insert(ctx context.Context, className, id string, properties map[string]interface{}) (string, error) {
	creator := s.client.Data().Creator().
		WithClassName(className).
		WithProperties(properties)
	if id != "" {
		creator = creator.WithID(id)
	}

	result, err := creator.Do(ctx)
	if err != nil {
		// Re-driving a partial ingestion hits ids written by the previous
		// attempt; the record is already there with identical content.
		if id != "" && isAlreadyExists(err) {
			return id, nil
		}
		return "", &types.StoreWriteError{Collection: className, Err: err}
	}
	return string(result.Object.ID), nil
}

func (s *WeaviateStore) QueryContent(ctx context.Context, text string, limit int) ([]types.ContentRecord, error) {
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "title"},
		{Name: "url"},
		{Name: "postedAt"},
		{Name: "page"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{text})

	result, err := s.client.GraphQL().Get().
		WithClassName(CONTENT_CLASS).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, &types.StoreQueryError{Collection: CONTENT_CLASS, Err: err}
	}
	if result.Errors != nil {
		return nil, &types.StoreQueryError{Collection: CONTENT_CLASS, Err: fmt.Errorf("%v", result.Errors[0].Message)}
	}

	records := []types.ContentRecord{}
	if data, ok := result.Data["Get"].(map[string]interface{})[CONTENT_CLASS].([]interface{}); ok {
		for _, item := range data {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			records = append(records, parseContentRecord(obj))
		}
	}
	return records, nil
}

func (s *WeaviateStore) IterateMeta(ctx context.Context, fn func(types.MetaRecord) error) error {
	fields := []graphql.Field{
		{Name: "title"},
		{Name: "url"},
		{Name: "postedAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}}},
	}

	cursor := ""
	for {
		getBuilder := s.client.GraphQL().Get().
			WithClassName(META_CLASS).
			WithFields(fields...).
			WithLimit(ITERATE_BATCH_SIZE)
		if cursor != "" {
			getBuilder = getBuilder.WithAfter(cursor)
		}
		result, err := getBuilder.Do(ctx)
		if err != nil {
			return &types.StoreQueryError{Collection: META_CLASS, Err: err}
		}
		if result.Errors != nil {
			return &types.StoreQueryError{Collection: META_CLASS, Err: fmt.Errorf("%v", result.Errors[0].Message)}
		}

		data, ok := result.Data["Get"].(map[string]interface{})[META_CLASS].([]interface{})
		if !ok || len(data) == 0 {
			return nil
		}
		for _, item := range data {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			rec := types.MetaRecord{
				Title:    stringProp(obj, "title"),
				URL:      stringProp(obj, "url"),
				PostedAt: dateProp(obj, "postedAt"),
			}
			if err := fn(rec); err != nil {
				return err
			}
			if additional, ok := obj["_additional"].(map[string]interface{}); ok {
				if id, ok := additional["id"].(string); ok {
					cursor = id
				}
			}
		}
		if len(data) < ITERATE_BATCH_SIZE {
			return nil
		}
	}
}

// Helper functions
func parseContentRecord(obj map[string]interface{}) types.ContentRecord {
	rec := types.ContentRecord{
		Content:  stringProp(obj, "content"),
		Title:    stringProp(obj, "title"),
		URL:      stringProp(obj, "url"),
		PostedAt: dateProp(obj, "postedAt"),
	}
	if page, ok := obj["page"].(float64); ok {
		rec.Page = int(page)
	}
	if additional, ok := obj["_additional"].(map[string]interface{}); ok {
		if id, ok := additional["id"].(string); ok {
			rec.ID = id
		}
	}
	return rec
}

func stringProp(obj map[string]interface{}, name string) string {
	v, _ := obj[name].(string)
	return v
}

func dateProp(obj map[string]interface{}, name string) time.Time {
	v, ok := obj[name].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isAlreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
