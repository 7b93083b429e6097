package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/types"
)

// IngestService turns a raw document into one metadata record and one or more
// content records. Writes are independent and not transactional: a page
// failure is reported but already written records stay, and re-driving the
// same document converges because record ids are derived from the source
// locator.
type IngestService struct {
	store database.VectorStore
	now   func() time.Time
}

func NewIngestService(store database.VectorStore) *IngestService {
	return &IngestService{
		store: store,
		now:   time.Now,
	}
}

// MetaRecordID derives the deterministic id of a document's metadata record
func MetaRecordID(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url+"#meta")).String()
}

// ContentRecordID derives the deterministic id of one content record. Page is
// zero for single-body documents.
func ContentRecordID(url string, page int) string {
	key := url
	if page > 0 {
		key = fmt.Sprintf("%s#page-%d", url, page)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// IngestText ingests a plain document with a single text body
func (s *IngestService) IngestText(ctx context.Context, url, title, body string) (*types.IngestionResult, error) {
	return s.ingest(ctx, url, title, []string{body}, false)
}

// IngestPages ingests a paginated document, one content record per page
func (s *IngestService) IngestPages(ctx context.Context, url, title string, pages []string) (*types.IngestionResult, error) {
	return s.ingest(ctx, url, title, pages, true)
}

func (s *IngestService) ingest(ctx context.Context, url, title string, pages []string, paginated bool) (*types.IngestionResult, error) {
	if len(pages) == 0 {
		return nil, &types.IngestionError{
			URL:        url,
			PageErrors: map[int]error{0: errors.New("document has no text")},
		}
	}

	postedAt := s.now().UTC()
	metaID, err := s.store.InsertMeta(ctx, MetaRecordID(url), &types.MetaRecord{
		Title:    title,
		URL:      url,
		PostedAt: postedAt,
	})
	if err != nil {
		// Without the metadata record the document would be invisible to
		// listings; content is not attempted.
		return nil, &types.IngestionError{
			URL:        url,
			PageErrors: map[int]error{0: err},
		}
	}

	// Page numbers are fixed before the writes are dispatched, so completion
	// order cannot corrupt page attribution.
	ids := make([]string, len(pages))
	errs := make([]error, len(pages))
	var wg sync.WaitGroup
	for i, pageText := range pages {
		page := 0
		content := pageText
		if paginated {
			page = i + 1
			content = fmt.Sprintf("Page %d: %s", page, pageText)
		}
		wg.Add(1)
		go func(i, page int, content string) {
			defer wg.Done()
			ids[i], errs[i] = s.store.InsertContent(ctx, ContentRecordID(url, page), &types.ContentRecord{
				Content:  content,
				Title:    title,
				URL:      url,
				PostedAt: postedAt,
				Page:     page,
			})
		}(i, page, content)
	}
	wg.Wait()

	result := &types.IngestionResult{MetaID: metaID}
	failed := make(map[int]error)
	for i := range pages {
		if errs[i] != nil {
			page := i
			if paginated {
				page = i + 1
			}
			failed[page] = errs[i]
			continue
		}
		result.ContentIDs = append(result.ContentIDs, ids[i])
	}
	if len(failed) > 0 {
		return result, &types.IngestionError{
			URL:        url,
			MetaID:     metaID,
			ContentIDs: result.ContentIDs,
			PageErrors: failed,
		}
	}
	return result, nil
}
