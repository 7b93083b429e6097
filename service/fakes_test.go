package service

import (
	"context"
	"errors"
	"sync"

	"github.com/neproger/docbot/types"
)

// fakeVectorStore keeps records in memory, deduplicating by id like the real
// store does for deterministic identifiers.
type fakeVectorStore struct {
	mu           sync.Mutex
	meta         map[string]types.MetaRecord
	metaOrder    []string
	content      map[string]types.ContentRecord
	contentOrder []string

	queryResults []types.ContentRecord
	lastQuery    string
	lastLimit    int

	failMeta  bool
	failPages map[int]bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		meta:      make(map[string]types.MetaRecord),
		content:   make(map[string]types.ContentRecord),
		failPages: make(map[int]bool),
	}
}

func (f *fakeVectorStore) EnsureSchema(ctx context.Context) error { return nil }

func (f *fakeVectorStore) InsertMeta(ctx context.Context, id string, rec *types.MetaRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMeta {
		return "", &types.StoreWriteError{Collection: "DocumentsMeta", Err: errors.New("connection refused")}
	}
	if _, exists := f.meta[id]; !exists {
		f.metaOrder = append(f.metaOrder, id)
	}
	f.meta[id] = *rec
	return id, nil
}

func (f *fakeVectorStore) InsertContent(ctx context.Context, id string, rec *types.ContentRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPages[rec.Page] {
		return "", &types.StoreWriteError{Collection: "Documents", Err: errors.New("connection refused")}
	}
	if _, exists := f.content[id]; !exists {
		f.contentOrder = append(f.contentOrder, id)
	}
	f.content[id] = *rec
	return id, nil
}

func (f *fakeVectorStore) QueryContent(ctx context.Context, text string, limit int) ([]types.ContentRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = text
	f.lastLimit = limit
	if limit > len(f.queryResults) {
		limit = len(f.queryResults)
	}
	return append([]types.ContentRecord{}, f.queryResults[:limit]...), nil
}

func (f *fakeVectorStore) IterateMeta(ctx context.Context, fn func(types.MetaRecord) error) error {
	f.mu.Lock()
	order := append([]string{}, f.metaOrder...)
	records := make([]types.MetaRecord, 0, len(order))
	for _, id := range order {
		records = append(records, f.meta[id])
	}
	f.mu.Unlock()
	for _, rec := range records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVectorStore) contentRecords() []types.ContentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]types.ContentRecord, 0, len(f.contentOrder))
	for _, id := range f.contentOrder {
		records = append(records, f.content[id])
	}
	return records
}

// fakeAI replays scripted model outputs in order, repeating the last one
type fakeAI struct {
	mu       sync.Mutex
	outputs  []*types.ModelOutput
	err      error
	calls    int
	messages [][]types.Message
	tools    []types.ToolDefinition
}

func (f *fakeAI) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition) (*types.ModelOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, append([]types.Message{}, messages...))
	f.tools = tools
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls
	f.calls++
	if i >= len(f.outputs) {
		i = len(f.outputs) - 1
	}
	return f.outputs[i], nil
}

// memoryMessageStore is an in-memory database.MessageStore
type memoryMessageStore struct {
	mu      sync.Mutex
	threads map[string][]types.Message
}

func newMemoryMessageStore() *memoryMessageStore {
	return &memoryMessageStore{threads: make(map[string][]types.Message)}
}

func (s *memoryMessageStore) History(ctx context.Context, chatID string) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message{}, s.threads[chatID]...), nil
}

func (s *memoryMessageStore) Append(ctx context.Context, chatID string, msgs []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[chatID] = append(s.threads[chatID], msgs...)
	return nil
}
