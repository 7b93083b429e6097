package database

import (
	"context"

	"github.com/neproger/docbot/types"
)

const (
	CONTENT_CLASS = "Documents"
	META_CLASS    = "DocumentsMeta"
)

// VectorStore defines the contract for the vector-capable document store
type VectorStore interface {
	// EnsureSchema verifies or creates the content and metadata collections.
	// Safe to call on every startup; never overwrites an existing schema.
	EnsureSchema(ctx context.Context) error

	// InsertContent writes one content record under the given id and returns
	// the stored identifier
	InsertContent(ctx context.Context, id string, rec *types.ContentRecord) (string, error)

	// InsertMeta writes one metadata record under the given id
	InsertMeta(ctx context.Context, id string, rec *types.MetaRecord) (string, error)

	// QueryContent returns up to limit content records ranked by semantic
	// similarity to text. An empty result is not an error.
	QueryContent(ctx context.Context, text string, limit int) ([]types.ContentRecord, error)

	// IterateMeta walks every metadata record in store order, paging
	// internally so collections larger than memory stay bounded. Returning an
	// error from fn stops the walk.
	IterateMeta(ctx context.Context, fn func(types.MetaRecord) error) error
}

// MessageStore keeps the ordered, append-only message history of each
// conversation thread
type MessageStore interface {
	History(ctx context.Context, chatID string) ([]types.Message, error)
	Append(ctx context.Context, chatID string, msgs []types.Message) error
}
