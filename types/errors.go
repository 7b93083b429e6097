package types

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema means the store schema is missing or could not be created.
	// Fatal at startup.
	ErrSchema = errors.New("vector store schema error")

	// ErrAgentUnavailable means the model backend failed for the current turn
	ErrAgentUnavailable = errors.New("agent unavailable")

	// ErrAgentTimeout means the turn exceeded its wall-clock budget
	ErrAgentTimeout = errors.New("agent turn timed out")

	// ErrAgentLoopExceeded means the tool round-trip cap was hit and the turn
	// finalized with a degraded reply
	ErrAgentLoopExceeded = errors.New("agent tool loop exceeded")

	ErrDuplicateTool = errors.New("tool already registered")
	ErrUnknownTool   = errors.New("unknown tool")
)

// StoreWriteError wraps a failed vector store write. Transient, retryable by
// the caller.
type StoreWriteError struct {
	Collection string
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write to %s failed: %v", e.Collection, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

// StoreQueryError wraps a failed vector store read
type StoreQueryError struct {
	Collection string
	Err        error
}

func (e *StoreQueryError) Error() string {
	return fmt.Sprintf("query on %s failed: %v", e.Collection, e.Err)
}

func (e *StoreQueryError) Unwrap() error { return e.Err }

// IngestionError reports a partially failed ingestion. Records written before
// the failure are kept; PageErrors lists the pages that did not make it so the
// caller can re-drive the document.
type IngestionError struct {
	URL        string
	MetaID     string
	ContentIDs []string
	PageErrors map[int]error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion of %s incomplete: %d page(s) failed", e.URL, len(e.PageErrors))
}

// ToolArgumentError means tool-call arguments failed schema validation; the
// handler was not invoked.
type ToolArgumentError struct {
	Tool   string
	Reason string
}

func (e *ToolArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, e.Reason)
}

// ToolExecutionError wraps a failure inside a tool handler
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
