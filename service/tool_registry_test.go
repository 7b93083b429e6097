package service

import (
	"context"
	"errors"
	"testing"

	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
)

func searchToolDefinition() types.ToolDefinition {
	return types.ToolDefinition{
		Name:        "search_documents",
		Description: "Search the document base",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String},
				"limit": {Type: jsonschema.Integer},
			},
			Required: []string{"query"},
		},
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args []byte) (any, error) { return "ok", nil }

	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	err := registry.Register(searchToolDefinition(), handler)
	if !errors.Is(err, types.ErrDuplicateTool) {
		t.Fatalf("expected ErrDuplicateTool, got %v", err)
	}
	if got := len(registry.Definitions()); got != 1 {
		t.Fatalf("expected 1 registered tool, got %d", got)
	}
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args []byte) (any, error) { return nil, nil }
	names := []string{"charlie", "alpha", "bravo"}
	for _, name := range names {
		def := types.ToolDefinition{Name: name, Parameters: jsonschema.Definition{Type: jsonschema.Object}}
		if err := registry.Register(def, handler); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	defs := registry.Definitions()
	if len(defs) != len(names) {
		t.Fatalf("expected %d definitions, got %d", len(names), len(defs))
	}
	for i, name := range names {
		if defs[i].Name != name {
			t.Fatalf("definition %d: expected %s, got %s", i, name, defs[i].Name)
		}
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	registry := NewToolRegistry()
	_, err := registry.Dispatch(context.Background(), types.ToolCall{Name: "nonexistent"})
	if !errors.Is(err, types.ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestDispatchRejectsInvalidJSONBeforeHandler(t *testing.T) {
	registry := NewToolRegistry()
	invoked := false
	handler := func(ctx context.Context, args []byte) (any, error) {
		invoked = true
		return nil, nil
	}
	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := registry.Dispatch(context.Background(), types.ToolCall{
		Name:      "search_documents",
		Arguments: []byte(`{"query":`),
	})
	var argErr *types.ToolArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ToolArgumentError, got %v", err)
	}
	if invoked {
		t.Fatal("handler must not run on invalid JSON arguments")
	}
}

func TestDispatchRejectsSchemaViolationBeforeHandler(t *testing.T) {
	registry := NewToolRegistry()
	invoked := false
	handler := func(ctx context.Context, args []byte) (any, error) {
		invoked = true
		return nil, nil
	}
	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Missing the required "query" field
	_, err := registry.Dispatch(context.Background(), types.ToolCall{
		Name:      "search_documents",
		Arguments: []byte(`{"limit": 3}`),
	})
	var argErr *types.ToolArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ToolArgumentError, got %v", err)
	}
	if argErr.Tool != "search_documents" {
		t.Fatalf("expected error to name the tool, got %q", argErr.Tool)
	}
	if invoked {
		t.Fatal("handler must not run when arguments fail schema validation")
	}
}

func TestDispatchPassesValidatedArguments(t *testing.T) {
	registry := NewToolRegistry()
	var seen []byte
	handler := func(ctx context.Context, args []byte) (any, error) {
		seen = args
		return "found it", nil
	}
	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := registry.Dispatch(context.Background(), types.ToolCall{
		ID:        "call-1",
		Name:      "search_documents",
		Arguments: []byte(`{"query": "quarterly budget"}`),
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if string(seen) != `{"query": "quarterly budget"}` {
		t.Fatalf("handler saw unexpected arguments: %s", seen)
	}
	if result.Content != "found it" {
		t.Fatalf("expected string result passthrough, got %q", result.Content)
	}
	if result.CallID != "call-1" || result.Name != "search_documents" {
		t.Fatalf("result not tagged with call identity: %+v", result)
	}
}

func TestDispatchWrapsHandlerError(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args []byte) (any, error) {
		return nil, errors.New("store unreachable")
	}
	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := registry.Dispatch(context.Background(), types.ToolCall{
		Name:      "search_documents",
		Arguments: []byte(`{"query": "x"}`),
	})
	var execErr *types.ToolExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ToolExecutionError, got %v", err)
	}
	if execErr.Tool != "search_documents" {
		t.Fatalf("expected error to name the tool, got %q", execErr.Tool)
	}
}

func TestDispatchEncodesStructResults(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args []byte) (any, error) {
		return map[string]int{"pages": 3}, nil
	}
	if err := registry.Register(searchToolDefinition(), handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := registry.Dispatch(context.Background(), types.ToolCall{
		Name:      "search_documents",
		Arguments: []byte(`{"query": "x"}`),
	})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Content != `{"pages":3}` {
		t.Fatalf("expected JSON encoded result, got %q", result.Content)
	}
}

func TestDispatchTreatsMissingArgumentsAsEmptyObject(t *testing.T) {
	registry := NewToolRegistry()
	handler := func(ctx context.Context, args []byte) (any, error) {
		return "listed", nil
	}
	def := types.ToolDefinition{
		Name:       "list_documents",
		Parameters: jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
	}
	if err := registry.Register(def, handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := registry.Dispatch(context.Background(), types.ToolCall{Name: "list_documents"})
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if result.Content != "listed" {
		t.Fatalf("expected handler result, got %q", result.Content)
	}
}
