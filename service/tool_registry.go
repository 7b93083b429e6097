package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
)

type registeredTool struct {
	def     types.ToolDefinition
	handler types.FunctionHandler
}

// ToolRegistry holds the callable capabilities offered to the agent and
// validates arguments before any handler runs.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]registeredTool),
	}
}

func (r *ToolRegistry) Register(def types.ToolDefinition, handler types.FunctionHandler) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = registeredTool{def: def, handler: handler}
	r.order = append(r.order, def.Name)
	return nil
}

// Definitions returns the declared tools in registration order
func (r *ToolRegistry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]types.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Dispatch resolves and runs one tool call. Arguments are checked against the
// tool's declared schema first; the handler never sees invalid input.
func (r *ToolRegistry) Dispatch(ctx context.Context, call types.ToolCall) (*types.ToolResult, error) {
	r.mu.RLock()
	tool, exists := r.tools[call.Name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownTool, call.Name)
	}

	raw := call.Arguments
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	var args any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &types.ToolArgumentError{Tool: call.Name, Reason: "arguments are not valid JSON"}
	}
	if !jsonschema.Validate(tool.def.Parameters, args) {
		return nil, &types.ToolArgumentError{Tool: call.Name, Reason: "arguments do not match the declared schema"}
	}

	result, err := tool.handler(ctx, raw)
	if err != nil {
		return nil, &types.ToolExecutionError{Tool: call.Name, Err: err}
	}
	content, err := stringifyResult(result)
	if err != nil {
		return nil, &types.ToolExecutionError{Tool: call.Name, Err: err}
	}
	return &types.ToolResult{
		CallID:  call.ID,
		Name:    call.Name,
		Content: content,
	}, nil
}

func stringifyResult(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool result: %w", err)
		}
		return string(data), nil
	}
}
