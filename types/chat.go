package types

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation thread
type Message struct {
	Role       string     `bson:"role" json:"role"`
	Content    string     `bson:"content" json:"content"`
	Name       string     `bson:"name,omitempty" json:"name,omitempty"`
	ToolCallID string     `bson:"tool_call_id,omitempty" json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `bson:"tool_calls,omitempty" json:"tool_calls,omitempty"`
}

// ToolCall is a model request to invoke a registered tool
type ToolCall struct {
	ID        string          `bson:"id" json:"id"`
	Name      string          `bson:"name" json:"name"`
	Arguments json.RawMessage `bson:"arguments" json:"arguments"`
}

// ToolResult is the outcome of one tool call, fed back into the next model turn
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// ModelOutput is the typed result of one model invocation: either a direct
// textual reply (ToolCalls empty) or one or more tool-call requests.
type ModelOutput struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolDefinition declares a callable capability offered to the model
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// FunctionHandler is a type for handling tool calls
type FunctionHandler func(ctx context.Context, args []byte) (any, error)

type ChatRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type ChatResponse struct {
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}
