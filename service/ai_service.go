package service

import (
	"context"

	"github.com/neproger/docbot/types"
)

// AIService is one model invocation: full history in, either a direct reply
// or tool-call requests out. Tool execution is the agent's job, not the
// backend's.
type AIService interface {
	Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition) (*types.ModelOutput, error)
}
