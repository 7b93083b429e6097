package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neproger/docbot/config"
	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
)

func newTestAgent(ai AIService, registry *ToolRegistry, store *memoryMessageStore, maxRounds int) *AgentService {
	return NewAgentService(ai, registry, store, config.AgentConfig{
		MaxToolRounds: maxRounds,
		TimeoutSecs:   30,
	})
}

func TestHandleMessageDirectReply(t *testing.T) {
	ai := &fakeAI{outputs: []*types.ModelOutput{{Content: "hello there"}}}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, NewToolRegistry(), store, 5)

	reply, err := agent.HandleMessage(context.Background(), "chat-1", "hi")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("expected model content as reply, got %q", reply)
	}

	history, _ := store.History(context.Background(), "chat-1")
	if len(history) != 3 {
		t.Fatalf("expected system+user+assistant persisted, got %d messages", len(history))
	}
	if history[0].Role != types.RoleSystem {
		t.Fatalf("first persisted message should be the system prompt, got role %s", history[0].Role)
	}
	if history[1].Role != types.RoleUser || history[1].Content != "hi" {
		t.Fatalf("user message not persisted: %+v", history[1])
	}
	if history[2].Role != types.RoleAssistant || history[2].Content != "hello there" {
		t.Fatalf("assistant reply not persisted: %+v", history[2])
	}
}

func TestHandleMessageSystemPromptOnlyOnFirstTurn(t *testing.T) {
	ai := &fakeAI{outputs: []*types.ModelOutput{{Content: "ok"}}}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, NewToolRegistry(), store, 5)

	ctx := context.Background()
	if _, err := agent.HandleMessage(ctx, "chat-1", "first"); err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
	if _, err := agent.HandleMessage(ctx, "chat-1", "second"); err != nil {
		t.Fatalf("second turn failed: %v", err)
	}

	history, _ := store.History(ctx, "chat-1")
	if len(history) != 5 {
		t.Fatalf("expected 5 persisted messages after two turns, got %d", len(history))
	}
	systemCount := 0
	for _, msg := range history {
		if msg.Role == types.RoleSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Fatalf("expected exactly one system message, got %d", systemCount)
	}
	// The second model call must have seen the full prior exchange
	last := ai.messages[len(ai.messages)-1]
	if len(last) != 5 {
		t.Fatalf("second call should carry 5 messages, got %d", len(last))
	}
}

func TestHandleMessageToolRoundTrip(t *testing.T) {
	store := newFakeVectorStore()
	store.queryResults = []types.ContentRecord{
		{Content: "Page 2: budget rose 4%", Title: "report.pdf", URL: "/tmp/report.pdf", Page: 2},
	}
	registry := NewToolRegistry()
	if err := RegisterRAGTools(registry, NewRetrievalService(store)); err != nil {
		t.Fatalf("register tools: %v", err)
	}

	ai := &fakeAI{outputs: []*types.ModelOutput{
		{ToolCalls: []types.ToolCall{{
			ID:        "call-1",
			Name:      TOOL_SEARCH_DOCUMENTS,
			Arguments: []byte(`{"query": "budget"}`),
		}}},
		{Content: "The budget rose 4 percent, see report.pdf page 2."},
	}}
	messages := newMemoryMessageStore()
	agent := newTestAgent(ai, registry, messages, 5)

	reply, err := agent.HandleMessage(context.Background(), "chat-1", "what happened to the budget?")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(reply, "report.pdf") {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if ai.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", ai.calls)
	}

	// The second model call carries the tool result for the first call
	second := ai.messages[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != types.RoleTool || toolMsg.ToolCallID != "call-1" {
		t.Fatalf("expected tool result routed back to the model, got %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "report.pdf") {
		t.Fatalf("tool result missing search hits: %q", toolMsg.Content)
	}

	history, _ := messages.History(context.Background(), "chat-1")
	// system, user, assistant(tool call), tool, assistant(final)
	if len(history) != 5 {
		t.Fatalf("expected full turn persisted, got %d messages", len(history))
	}
}

func TestHandleMessageListDocuments(t *testing.T) {
	store := newFakeVectorStore()
	ctx := context.Background()
	store.InsertMeta(ctx, "id-1", &types.MetaRecord{Title: "report.pdf", URL: "/tmp/report.pdf", PostedAt: time.Now()})
	store.InsertMeta(ctx, "id-2", &types.MetaRecord{Title: "notes.txt", URL: "/tmp/notes.txt", PostedAt: time.Now()})

	registry := NewToolRegistry()
	if err := RegisterRAGTools(registry, NewRetrievalService(store)); err != nil {
		t.Fatalf("register tools: %v", err)
	}
	ai := &fakeAI{outputs: []*types.ModelOutput{
		{ToolCalls: []types.ToolCall{{ID: "call-1", Name: TOOL_LIST_DOCUMENTS, Arguments: []byte(`{}`)}}},
		{Content: "You have report.pdf and notes.txt."},
	}}
	agent := newTestAgent(ai, registry, newMemoryMessageStore(), 5)

	reply, err := agent.HandleMessage(ctx, "chat-1", "what documents do you have?")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(reply, "report.pdf") || !strings.Contains(reply, "notes.txt") {
		t.Fatalf("unexpected reply: %q", reply)
	}

	second := ai.messages[1]
	toolMsg := second[len(second)-1]
	if !strings.Contains(toolMsg.Content, "report.pdf") || !strings.Contains(toolMsg.Content, "notes.txt") {
		t.Fatalf("listing tool result missing titles: %q", toolMsg.Content)
	}
}

func TestHandleMessageLoopCap(t *testing.T) {
	registry := NewToolRegistry()
	dispatched := 0
	def := types.ToolDefinition{
		Name:       "busywork",
		Parameters: jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
	}
	err := registry.Register(def, func(ctx context.Context, args []byte) (any, error) {
		dispatched++
		return "again", nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// The model never stops asking for the tool
	ai := &fakeAI{outputs: []*types.ModelOutput{
		{ToolCalls: []types.ToolCall{{ID: "c", Name: "busywork", Arguments: []byte(`{}`)}}},
	}}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, registry, store, 2)

	reply, err := agent.HandleMessage(context.Background(), "chat-1", "go")
	if err != nil {
		t.Fatalf("loop cap must not surface as an error, got %v", err)
	}
	if reply != LoopExceededReply {
		t.Fatalf("expected fallback reply, got %q", reply)
	}
	if dispatched > 2 {
		t.Fatalf("tool dispatched %d times, cap is 2", dispatched)
	}

	history, _ := store.History(context.Background(), "chat-1")
	last := history[len(history)-1]
	if last.Role != types.RoleAssistant || last.Content != LoopExceededReply {
		t.Fatalf("fallback reply not persisted as final assistant message: %+v", last)
	}
}

func TestHandleMessageModelFailureLeavesHistoryUntouched(t *testing.T) {
	ai := &fakeAI{err: errors.New("backend down")}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, NewToolRegistry(), store, 5)

	_, err := agent.HandleMessage(context.Background(), "chat-1", "hi")
	if !errors.Is(err, types.ErrAgentUnavailable) {
		t.Fatalf("expected ErrAgentUnavailable, got %v", err)
	}

	history, _ := store.History(context.Background(), "chat-1")
	if len(history) != 0 {
		t.Fatalf("failed turn must not write history, found %d messages", len(history))
	}
}

func TestHandleMessageCanceledTurnReportsTimeout(t *testing.T) {
	ai := &fakeAI{err: context.Canceled}
	agent := newTestAgent(ai, NewToolRegistry(), newMemoryMessageStore(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agent.HandleMessage(ctx, "chat-1", "hi")
	if !errors.Is(err, types.ErrAgentTimeout) {
		t.Fatalf("expected ErrAgentTimeout, got %v", err)
	}
}

func TestHandleMessageToolFailureFoldedIntoTurn(t *testing.T) {
	registry := NewToolRegistry()
	def := types.ToolDefinition{
		Name:       "flaky",
		Parameters: jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
	}
	err := registry.Register(def, func(ctx context.Context, args []byte) (any, error) {
		return nil, errors.New("store unreachable")
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ai := &fakeAI{outputs: []*types.ModelOutput{
		{ToolCalls: []types.ToolCall{{ID: "c", Name: "flaky", Arguments: []byte(`{}`)}}},
		{Content: "I could not check that right now."},
	}}
	agent := newTestAgent(ai, registry, newMemoryMessageStore(), 5)

	reply, err := agent.HandleMessage(context.Background(), "chat-1", "check")
	if err != nil {
		t.Fatalf("tool failure must not abort the turn, got %v", err)
	}
	if reply != "I could not check that right now." {
		t.Fatalf("unexpected reply: %q", reply)
	}

	second := ai.messages[1]
	toolMsg := second[len(second)-1]
	if !strings.Contains(toolMsg.Content, "tool call failed") {
		t.Fatalf("failure not surfaced to the model: %q", toolMsg.Content)
	}
}

func TestHandleMessageMalformedToolCallBecomesDirectReply(t *testing.T) {
	ai := &fakeAI{outputs: []*types.ModelOutput{
		{ToolCalls: []types.ToolCall{{ID: "c", Name: "", Arguments: []byte(`just some text`)}}},
	}}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, NewToolRegistry(), store, 5)

	reply, err := agent.HandleMessage(context.Background(), "chat-1", "hi")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if reply != "just some text" {
		t.Fatalf("malformed call payload should surface as text, got %q", reply)
	}
	if ai.calls != 1 {
		t.Fatalf("expected a single model call, got %d", ai.calls)
	}
}

func TestHandleMessageThreadsAreIndependent(t *testing.T) {
	ai := &fakeAI{outputs: []*types.ModelOutput{{Content: "ok"}}}
	store := newMemoryMessageStore()
	agent := newTestAgent(ai, NewToolRegistry(), store, 5)

	ctx := context.Background()
	if _, err := agent.HandleMessage(ctx, "chat-a", "hi"); err != nil {
		t.Fatalf("chat-a turn failed: %v", err)
	}
	if _, err := agent.HandleMessage(ctx, "chat-b", "hi"); err != nil {
		t.Fatalf("chat-b turn failed: %v", err)
	}

	historyA, _ := store.History(ctx, "chat-a")
	historyB, _ := store.History(ctx, "chat-b")
	if len(historyA) != 3 || len(historyB) != 3 {
		t.Fatalf("threads must not share history: a=%d b=%d", len(historyA), len(historyB))
	}
}
