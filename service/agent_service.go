package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/neproger/docbot/config"
	"github.com/neproger/docbot/database"
	"github.com/neproger/docbot/types"
)

// Turn states of the conversational agent
type AgentState int

const (
	StateAwaitingInput AgentState = iota
	StateReasoning
	StateToolDispatch
	StateFinalized
)

const DefaultSystemPrompt = "You are a document assistant. You answer questions using the ingested document base. " +
	"Use the available tools to search documents or list what is stored before answering questions about their content."

// Reply returned when the tool loop hits its cap
const LoopExceededReply = "Sorry, I could not complete the request."

// AgentService owns the per-thread reasoning/tool loop. One turn per thread
// runs at a time; distinct threads proceed independently.
type AgentService struct {
	ai            AIService
	registry      *ToolRegistry
	messages      database.MessageStore
	maxToolRounds int
	turnTimeout   time.Duration
	systemPrompt  string

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

func NewAgentService(ai AIService, registry *ToolRegistry, messages database.MessageStore, cfg config.AgentConfig) *AgentService {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return &AgentService{
		ai:            ai,
		registry:      registry,
		messages:      messages,
		maxToolRounds: cfg.MaxToolRounds,
		turnTimeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		systemPrompt:  prompt,
		threads:       make(map[string]*sync.Mutex),
	}
}

// HandleMessage runs one full turn for the thread: load history, reason,
// dispatch requested tools, and persist the outcome. History is only written
// when the turn finalizes, so a failed turn leaves the thread untouched.
func (s *AgentService) HandleMessage(ctx context.Context, chatID, text string) (string, error) {
	lock := s.threadLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}

	history, err := s.messages.History(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("%w: history load failed: %v", types.ErrAgentUnavailable, err)
	}

	// Messages produced by this turn; persisted together on finalization
	turn := make([]types.Message, 0, 4)
	if len(history) == 0 {
		turn = append(turn, types.Message{Role: types.RoleSystem, Content: s.systemPrompt})
	}
	turn = append(turn, types.Message{Role: types.RoleUser, Content: text})

	msgs := make([]types.Message, 0, len(history)+len(turn))
	msgs = append(msgs, history...)
	msgs = append(msgs, turn...)

	state := StateReasoning
	for round := 0; ; round++ {
		out, err := s.ai.Chat(ctx, msgs, s.registry.Definitions())
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %v", types.ErrAgentTimeout, ctx.Err())
			}
			return "", fmt.Errorf("%w: %v", types.ErrAgentUnavailable, err)
		}

		calls := wellFormedCalls(out.ToolCalls)
		if len(calls) == 0 {
			state = StateFinalized
			reply := directReply(out)
			turn = append(turn, types.Message{Role: types.RoleAssistant, Content: reply})
			if err := s.finalize(ctx, chatID, turn); err != nil {
				return "", err
			}
			return reply, nil
		}

		if round >= s.maxToolRounds {
			log.Printf("chat %s: %v after %d rounds (state %d)", chatID, types.ErrAgentLoopExceeded, round, state)
			turn = append(turn, types.Message{Role: types.RoleAssistant, Content: LoopExceededReply})
			if err := s.finalize(ctx, chatID, turn); err != nil {
				return "", err
			}
			return LoopExceededReply, nil
		}

		state = StateToolDispatch
		assistant := types.Message{
			Role:      types.RoleAssistant,
			Content:   out.Content,
			ToolCalls: calls,
		}
		turn = append(turn, assistant)
		msgs = append(msgs, assistant)

		for _, call := range calls {
			toolMsg := types.Message{
				Role:       types.RoleTool,
				Name:       call.Name,
				ToolCallID: call.ID,
			}
			result, err := s.registry.Dispatch(ctx, call)
			if err != nil {
				// Folded into the next model turn instead of aborting the
				// conversation
				log.Printf("chat %s: tool %s failed: %v", chatID, call.Name, err)
				toolMsg.Content = fmt.Sprintf("tool call failed: %v", err)
			} else {
				toolMsg.Content = result.Content
			}
			turn = append(turn, toolMsg)
			msgs = append(msgs, toolMsg)
		}
		state = StateReasoning
	}
}

func (s *AgentService) finalize(ctx context.Context, chatID string, turn []types.Message) error {
	if err := s.messages.Append(ctx, chatID, turn); err != nil {
		return fmt.Errorf("%w: history write failed: %v", types.ErrAgentUnavailable, err)
	}
	return nil
}

func (s *AgentService) threadLock(chatID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, exists := s.threads[chatID]
	if !exists {
		lock = &sync.Mutex{}
		s.threads[chatID] = lock
	}
	return lock
}

// wellFormedCalls drops tool calls whose payload does not parse as a named
// call with a JSON object argument body. A model output with no usable call
// left is treated as a direct reply.
func wellFormedCalls(calls []types.ToolCall) []types.ToolCall {
	kept := make([]types.ToolCall, 0, len(calls))
	for _, call := range calls {
		if call.Name == "" {
			continue
		}
		if len(call.Arguments) > 0 {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(call.Arguments, &obj); err != nil {
				continue
			}
		}
		kept = append(kept, call)
	}
	return kept
}

func directReply(out *types.ModelOutput) string {
	if out.Content != "" {
		return out.Content
	}
	// Degraded path: a tool-call shaped output that did not parse is still
	// surfaced as text rather than dropped.
	for _, call := range out.ToolCalls {
		if len(call.Arguments) > 0 {
			return string(call.Arguments)
		}
	}
	return ""
}
