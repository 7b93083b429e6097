package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/neproger/docbot/types"
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/api/option"
)

// GeminiService implements AIService on top of the Gemini API. Several API
// keys can be supplied; on a failed call the service rotates to the next key
// and retries once.
type GeminiService struct {
	apiKeys    []string
	currentKey int
	client     *genai.Client
	model      *genai.GenerativeModel
	modelName  string
	mu         sync.Mutex
}

func NewGeminiService(apiKeys []string, modelName string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}

	service := &GeminiService{
		apiKeys:    apiKeys,
		currentKey: 0,
		modelName:  modelName,
	}

	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) initClient() error {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	s.model = client.GenerativeModel(s.modelName)
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		return err
	}
	return s.initClient()
}

func (s *GeminiService) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition) (*types.ModelOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	system, contents := toGeminiContents(messages)
	if len(contents) == 0 {
		return nil, errors.New("no message to send")
	}
	last := contents[len(contents)-1]
	history := contents[:len(contents)-1]

	s.model.SystemInstruction = system
	s.model.Tools = toGeminiTools(tools)

	chat := s.model.StartChat()
	chat.History = history

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		// Try rotating API key if there's an error
		if err := s.rotateAPIKey(); err != nil {
			return nil, err
		}
		s.model.SystemInstruction = system
		s.model.Tools = toGeminiTools(tools)
		chat = s.model.StartChat()
		chat.History = history
		resp, err = chat.SendMessage(ctx, last.Parts...)
		if err != nil {
			return nil, err
		}
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("no response generated")
	}

	out := &types.ModelOutput{}
	candidate := resp.Candidates[0]
	for _, call := range candidate.FunctionCalls() {
		args, err := json.Marshal(call.Args)
		if err != nil {
			args = []byte("{}")
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			// Gemini does not issue call ids; the function name is enough to
			// pair the response part with its call.
			ID:        call.Name,
			Name:      call.Name,
			Arguments: args,
		})
	}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.Content += string(text)
			}
		}
	}
	return out, nil
}

func toGeminiContents(messages []types.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			system = &genai.Content{Parts: []genai.Part{genai.Text(msg.Content)}}
		case types.RoleAssistant:
			parts := []genai.Part{}
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				json.Unmarshal(call.Arguments, &args)
				parts = append(parts, genai.FunctionCall{Name: call.Name, Args: args})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		case types.RoleTool:
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []genai.Part{genai.FunctionResponse{
					Name:     msg.Name,
					Response: map[string]any{"result": msg.Content},
				}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []genai.Part{genai.Text(msg.Content)},
			})
		}
	}
	return system, contents
}

func toGeminiTools(tools []types.ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  toGeminiSchema(tool.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func toGeminiSchema(def jsonschema.Definition) *genai.Schema {
	schema := &genai.Schema{Description: def.Description}
	switch def.Type {
	case jsonschema.Object:
		schema.Type = genai.TypeObject
		schema.Required = def.Required
		if len(def.Properties) > 0 {
			schema.Properties = make(map[string]*genai.Schema, len(def.Properties))
			for name, prop := range def.Properties {
				schema.Properties[name] = toGeminiSchema(prop)
			}
		}
	case jsonschema.Array:
		schema.Type = genai.TypeArray
		if def.Items != nil {
			schema.Items = toGeminiSchema(*def.Items)
		}
	case jsonschema.Integer:
		schema.Type = genai.TypeInteger
	case jsonschema.Number:
		schema.Type = genai.TypeNumber
	case jsonschema.Boolean:
		schema.Type = genai.TypeBoolean
	default:
		schema.Type = genai.TypeString
		schema.Enum = def.Enum
	}
	return schema
}
