package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/neproger/docbot/service"
	"github.com/neproger/docbot/types"
)

type ChatHandler struct {
	agent *service.AgentService
}

func NewChatHandler(agent *service.AgentService) *ChatHandler {
	return &ChatHandler{
		agent: agent,
	}
}

func (h *ChatHandler) HandleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var chatRequest types.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&chatRequest); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if chatRequest.ChatID == "" || chatRequest.Message == "" {
			http.Error(w, "chat_id and message are required", http.StatusBadRequest)
			return
		}

		reply, err := h.agent.HandleMessage(r.Context(), chatRequest.ChatID, chatRequest.Message)
		if err != nil {
			status := http.StatusBadGateway
			message := "The assistant is unavailable. Please try again."
			if errors.Is(err, types.ErrAgentTimeout) {
				status = http.StatusGatewayTimeout
				message = "The request took too long. Please try again."
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(types.DataResponse{
				Status:  false,
				Message: message,
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(
			types.DataResponse{
				Status: true,
				Data: types.ChatResponse{
					ChatID: chatRequest.ChatID,
					Reply:  reply,
				},
			},
		)
	}
}
