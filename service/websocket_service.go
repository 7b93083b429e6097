package service

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/neproger/docbot/types"
)

// WebSocketService is the chat-connector surface: it delivers
// (chat id, user text) events to the agent and writes replies back.
type WebSocketService struct {
	agent    *AgentService
	upgrader websocket.Upgrader
}

func NewWebSocketService(agent *AgentService) *WebSocketService {
	return &WebSocketService{
		agent: agent,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins (adjust for production)
			},
		},
	}
}

func (s *WebSocketService) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade error:", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(512 * 1024) // 512KB max message size
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var req types.WebsocketRequest
		if err := json.Unmarshal(p, &req); err != nil {
			log.Println("Unmarshal error:", err)
			s.writeError(conn, "invalid message")
			continue
		}

		switch req.Type {
		case types.TypeWebsocketChat:
			payloadBytes, err := json.Marshal(req.Payload)
			if err != nil {
				s.writeError(conn, "invalid message")
				continue
			}
			var payload types.WebSocketChatPayload
			if err := json.Unmarshal(payloadBytes, &payload); err != nil || payload.ChatID == "" {
				s.writeError(conn, "chat_id and message are required")
				continue
			}

			reply, err := s.agent.HandleMessage(r.Context(), payload.ChatID, payload.Message)
			if err != nil {
				log.Println("Agent error:", err)
				s.writeError(conn, publicAgentError(err))
				continue
			}
			response := types.WebSocketResponse{
				Type: types.TypeWebsocketChat,
				Payload: types.WebSocketChatResponse{
					ChatID: payload.ChatID,
					Reply:  reply,
				},
			}
			if err := conn.WriteJSON(response); err != nil {
				log.Println("Write error:", err)
			}
		case types.TypeWebsocketPing:
			pongRes := types.WebSocketResponse{
				Type: types.TypeWebsocketPong,
			}
			if err := conn.WriteJSON(pongRes); err != nil {
				log.Println("Write error:", err)
			}
		default:
			s.writeError(conn, "unknown message type")
		}
	}
}

func (s *WebSocketService) writeError(conn *websocket.Conn, message string) {
	res := types.WebSocketResponse{
		Type:    types.TypeWebsocketError,
		Payload: map[string]string{"error": message},
	}
	if err := conn.WriteJSON(res); err != nil {
		log.Println("Write error:", err)
	}
}

// publicAgentError maps agent failures to short, non-leaking user messages
func publicAgentError(err error) string {
	switch {
	case errors.Is(err, types.ErrAgentTimeout):
		return "The request took too long. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
