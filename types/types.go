package types

const (
	TypeWebsocketPing  = "ping"
	TypeWebsocketPong  = "pong"
	TypeWebsocketChat  = "chat"
	TypeWebsocketError = "error"
)

type WebsocketRequest struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketChatPayload struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type WebSocketResponse struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type WebSocketChatResponse struct {
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}
