package realtime

import "encoding/json"

// Event names carried on the realtime channel.
const (
	EventReceive  = "chat:receive"
	EventResponse = "chat:response"
)

// StatusSuccess mirrors the HTTP envelope success code.
const StatusSuccess = 1

// frame is the wire envelope for every channel message.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Broadcast is a server-pushed question/answer pair for a conversation.
type Broadcast struct {
	ChatID   string `json:"chatId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AckData is the payload of a successful send acknowledgment.
type AckData struct {
	HistoryID string `json:"historyId"`
	Answer    string `json:"answer"`
	ChatID    string `json:"chatId"`
	VisitorID string `json:"visitorId"`
}

// Ack acknowledges a locally issued send.
type Ack struct {
	Code    int     `json:"Code"`
	Message string  `json:"Message"`
	Data    AckData `json:"Data"`
}

// Handler receives decoded channel events. Implementations must tolerate
// events for conversations other than the one they currently track.
type Handler interface {
	HandleBroadcast(b Broadcast)
	HandleAck(a Ack)
}
