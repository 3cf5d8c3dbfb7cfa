package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeSubscribe   MessageType = "SUBSCRIBE_EVENT"
	MessageTypeUnsubscribe MessageType = "UNSUBSCRIBE_EVENT"

	// Server to Client
	MessageTypeSubscribed      MessageType = "SUBSCRIBED"
	MessageTypeScheduleUpdated MessageType = "SCHEDULE_UPDATED"
	MessageTypeError           MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type SubscribePayload struct {
	// EventID is the event id or its short code.
	EventID string `json:"eventId"`
}

// Server to Client payloads

type SubscribedPayload struct {
	EventID     string `json:"eventId"`
	ShortCode   string `json:"shortCode"`
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
}

type ScheduleUpdatedPayload struct {
	EventID   string  `json:"eventId"`
	Kind      string  `json:"kind"`
	FromRound int     `json:"fromRound"`
	MatchID   *string `json:"matchId,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
