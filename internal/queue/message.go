package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing events.
const (
	EventEnvioEnviado     = "envio.enviado"
	EventHojasVencimiento = "hojas.vencimiento"
)

// MessageVersion is the payload schema version written by this build.
const MessageVersion = 1

// Message is the payload sent to downstream queue consumers.
type Message struct {
	Event      string `json:"event"`
	EnvioID    int64  `json:"envioId,omitempty"`
	HojaID     int64  `json:"hojaId,omitempty"`
	UnidadID   int64  `json:"unidadId,omitempty"`
	Dias       int    `json:"dias,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps an event with the current time and schema version.
func NewMessage(event, requestID string) Message {
	return Message{
		Event:      event,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Event == "" {
		return Message{}, fmt.Errorf("message has no event")
	}
	return msg, nil
}
