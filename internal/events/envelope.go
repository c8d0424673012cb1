package events

import (
	"encoding/json"
	"time"
)

// PushEnvelope is the wire format published to the notification gateway.
// Method names a stable client-side handler; Payload is the serialized event.
type PushEnvelope struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}
