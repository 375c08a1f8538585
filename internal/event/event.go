package event

import (
	"bytes"
	"encoding/json"
	"time"
)

// Event is the canonical model for every ingested event.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"event_type"` // "signup", "click", etc.
	Timestamp time.Time       `json:"timestamp"`  // caller-supplied, UTC
	Payload   json.RawMessage `json:"payload"`    // opaque document
}

// nullPayload is stored when a submission carries no payload.
var nullPayload = json.RawMessage("null")

// Clone returns a deep copy of ev. Payload bytes are never shared between copies.
func (ev Event) Clone() Event {
	out := ev
	if ev.Payload == nil {
		out.Payload = append(json.RawMessage(nil), nullPayload...)
	} else {
		out.Payload = bytes.Clone(ev.Payload)
	}
	return out
}
