package push

import (
	"encoding/json"
	"time"
)

// Envelope is the JSON body of every pushed frame. Heartbeat frames carry
// Type "heartbeat" and must be filtered by consumers; every other Type is a
// ticket event kind.
type Envelope struct {
	Type      string    `json:"type"`
	TicketID  string    `json:"ticketId,omitempty"`
	Event     string    `json:"event,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const heartbeatType = "heartbeat"

// EncodeFrame renders an envelope as a text event stream frame:
// `data: <JSON>\n\n`.
func EncodeFrame(envelope Envelope) ([]byte, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(body)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, body...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}
