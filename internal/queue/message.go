package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message is the producer to consumer job descriptor.
type Message struct {
	ExecutionID         string    `json:"execution_id"`
	SourceLocation      string    `json:"source_location"`
	DestinationLocation string    `json:"destination_location"`
	CallbackURL         string    `json:"callback_url,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type wireMessage struct {
	ExecutionID         string  `json:"execution_id"`
	SourceLocation      string  `json:"source_location"`
	InputFolder         string  `json:"input_folder"`
	DestinationLocation string  `json:"destination_location"`
	CallbackURL         *string `json:"callback_url"`
	CreatedAt           string  `json:"created_at"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts input_folder in place of source_location and any
// created_at layout in createdAtLayouts. An unparseable timestamp is dropped.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	out := Message{
		ExecutionID:         strings.TrimSpace(wire.ExecutionID),
		SourceLocation:      strings.TrimSpace(wire.SourceLocation),
		DestinationLocation: strings.TrimSpace(wire.DestinationLocation),
	}
	if out.SourceLocation == "" {
		out.SourceLocation = strings.TrimSpace(wire.InputFolder)
	}
	if wire.CallbackURL != nil {
		out.CallbackURL = strings.TrimSpace(*wire.CallbackURL)
	}
	if ts := strings.TrimSpace(wire.CreatedAt); ts != "" {
		for _, layout := range createdAtLayouts {
			if parsed, err := time.Parse(layout, ts); err == nil {
				out.CreatedAt = parsed.UTC()
				break
			}
		}
	}
	*m = out
	return nil
}

// Missing lists the required fields that are empty.
func (m Message) Missing() []string {
	var missing []string
	if m.ExecutionID == "" {
		missing = append(missing, "execution_id")
	}
	if m.SourceLocation == "" {
		missing = append(missing, "source_location")
	}
	if m.DestinationLocation == "" {
		missing = append(missing, "destination_location")
	}
	return missing
}

// Encode renders m as a queue payload.
func Encode(m Message) ([]byte, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return json.Marshal(m)
}

// Decode parses a queue payload.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	return m, nil
}
