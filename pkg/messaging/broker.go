package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Message is the envelope published for every case event. HospitalID lets
// subscribers drop events of hospitals they do not serve without decoding
// the payload.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	HospitalID int64           `json:"hospital_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
}

// Subscriber delivers decoded messages until ctx ends. Malformed payloads
// are skipped.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan Message, error)
}

type Broker interface {
	Publisher
	Subscriber
	Close() error
}
