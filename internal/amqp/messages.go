package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordAppendedMessage announces that one record was added to a stream.
// It carries only the stream position and the record's date; consumers read
// the stream themselves when they need the record.
type RecordAppendedMessage struct {
	ID      uuid.UUID `json:"id"`
	Stream  string    `json:"stream"`
	Version int64     `json:"version"`
	// Date is the record's own date (YYYY-MM-DD), used to pick the month to re-evaluate.
	Date      string    `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecordAppendedMessage creates a message with a fresh random id.
func NewRecordAppendedMessage(stream string, version int64, date string) *RecordAppendedMessage {
	return &RecordAppendedMessage{
		ID:        uuid.New(),
		Stream:    stream,
		Version:   version,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RecordAppendedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordAppendedMessageFromJSON decodes a message and checks it names a stream.
func RecordAppendedMessageFromJSON(data []byte) (*RecordAppendedMessage, error) {
	var msg RecordAppendedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Stream == "" {
		return nil, fmt.Errorf("message %s has no stream", msg.ID)
	}
	return &msg, nil
}
