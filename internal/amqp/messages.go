package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RoutingKeySnapshotChanged routes snapshot change notifications. Every
// consumer queue is bound with it so each one sees every change.
const RoutingKeySnapshotChanged = "snapshot.changed"

// SnapshotChangedMessage announces that a user's entry snapshot was
// persisted. Consumers reload the snapshot themselves; the message carries
// no entries.
type SnapshotChangedMessage struct {
	UserID    string    `json:"user_id"`
	Origin    string    `json:"origin"`
	Revision  int64     `json:"revision"`
	Entries   int       `json:"entries"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshotChangedMessage creates a message stamped with the current time.
func NewSnapshotChangedMessage(userID, origin string, revision int64, entries int) *SnapshotChangedMessage {
	return &SnapshotChangedMessage{
		UserID:    userID,
		Origin:    origin,
		Revision:  revision,
		Entries:   entries,
		Timestamp: time.Now().UTC(),
	}
}

// IsFrom reports whether the change was published by the instance with the
// given origin id.
func (m *SnapshotChangedMessage) IsFrom(origin string) bool {
	return origin != "" && m.Origin == origin
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotChangedMessageFromJSON decodes and validates a message.
func SnapshotChangedMessageFromJSON(data []byte) (*SnapshotChangedMessage, error) {
	var msg SnapshotChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("snapshot message without user_id")
	}
	return &msg, nil
}
