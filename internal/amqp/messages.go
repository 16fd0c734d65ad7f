package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind names what happened to a ledger record.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventSettled EventKind = "settled"
	EventWiped   EventKind = "wiped"
)

// LedgerEventMessage is the slim payload published after each committed
// ledger mutation. The worker fetches full rows from the database, so the
// message carries ids only.
type LedgerEventMessage struct {
	UserID        string    `json:"user_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Kind          EventKind `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerEventMessage(userID, transactionID string, kind EventKind) *LedgerEventMessage {
	return &LedgerEventMessage{
		UserID:        userID,
		TransactionID: transactionID,
		Kind:          kind,
		Timestamp:     time.Now(),
	}
}

func (m *LedgerEventMessage) Validate() error {
	if m.UserID == "" {
		return fmt.Errorf("missing user_id")
	}
	switch m.Kind {
	case EventCreated, EventSettled:
		if m.TransactionID == "" {
			return fmt.Errorf("missing transaction_id for kind %q", m.Kind)
		}
	case EventWiped:
	default:
		return fmt.Errorf("unknown event kind %q", m.Kind)
	}
	return nil
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
