package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change to the ledger.
type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	// EventMemberRenamed invalidates every exported row naming the member.
	EventMemberRenamed EventType = "member.renamed"
)

// LedgerEvent is a lightweight notification; consumers read current state
// from the store rather than trusting a payload.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	MemberID      int64     `json:"member_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(t EventType, transactionID int64) *LedgerEvent {
	return &LedgerEvent{Type: t, TransactionID: transactionID, Timestamp: time.Now()}
}

func NewMemberRenamedEvent(memberID int64) *LedgerEvent {
	return &LedgerEvent{Type: EventMemberRenamed, MemberID: memberID, Timestamp: time.Now()}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes and validates an event.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		if e.TransactionID <= 0 {
			return nil, fmt.Errorf("event %s without transaction id", e.Type)
		}
	case EventMemberRenamed:
		if e.MemberID <= 0 {
			return nil, fmt.Errorf("event %s without member id", e.Type)
		}
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
