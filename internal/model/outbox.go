package model

import (
	"encoding/json"
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// OutboxMessage is a ledger event waiting to be published. It is written in
// the same database transaction as the ledger rows it describes.
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "hype_outbox_message"
}

// LedgerEvent is the payload published for every committed transaction.
type LedgerEvent struct {
	TransactionNo string                 `json:"transaction_id"`
	UserID        string                 `json:"user_id"`
	Type          string                 `json:"type"`
	Category      string                 `json:"category"`
	Pool          string                 `json:"pool"`
	Amount        int64                  `json:"amount"`
	FreeAfter     int64                  `json:"free_after"`
	PaidAfter     int64                  `json:"paid_after"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt    string                 `json:"occurred_at"`
}

// NewLedgerOutboxMessage builds the pending outbox row for txn, keyed by user
// so that a user's events stay ordered within a partition.
func NewLedgerOutboxMessage(topic string, txn *Transaction) (*OutboxMessage, error) {
	event := LedgerEvent{
		TransactionNo: txn.TransactionNo,
		UserID:        txn.UserID,
		Type:          txn.Type,
		Category:      txn.Category,
		Pool:          txn.Pool,
		Amount:        txn.Amount,
		FreeAfter:     txn.FreeAfter,
		PaidAfter:     txn.PaidAfter,
		Metadata:      txn.Metadata,
		OccurredAt:    txn.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		MessageKey: txn.UserID,
		Topic:      topic,
		Payload:    string(payload),
		Status:     OutboxStatusPending,
	}, nil
}
