package model

import (
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// Transaction types and categories
// ============================================================================

const (
	TransactionTypeEarned    = "earned"
	TransactionTypeSpent     = "spent"
	TransactionTypePurchased = "purchased"
	TransactionTypeGifted    = "gifted"
)

const (
	CategoryOnboarding = "onboarding"
	CategoryEngagement = "engagement"
	CategoryAcademic   = "academic"
	CategoryContent    = "content"
	CategorySocial     = "social"
	CategoryPremium    = "premium"
	CategoryPriority   = "priority"
	CategoryPurchase   = "purchase"
	CategoryGift       = "gift"
)

// Pools a transaction can move.
const (
	PoolFree = "free"
	PoolPaid = "paid"
)

// Metadata keys written by the ledger engine.
const (
	MetaSource            = "source"
	MetaMultiplier        = "multiplier"
	MetaTier              = "tier"
	MetaPackageID         = "package_id"
	MetaPaymentRef        = "payment_ref"
	MetaCounterpartUserID = "counterpart_user_id"
	MetaCounterpartTxn    = "counterpart_txn"
	MetaMessage           = "message"
)

// ============================================================================
// Ledger transaction
// ============================================================================

// Transaction is one ledger event.
//
// Rows are append-only: never updated, never deleted. They are the audit trail
// and carry the holdings after the event so any balance can be reconciled
// against its history.
type Transaction struct {
	ID            int64             `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionNo string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"`
	UserID        string            `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount        int64             `gorm:"not null" json:"amount"` // positive credit, negative debit
	Type          string            `gorm:"type:varchar(20);not null" json:"type"`
	Category      string            `gorm:"type:varchar(32);not null" json:"category"`
	Pool          string            `gorm:"type:varchar(8);not null" json:"pool"`
	Description   string            `gorm:"type:varchar(256)" json:"description"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	FreeAfter     int64             `gorm:"not null" json:"free_after"`
	PaidAfter     int64             `gorm:"not null" json:"paid_after"`
	CreatedAt     time.Time         `gorm:"index" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "hype_transaction"
}

// Meta returns a metadata value as a string, or "" when absent.
func (t *Transaction) Meta(key string) string {
	if t == nil || t.Metadata == nil {
		return ""
	}
	v, ok := t.Metadata[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
