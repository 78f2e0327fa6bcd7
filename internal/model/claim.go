package model

import (
	"time"
)

const (
	ClaimKindEarn  = "earn"
	ClaimKindSpend = "spend"
)

// Claim records the last use of an earning rule or spending option by a user.
// It is the denormalized claimed-set behind once/daily/weekly limits and
// spending cooldowns.
type Claim struct {
	ID     int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_claim_user_ref,priority:1" json:"user_id"`
	Kind   string    `gorm:"type:varchar(8);not null;uniqueIndex:uk_claim_user_ref,priority:2" json:"kind"`
	RefID  string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_claim_user_ref,priority:3" json:"ref_id"`
	LastAt time.Time `gorm:"not null" json:"last_at"`
	Count  int64     `gorm:"not null;default:0" json:"count"`
}

func (Claim) TableName() string {
	return "hype_claim"
}
