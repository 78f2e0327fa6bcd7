package model

import (
	"time"
)

// Balance is a user's HYPE holdings.
// One row per user. Free and Paid are the two spendable pools; the remaining
// counters are lifetime totals and never decrease.
type Balance struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"user_id"`
	Free      int64     `gorm:"not null;default:0" json:"free"`      // earned / granted HYPE
	Paid      int64     `gorm:"not null;default:0" json:"paid"`      // purchased or gifted HYPE
	Total     int64     `gorm:"not null;default:0" json:"total"`     // always Free + Paid
	Earned    int64     `gorm:"not null;default:0" json:"earned"`    // lifetime earned
	Spent     int64     `gorm:"not null;default:0" json:"spent"`     // lifetime spent
	Gifted    int64     `gorm:"not null;default:0" json:"gifted"`    // lifetime gifted away
	Received  int64     `gorm:"not null;default:0" json:"received"`  // lifetime gifts received
	Purchased int64     `gorm:"not null;default:0" json:"purchased"` // lifetime purchased
	Version   int       `gorm:"not null;default:0" json:"version"`   // optimistic lock version
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string {
	return "hype_balance"
}

// NewBalance returns the zero balance a user starts with.
func NewBalance(userID string) *Balance {
	return &Balance{UserID: userID}
}

// Clone returns an independent copy.
func (b *Balance) Clone() *Balance {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
