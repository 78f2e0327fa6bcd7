package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseReceipt is the record of one credited purchase.
// One row per settled payment. PaymentRef is unique so a payment can be
// credited at most once no matter how often the caller retries.
type PurchaseReceipt struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	PaymentRef    string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"payment_ref"`
	UserID        string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	PackageID     string          `gorm:"type:varchar(64);not null" json:"package_id"`
	TransactionNo string          `gorm:"type:varchar(64);not null" json:"transaction_id"`
	Hype          int64           `gorm:"not null" json:"hype"`
	Price         decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (PurchaseReceipt) TableName() string {
	return "hype_purchase_receipt"
}

// RevenueCounterID is the primary key of the single global revenue row.
const RevenueCounterID = 1

// RevenueCounter holds cumulative fiat revenue recognized through purchases.
type RevenueCounter struct {
	ID           int64           `gorm:"primaryKey" json:"-"`
	TotalRevenue decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_revenue"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RevenueCounter) TableName() string {
	return "hype_revenue_counter"
}
