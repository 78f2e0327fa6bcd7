package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"hypeledger/internal/ledger"
	"hypeledger/internal/model"
)

type ReceiptRepository struct {
	db *gorm.DB
}

func NewReceiptRepository(db *gorm.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// GetByPaymentRef returns nil, nil when the reference is unknown. tx may be
// nil to read outside a transaction.
func (r *ReceiptRepository) GetByPaymentRef(ctx context.Context, tx *gorm.DB, paymentRef string) (*model.PurchaseReceipt, error) {
	if tx == nil {
		tx = r.db
	}
	var receipt model.PurchaseReceipt
	err := tx.WithContext(ctx).Where("payment_ref = ?", paymentRef).First(&receipt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &receipt, nil
}

// Create inserts the receipt. A reference that is already stored yields
// ledger.ErrReceiptExists.
func (r *ReceiptRepository) Create(ctx context.Context, tx *gorm.DB, receipt *model.PurchaseReceipt) error {
	existing, err := r.GetByPaymentRef(ctx, tx, receipt.PaymentRef)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: %s", ledger.ErrReceiptExists, receipt.PaymentRef)
	}

	err = tx.WithContext(ctx).Create(receipt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ledger.ErrReceiptExists, receipt.PaymentRef)
	}
	return err
}
