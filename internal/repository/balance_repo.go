package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hypeledger/internal/ledger"
	"hypeledger/internal/model"
)

var ErrBalanceNotFound = errors.New("balance not found")

type BalanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

func (r *BalanceRepository) GetByUserID(ctx context.Context, userID string) (*model.Balance, error) {
	var balance model.Balance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetOrCreate returns the user's balance, inserting a zero row first if the
// user has none. Concurrent first references are safe: the loser of the
// insert race reads the winner's row.
func (r *BalanceRepository) GetOrCreate(ctx context.Context, userID string) (*model.Balance, error) {
	balance, err := r.GetByUserID(ctx, userID)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, ErrBalanceNotFound) {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(model.NewBalance(userID)).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, userID)
}

// Update writes b's pools and counters if the row is still at b.Version and
// bumps the stored version. A moved row yields ledger.ErrOptimisticLock.
func (r *BalanceRepository) Update(ctx context.Context, tx *gorm.DB, b *model.Balance) error {
	result := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND version = ?", b.UserID, b.Version).
		Updates(map[string]interface{}{
			"free":      b.Free,
			"paid":      b.Paid,
			"total":     b.Total,
			"earned":    b.Earned,
			"spent":     b.Spent,
			"gifted":    b.Gifted,
			"received":  b.Received,
			"purchased": b.Purchased,
			"version":   gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: user %s version %d", ledger.ErrOptimisticLock, b.UserID, b.Version)
	}
	return nil
}
