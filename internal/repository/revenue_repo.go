package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hypeledger/internal/model"
)

type RevenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) *RevenueRepository {
	return &RevenueRepository{db: db}
}

// Get returns the recognized revenue; zero before the first purchase.
func (r *RevenueRepository) Get(ctx context.Context) (decimal.Decimal, error) {
	var counter model.RevenueCounter
	err := r.db.WithContext(ctx).Where("id = ?", model.RevenueCounterID).First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return counter.TotalRevenue, nil
}

// Add increments the global counter in place, so concurrent purchases from
// different users never overwrite each other.
func (r *RevenueRepository) Add(ctx context.Context, tx *gorm.DB, delta decimal.Decimal) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RevenueCounter{ID: model.RevenueCounterID, TotalRevenue: decimal.Zero}).Error
	if err != nil {
		return err
	}

	return tx.WithContext(ctx).
		Model(&model.RevenueCounter{}).
		Where("id = ?", model.RevenueCounterID).
		UpdateColumn("total_revenue", gorm.Expr("total_revenue + ?", delta)).Error
}
