package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hypeledger/internal/model"
)

type ClaimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) ListByUserID(ctx context.Context, userID string) ([]*model.Claim, error) {
	var claims []*model.Claim
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&claims).Error
	return claims, err
}

// Upsert inserts the claim or overwrites LastAt and Count of the existing
// (user, kind, ref) row.
func (r *ClaimRepository) Upsert(ctx context.Context, tx *gorm.DB, c *model.Claim) error {
	if tx == nil {
		tx = r.db
	}
	row := *c
	row.ID = 0
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "kind"}, {Name: "ref_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_at", "count"}),
		}).
		Create(&row).Error
}
