package repository

import (
	"context"
	"errors"

	"rewardhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrConfigNotFound        = errors.New("economy config not found")
	ErrConfigVersionConflict = errors.New("economy config was modified concurrently")
)

type EconomyRepository struct {
	db *gorm.DB
}

func NewEconomyRepository(db *gorm.DB) *EconomyRepository {
	return &EconomyRepository{db: db}
}

func (r *EconomyRepository) Get(ctx context.Context) (*model.EconomyConfigDoc, error) {
	var doc model.EconomyConfigDoc
	err := r.db.WithContext(ctx).Where("id = ?", model.EconomyConfigID).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// Save 以 expectedVersion 做乐观锁写入，成功后版本号为 expectedVersion+1
func (r *EconomyRepository) Save(ctx context.Context, document, updatedBy string, expectedVersion int64) (int64, error) {
	newVersion := expectedVersion + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.EconomyConfigDoc{
				ID:        model.EconomyConfigID,
				Version:   newVersion,
				Document:  document,
				UpdatedBy: updatedBy,
			})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 1 {
				return nil
			}
		}

		result := tx.Model(&model.EconomyConfigDoc{}).
			Where("id = ? AND version = ?", model.EconomyConfigID, expectedVersion).
			Updates(map[string]interface{}{
				"version":    newVersion,
				"document":   document,
				"updated_by": updatedBy,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConfigVersionConflict
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}
