package repository

import (
	"context"
	"errors"
	"time"

	"rewardhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrExternalTxNotFound = errors.New("external transaction not found")

// ExternalTransactionRepository 渠道回调幂等账本
type ExternalTransactionRepository struct {
	db *gorm.DB
}

func NewExternalTransactionRepository(db *gorm.DB) *ExternalTransactionRepository {
	return &ExternalTransactionRepository{db: db}
}

// RecordOrReject 在事务内占用 (provider, provider_tx_id)
//
// 插入成功返回 isNew=true；唯一键冲突时不写入，加锁读取已有记录原样返回。
// 并发重复投递时唯一索引保证只有一个调用方拿到 isNew=true。
func (r *ExternalTransactionRepository) RecordOrReject(ctx context.Context, tx *gorm.DB, candidate *model.ExternalTransaction) (*model.ExternalTransaction, bool, error) {
	if candidate.Status == "" {
		candidate.Status = model.ExternalTxStatusPending
	}

	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_tx_id"}},
			DoNothing: true,
		}).
		Create(candidate)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return candidate, true, nil
	}

	var existing model.ExternalTransaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("provider = ? AND provider_tx_id = ?", candidate.Provider, candidate.ProviderTxID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *ExternalTransactionRepository) GetByID(ctx context.Context, id int64) (*model.ExternalTransaction, error) {
	var rec model.ExternalTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExternalTxNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *ExternalTransactionRepository) GetByKey(ctx context.Context, provider, providerTxID string) (*model.ExternalTransaction, error) {
	var rec model.ExternalTransaction
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_tx_id = ?", provider, providerTxID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExternalTxNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkCredited pending -> credited，条件更新保证同一记录只入账一次
func (r *ExternalTransactionRepository) MarkCredited(ctx context.Context, tx *gorm.DB, id int64, points int64, at time.Time) error {
	result := tx.WithContext(ctx).
		Model(&model.ExternalTransaction{}).
		Where("id = ? AND status = ?", id, model.ExternalTxStatusPending).
		Updates(map[string]interface{}{
			"status":          model.ExternalTxStatusCredited,
			"credited_points": points,
			"credited_at":     at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrExternalTxNotFound
	}
	return nil
}

func (r *ExternalTransactionRepository) MarkStatus(ctx context.Context, tx *gorm.DB, id int64, status, reason string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.ExternalTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": status,
			"reason": reason,
		}).Error
}

func (r *ExternalTransactionRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.ExternalTransaction, int64, error) {
	var records []*model.ExternalTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ExternalTransaction{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	return records, total, err
}
