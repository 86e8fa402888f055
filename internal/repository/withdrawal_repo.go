package repository

import (
	"context"
	"errors"
	"time"

	"rewardhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
	ErrWithdrawalStatusInvalid = errors.New("withdrawal status does not allow this action")
	ErrPendingWithdrawalExists = errors.New("user already has a pending withdrawal")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create 写入提现单；pending_key 唯一索引冲突返回 ErrPendingWithdrawalExists
func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, w *model.Withdrawal) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(w).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrPendingWithdrawalExists
	}
	// 驱动未翻译错误时，用加锁读确认是否为 pending_key 冲突
	if w.PendingKey != nil {
		var count int64
		if cerr := tx.WithContext(ctx).
			Model(&model.Withdrawal{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("pending_key = ?", *w.PendingKey).
			Count(&count).Error; cerr == nil && count > 0 {
			return ErrPendingWithdrawalExists
		}
	}
	return err
}

func (r *WithdrawalRepository) GetByNo(ctx context.Context, withdrawalNo string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.WithContext(ctx).Where("withdrawal_no = ?", withdrawalNo).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (r *WithdrawalRepository) GetByNoForUpdate(ctx context.Context, tx *gorm.DB, withdrawalNo string) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("withdrawal_no = ?", withdrawalNo).
		First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &w, nil
}

// HasPending tx 为 nil 时走普通连接
func (r *WithdrawalRepository) HasPending(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("user_id = ? AND status = ?", userID, model.WithdrawalStatusPending).
		Count(&count).Error
	return count > 0, err
}

// CountSince 统计某时间点之后的提现次数（不含已驳回）
func (r *WithdrawalRepository) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("user_id = ? AND created_at >= ? AND status <> ?", userID, since, model.WithdrawalStatusRejected).
		Count(&count).Error
	return count, err
}

// CountByUser 用户历史提现总数，用于判断首次提现
func (r *WithdrawalRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// UpdateStatus 按状态机做条件更新
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, withdrawalNo string, fromStatus, toStatus string, extra map[string]interface{}) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return ErrWithdrawalStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	updates := map[string]interface{}{
		"status": toStatus,
	}
	for k, v := range extra {
		updates[k] = v
	}
	// 离开 pending 后释放唯一占位
	if fromStatus == model.WithdrawalStatusPending {
		updates["pending_key"] = nil
	}

	result := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("withdrawal_no = ? AND status = ?", withdrawalNo, fromStatus).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}
	return nil
}

func (r *WithdrawalRepository) ListByUserID(ctx context.Context, userID string, page, pageSize int) ([]*model.Withdrawal, int64, error) {
	var list []*model.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Withdrawal{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error

	return list, total, err
}

func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.Withdrawal, int64, error) {
	var list []*model.Withdrawal
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Withdrawal{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&list).Error

	return list, total, err
}

// GetStalePending 超过审核时限且尚未升级的待审核提现
func (r *WithdrawalRepository) GetStalePending(ctx context.Context, before time.Time, limit int) ([]*model.Withdrawal, error) {
	var list []*model.Withdrawal
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND escalated_at IS NULL", model.WithdrawalStatusPending, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}

func (r *WithdrawalRepository) MarkEscalated(ctx context.Context, tx *gorm.DB, withdrawalNo string, at time.Time) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Withdrawal{}).
		Where("withdrawal_no = ? AND status = ? AND escalated_at IS NULL", withdrawalNo, model.WithdrawalStatusPending).
		Update("escalated_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWithdrawalStatusInvalid
	}
	return nil
}
