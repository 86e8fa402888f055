package repository

import (
	"context"
	"errors"

	"rewardhub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientBalance = errors.New("insufficient points")
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByIDForUpdate 行锁读取，必须在事务内调用
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*model.User, error) {
	var user model.User
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Deduct 条件扣减，points >= amount 不满足时不修改任何行
func (r *UserRepository) Deduct(ctx context.Context, tx *gorm.DB, userID string, amount int64) error {
	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND points >= ?", userID, amount).
		Updates(map[string]interface{}{
			"points":  gorm.Expr("points - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Increase 入账；earned 为 true 时同时累加 lifetime_earned（提现返还不计入）
func (r *UserRepository) Increase(ctx context.Context, tx *gorm.DB, userID string, amount int64, earned bool) error {
	updates := map[string]interface{}{
		"points":  gorm.Expr("points + ?", amount),
		"version": gorm.Expr("version + 1"),
	}
	if earned {
		updates["lifetime_earned"] = gorm.Expr("lifetime_earned + ?", amount)
	}

	result := tx.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ReconcileLegacyBalances 把旧字段 total_points 迁移到 points
//
// 只处理 points 从未写入过（version = 0 且 points = 0）的账户，返回迁移条数。
func (r *UserRepository) ReconcileLegacyBalances(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("version = 0 AND points = 0 AND total_points > 0").
		Updates(map[string]interface{}{
			"points":          gorm.Expr("total_points"),
			"lifetime_earned": gorm.Expr("CASE WHEN lifetime_earned < total_points THEN total_points ELSE lifetime_earned END"),
			"version":         gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}
