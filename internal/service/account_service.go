package service

import (
	"context"

	"rewardhub/internal/model"
	"rewardhub/internal/repository"

	"gorm.io/gorm"
)

type AccountService struct {
	userRepo    *repository.UserRepository
	pointTxRepo *repository.PointTransactionRepository
	extTxRepo   *repository.ExternalTransactionRepository
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{
		userRepo:    repository.NewUserRepository(db),
		pointTxRepo: repository.NewPointTransactionRepository(db),
		extTxRepo:   repository.NewExternalTransactionRepository(db),
	}
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// ListTransactions 积分流水，按时间倒序
func (s *AccountService) ListTransactions(ctx context.Context, userID string, page, pageSize int) ([]*model.PointTransaction, int64, error) {
	return s.pointTxRepo.ListByUserID(ctx, userID, page, pageSize)
}

// ListCallbacks 用户的渠道回调记录
func (s *AccountService) ListCallbacks(ctx context.Context, userID string, page, pageSize int) ([]*model.ExternalTransaction, int64, error) {
	return s.extTxRepo.ListByUserID(ctx, userID, page, pageSize)
}
