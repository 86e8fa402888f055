package service

import (
	"context"
	"errors"
	"fmt"

	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/pkg/clock"
	"rewardhub/pkg/idgen"

	"gorm.io/gorm"
)

var ErrInvalidAmount = errors.New("amount must be positive")

// Provenance 积分变动来源，写入流水
type Provenance struct {
	Type      string // model.PointTxType*
	Source    string
	Reference string
	Remark    string
	// LedgerEntryID 非空时在同一事务内把对应回调记录标记为 credited
	LedgerEntryID *int64
}

type CreditRequest struct {
	UserID     string
	Points     int64
	Provenance Provenance
}

// CreditService 用户余额的唯一写入路径
//
// 所有方法都必须在调用方的数据库事务内执行：锁定用户行、条件更新余额、
// 追加流水、更新回调记录，全部一起提交或一起回滚。
type CreditService struct {
	userRepo    *repository.UserRepository
	pointTxRepo *repository.PointTransactionRepository
	extTxRepo   *repository.ExternalTransactionRepository
	clock       clock.Clock
}

func NewCreditService(db *gorm.DB, clk clock.Clock) *CreditService {
	return &CreditService{
		userRepo:    repository.NewUserRepository(db),
		pointTxRepo: repository.NewPointTransactionRepository(db),
		extTxRepo:   repository.NewExternalTransactionRepository(db),
		clock:       clk,
	}
}

// Credit 入账，返回新余额
func (s *CreditService) Credit(ctx context.Context, tx *gorm.DB, req CreditRequest) (int64, error) {
	if req.Points <= 0 {
		return 0, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
	if err != nil {
		return 0, err
	}

	// 提现返还不计入累计收益
	earned := req.Provenance.Type != model.PointTxTypeWithdrawalRefund
	if err := s.userRepo.Increase(ctx, tx, req.UserID, req.Points, earned); err != nil {
		return 0, fmt.Errorf("增加余额失败: %w", err)
	}

	newBalance := user.Points + req.Points
	if err := s.appendTransaction(ctx, tx, req, req.Points, user.Points, newBalance); err != nil {
		return 0, err
	}

	if req.Provenance.LedgerEntryID != nil {
		err := s.extTxRepo.MarkCredited(ctx, tx, *req.Provenance.LedgerEntryID, req.Points, s.clock.Now())
		if err != nil {
			return 0, fmt.Errorf("更新回调记录失败: %w", err)
		}
	}
	return newBalance, nil
}

// Debit 扣减，余额不足时返回 repository.ErrInsufficientBalance 且不做任何修改
func (s *CreditService) Debit(ctx context.Context, tx *gorm.DB, req CreditRequest) (int64, error) {
	if req.Points <= 0 {
		return 0, ErrInvalidAmount
	}

	user, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID)
	if err != nil {
		return 0, err
	}
	if user.Points < req.Points {
		return 0, repository.ErrInsufficientBalance
	}

	if err := s.userRepo.Deduct(ctx, tx, req.UserID, req.Points); err != nil {
		return 0, err
	}

	newBalance := user.Points - req.Points
	if err := s.appendTransaction(ctx, tx, req, -req.Points, user.Points, newBalance); err != nil {
		return 0, err
	}
	return newBalance, nil
}

func (s *CreditService) appendTransaction(ctx context.Context, tx *gorm.DB, req CreditRequest, amount, before, after int64) error {
	trans := &model.PointTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		UserID:        req.UserID,
		Amount:        amount,
		Type:          req.Provenance.Type,
		Source:        req.Provenance.Source,
		Reference:     req.Provenance.Reference,
		BalanceBefore: before,
		BalanceAfter:  after,
		Remark:        req.Provenance.Remark,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.pointTxRepo.Create(ctx, tx, trans); err != nil {
		return fmt.Errorf("记录流水失败: %w", err)
	}
	return nil
}
