package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewardhub/internal/config"
	"rewardhub/internal/economy"
	"rewardhub/internal/fraud"
	"rewardhub/internal/infrastructure/lock"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/pkg/clock"
	"rewardhub/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrMethodNotAllowed  = errors.New("withdrawal method not allowed")
	ErrBelowMinimum      = errors.New("withdrawal below minimum")
	ErrAccountTooNew     = errors.New("account too new")
	ErrPendingWithdrawal = errors.New("pending withdrawal exists")
	ErrWithdrawalBusy    = errors.New("withdrawal request in progress")
)

// RuleError 业务规则拒绝，Message 直接展示给用户
type RuleError struct {
	Err     error
	Message string
}

func (e *RuleError) Error() string { return e.Message }
func (e *RuleError) Unwrap() error { return e.Err }

func ruleError(err error, format string, args ...interface{}) error {
	return &RuleError{Err: err, Message: fmt.Sprintf(format, args...)}
}

type CreateWithdrawalRequest struct {
	UserID         string
	Points         int64
	Method         string
	AccountDetails string
}

type CreateWithdrawalResult struct {
	Withdrawal *model.Withdrawal
	Analysis   *fraud.Analysis
}

// WithdrawalService 提现编排：校验 -> 风险评分 -> 扣减 -> 落单 -> 通知运营
//
// 评分结果只作为审核参考，reject 建议也会创建待审核提现。
type WithdrawalService struct {
	db             *gorm.DB
	rdb            *redis.Client
	cfg            *config.Config
	economy        *economy.Service
	analyzer       *fraud.Analyzer
	credit         *CreditService
	userRepo       *repository.UserRepository
	withdrawalRepo *repository.WithdrawalRepository
	outboxRepo     *repository.OutboxRepository
	pointTxRepo    *repository.PointTransactionRepository
	clock          clock.Clock
}

func NewWithdrawalService(db *gorm.DB, rdb *redis.Client, cfg *config.Config, econ *economy.Service, analyzer *fraud.Analyzer, credit *CreditService, clk clock.Clock) *WithdrawalService {
	return &WithdrawalService{
		db:             db,
		rdb:            rdb,
		cfg:            cfg,
		economy:        econ,
		analyzer:       analyzer,
		credit:         credit,
		userRepo:       repository.NewUserRepository(db),
		withdrawalRepo: repository.NewWithdrawalRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		pointTxRepo:    repository.NewPointTransactionRepository(db),
		clock:          clk,
	}
}

func (s *WithdrawalService) Create(ctx context.Context, req *CreateWithdrawalRequest) (*CreateWithdrawalResult, error) {
	econ, err := s.economy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载经济配置失败: %w", err)
	}

	if !econ.MethodAllowed(req.Method) {
		return nil, ruleError(ErrMethodNotAllowed, "Unsupported withdrawal method: %s", req.Method)
	}
	if req.Points < econ.MinWithdrawalPoints {
		return nil, ruleError(ErrBelowMinimum, "Minimum withdrawal is %d points", econ.MinWithdrawalPoints)
	}

	// 同一用户的提现请求串行处理
	userLock := lock.NewWithdrawalLock(s.rdb, req.UserID, uuid.NewString(), s.cfg.Business.WithdrawalLockTTL)
	if err := userLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		if errors.Is(err, lock.ErrLockFailed) {
			return nil, ruleError(ErrWithdrawalBusy, "Another withdrawal request is being processed, please retry")
		}
		return nil, fmt.Errorf("获取提现锁失败: %w", err)
	}
	defer func() {
		if err := userLock.Unlock(context.Background()); err != nil {
			logrus.WithError(err).WithField("user_id", req.UserID).Warn("释放提现锁失败")
		}
	}()

	user, err := s.userRepo.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	minAge := time.Duration(econ.MinAccountAgeHours) * time.Hour
	if age := now.Sub(user.CreatedAt); age < minAge {
		wait := (minAge - age).Round(time.Minute)
		return nil, ruleError(ErrAccountTooNew, "Account too new. Please wait %dh %dm before requesting a withdrawal",
			int(wait.Hours()), int(wait.Minutes())%60)
	}

	pending, err := s.withdrawalRepo.HasPending(ctx, nil, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("查询待审核提现失败: %w", err)
	}
	if pending {
		return nil, ruleError(ErrPendingWithdrawal, "You already have a pending withdrawal request")
	}
	if user.Points < req.Points {
		return nil, ruleError(repository.ErrInsufficientBalance, "Insufficient points")
	}

	analysis := s.analyzer.Analyze(ctx, req.UserID, req.Points, user.CountryCode)
	metrics.FraudRecommendations.WithLabelValues(analysis.Recommendation).Inc()
	metrics.FraudScore.Observe(float64(analysis.RiskScore))

	signals, err := json.Marshal(analysis.Signals)
	if err != nil {
		return nil, err
	}

	withdrawalNo := idgen.GenerateWithdrawalNo()
	pendingKey := req.UserID
	w := &model.Withdrawal{
		WithdrawalNo:   withdrawalNo,
		UserID:         req.UserID,
		Points:         req.Points,
		USDValue:       econ.PointsToUSD(req.Points, user.CountryCode),
		Method:         req.Method,
		AccountDetails: req.AccountDetails,
		Status:         model.WithdrawalStatusPending,
		RiskScore:      analysis.RiskScore,
		Recommendation: analysis.Recommendation,
		RiskSignals:    string(signals),
		PendingKey:     &pendingKey,
		CreatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先锁用户行，再复查待审核提现
		if _, err := s.userRepo.GetByIDForUpdate(ctx, tx, req.UserID); err != nil {
			return err
		}
		pending, err := s.withdrawalRepo.HasPending(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if pending {
			return ruleError(ErrPendingWithdrawal, "You already have a pending withdrawal request")
		}

		_, err = s.credit.Debit(ctx, tx, CreditRequest{
			UserID: req.UserID,
			Points: req.Points,
			Provenance: Provenance{
				Type:      model.PointTxTypeWithdrawal,
				Source:    req.Method,
				Reference: withdrawalNo,
				Remark:    "提现申请",
			},
		})
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return ruleError(repository.ErrInsufficientBalance, "Insufficient points")
		}
		if err != nil {
			return err
		}

		if err := s.withdrawalRepo.Create(ctx, tx, w); err != nil {
			// 分布式锁过期时并发请求会撞上 pending_key 唯一索引
			if errors.Is(err, repository.ErrPendingWithdrawalExists) {
				return ruleError(ErrPendingWithdrawal, "You already have a pending withdrawal request")
			}
			return fmt.Errorf("创建提现记录失败: %w", err)
		}
		return s.enqueue(ctx, tx, w, model.EventWithdrawalRequested)
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues(model.WithdrawalStatusPending).Inc()
	logrus.WithFields(logrus.Fields{
		"withdrawal_no":  withdrawalNo,
		"user_id":        req.UserID,
		"points":         req.Points,
		"risk_score":     analysis.RiskScore,
		"recommendation": analysis.Recommendation,
	}).Info("提现申请已创建")

	return &CreateWithdrawalResult{Withdrawal: w, Analysis: analysis}, nil
}

func (s *WithdrawalService) Approve(ctx context.Context, withdrawalNo, actor, note string) (*model.Withdrawal, error) {
	return s.resolve(ctx, withdrawalNo, model.WithdrawalStatusApproved, actor, note)
}

func (s *WithdrawalService) Complete(ctx context.Context, withdrawalNo, actor, note string) (*model.Withdrawal, error) {
	return s.resolve(ctx, withdrawalNo, model.WithdrawalStatusCompleted, actor, note)
}

// Reject 驳回并在同一事务内返还积分
func (s *WithdrawalService) Reject(ctx context.Context, withdrawalNo, actor, note string) (*model.Withdrawal, error) {
	return s.resolve(ctx, withdrawalNo, model.WithdrawalStatusRejected, actor, note)
}

func (s *WithdrawalService) resolve(ctx context.Context, withdrawalNo, target, actor, note string) (*model.Withdrawal, error) {
	now := s.clock.Now()

	var w *model.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		w, err = s.withdrawalRepo.GetByNoForUpdate(ctx, tx, withdrawalNo)
		if err != nil {
			return err
		}

		extra := map[string]interface{}{
			"reviewed_by": actor,
			"review_note": note,
		}
		switch target {
		case model.WithdrawalStatusCompleted:
			extra["completed_at"] = now
		default:
			extra["processed_at"] = now
		}

		if err := s.withdrawalRepo.UpdateStatus(ctx, tx, withdrawalNo, w.Status, target, extra); err != nil {
			return err
		}

		if target == model.WithdrawalStatusRejected {
			_, err := s.credit.Credit(ctx, tx, CreditRequest{
				UserID: w.UserID,
				Points: w.Points,
				Provenance: Provenance{
					Type:      model.PointTxTypeWithdrawalRefund,
					Source:    w.Method,
					Reference: w.WithdrawalNo,
					Remark:    "提现驳回返还",
				},
			})
			if err != nil {
				return fmt.Errorf("返还积分失败: %w", err)
			}
		}

		w.Status = target
		w.ReviewedBy = actor
		w.ReviewNote = note
		if target == model.WithdrawalStatusCompleted {
			w.CompletedAt = &now
		} else {
			w.ProcessedAt = &now
		}
		w.PendingKey = nil

		return s.enqueue(ctx, tx, w, eventFor(target))
	})
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues(target).Inc()
	logrus.WithFields(logrus.Fields{
		"withdrawal_no": withdrawalNo,
		"status":        target,
		"actor":         actor,
	}).Info("提现状态已更新")
	return w, nil
}

// EscalateStale 超过审核时限的待审核提现发送一次升级通知，返回处理条数
func (s *WithdrawalService) EscalateStale(ctx context.Context, limit int) (int, error) {
	now := s.clock.Now()
	stale, err := s.withdrawalRepo.GetStalePending(ctx, now.Add(-s.cfg.Business.WithdrawalReviewSLA), limit)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for _, w := range stale {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.withdrawalRepo.MarkEscalated(ctx, tx, w.WithdrawalNo, now); err != nil {
				return err
			}
			w.EscalatedAt = &now
			return s.enqueue(ctx, tx, w, model.EventWithdrawalEscalated)
		})
		if err != nil {
			logrus.WithError(err).WithField("withdrawal_no", w.WithdrawalNo).Warn("提现升级失败")
			continue
		}
		escalated++
	}
	return escalated, nil
}

func (s *WithdrawalService) Get(ctx context.Context, withdrawalNo string) (*model.Withdrawal, error) {
	return s.withdrawalRepo.GetByNo(ctx, withdrawalNo)
}

// WithdrawalDetail 审核页展示的提现单、积分流水和已发出的事件
type WithdrawalDetail struct {
	Withdrawal *model.Withdrawal         `json:"withdrawal"`
	Ledger     []*model.PointTransaction `json:"ledger"`
	Events     []*model.OutboxMessage    `json:"events"`
}

func (s *WithdrawalService) Detail(ctx context.Context, withdrawalNo string) (*WithdrawalDetail, error) {
	w, err := s.withdrawalRepo.GetByNo(ctx, withdrawalNo)
	if err != nil {
		return nil, err
	}
	ledger, err := s.pointTxRepo.ListByReference(ctx, withdrawalNo)
	if err != nil {
		return nil, fmt.Errorf("查询提现流水失败: %w", err)
	}
	events, err := s.outboxRepo.GetByKey(ctx, withdrawalNo)
	if err != nil {
		return nil, fmt.Errorf("查询提现事件失败: %w", err)
	}
	return &WithdrawalDetail{Withdrawal: w, Ledger: ledger, Events: events}, nil
}

func (s *WithdrawalService) ListByUser(ctx context.Context, userID string, page, pageSize int) ([]*model.Withdrawal, int64, error) {
	return s.withdrawalRepo.ListByUserID(ctx, userID, page, pageSize)
}

func (s *WithdrawalService) ListByStatus(ctx context.Context, status string, page, pageSize int) ([]*model.Withdrawal, int64, error) {
	return s.withdrawalRepo.ListByStatus(ctx, status, page, pageSize)
}

// Preview 管理后台查看风险评分，不创建提现
func (s *WithdrawalService) Preview(ctx context.Context, userID string, points int64) *fraud.Analysis {
	return s.analyzer.Analyze(ctx, userID, points, "")
}

func (s *WithdrawalService) enqueue(ctx context.Context, tx *gorm.DB, w *model.Withdrawal, event string) error {
	return s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.WithdrawalEvents, w.WithdrawalNo, event, map[string]interface{}{
		"withdrawal_id":  w.WithdrawalNo,
		"user_id":        w.UserID,
		"points":         w.Points,
		"usd_value":      w.USDValue.StringFixed(2),
		"method":         w.Method,
		"status":         w.Status,
		"risk_score":     w.RiskScore,
		"recommendation": w.Recommendation,
	})
}

func eventFor(status string) string {
	switch status {
	case model.WithdrawalStatusApproved:
		return model.EventWithdrawalApproved
	case model.WithdrawalStatusCompleted:
		return model.EventWithdrawalCompleted
	default:
		return model.EventWithdrawalRejected
	}
}
