package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewardhub/internal/callback"
	"rewardhub/internal/config"
	"rewardhub/internal/economy"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/internal/reward"
	"rewardhub/pkg/clock"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const reasonZeroReward = "reward converts to zero points"

// CallbackResult 回调处理结果，重复投递时返回首次记录的积分
type CallbackResult struct {
	TransactionID  string `json:"transactionId"`
	PointsCredited int64  `json:"pointsCredited"`
	IsDuplicate    bool   `json:"isDuplicate"`
	Status         string `json:"status"`
}

// CallbackService 渠道回调：验签 -> 幂等占位 -> 换算 -> 入账
type CallbackService struct {
	db         *gorm.DB
	cfg        *config.Config
	registry   *callback.Registry
	economy    *economy.Service
	credit     *CreditService
	extTxRepo  *repository.ExternalTransactionRepository
	outboxRepo *repository.OutboxRepository
	clock      clock.Clock
}

func NewCallbackService(db *gorm.DB, cfg *config.Config, registry *callback.Registry, econ *economy.Service, credit *CreditService, clk clock.Clock) *CallbackService {
	return &CallbackService{
		db:         db,
		cfg:        cfg,
		registry:   registry,
		economy:    econ,
		credit:     credit,
		extTxRepo:  repository.NewExternalTransactionRepository(db),
		outboxRepo: repository.NewOutboxRepository(db),
		clock:      clk,
	}
}

// Process 处理一次回调
//
// 任何内部错误都会回滚整个事务，回调记录保持未入账，渠道重试时按新请求处理。
// 用户不存在时记录以 rejected 状态提交，并返回 repository.ErrUserNotFound。
func (s *CallbackService) Process(ctx context.Context, provider string, payload callback.Payload) (result *CallbackResult, err error) {
	start := time.Now()
	defer func() {
		label := provider
		if errors.Is(err, callback.ErrUnknownProvider) {
			label = "unknown"
		}
		metrics.CallbackDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		metrics.CallbacksTotal.WithLabelValues(label, outcome(result, err)).Inc()
	}()

	if s.cfg.Callback.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Callback.Timeout)
		defer cancel()
	}

	desc, err := s.registry.Parse(provider, payload)
	if err != nil {
		return nil, err
	}

	econ, err := s.economy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载经济配置失败: %w", err)
	}
	conv := reward.Explain(econ, desc.Provider, desc.RewardUnits)

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	candidate := &model.ExternalTransaction{
		Provider:     desc.Provider,
		ProviderTxID: desc.ProviderTransactionID,
		UserID:       desc.UserID,
		RawPayload:   string(raw),
		RewardUnits:  desc.RewardUnits.String(),
		Status:       model.ExternalTxStatusPending,
		CreatedAt:    s.clock.Now(),
	}

	result = &CallbackResult{TransactionID: desc.ProviderTransactionID}
	userMissing := false

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, isNew, err := s.extTxRepo.RecordOrReject(ctx, tx, candidate)
		if err != nil {
			return fmt.Errorf("写入回调记录失败: %w", err)
		}
		if !isNew {
			result.IsDuplicate = true
			result.PointsCredited = rec.CreditedPoints
			result.Status = rec.Status
			return nil
		}

		if conv.Points == 0 {
			result.Status = model.ExternalTxStatusRejected
			return s.extTxRepo.MarkStatus(ctx, tx, rec.ID, model.ExternalTxStatusRejected, reasonZeroReward)
		}

		_, err = s.credit.Credit(ctx, tx, CreditRequest{
			UserID: desc.UserID,
			Points: conv.Points,
			Provenance: Provenance{
				Type:          model.PointTxTypeProviderCredit,
				Source:        desc.Provider,
				Reference:     desc.ProviderTransactionID,
				Remark:        fmt.Sprintf("%s 回调 %s 单位", desc.Provider, desc.RawUnits),
				LedgerEntryID: &rec.ID,
			},
		})
		if errors.Is(err, repository.ErrUserNotFound) {
			userMissing = true
			result.Status = model.ExternalTxStatusRejected
			return s.extTxRepo.MarkStatus(ctx, tx, rec.ID, model.ExternalTxStatusRejected, "user not found")
		}
		if err != nil {
			return err
		}

		result.PointsCredited = conv.Points
		result.Status = model.ExternalTxStatusCredited
		return s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.PointsCredited, desc.UserID, model.EventPointsCredited, map[string]interface{}{
			"user_id":        desc.UserID,
			"provider":       desc.Provider,
			"transaction_id": desc.ProviderTransactionID,
			"points":         conv.Points,
			"config_version": conv.ConfigVersion,
		})
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"provider":       provider,
			"transaction_id": desc.ProviderTransactionID,
		}).Error("回调入账失败")
		return nil, err
	}

	if userMissing {
		return result, repository.ErrUserNotFound
	}

	fields := logrus.Fields{
		"provider":       desc.Provider,
		"transaction_id": desc.ProviderTransactionID,
		"user_id":        desc.UserID,
		"points":         result.PointsCredited,
	}
	switch {
	case result.IsDuplicate:
		logrus.WithFields(fields).Info("重复回调，返回已有记录")
	case result.Status == model.ExternalTxStatusCredited:
		metrics.PointsCreditedTotal.WithLabelValues(desc.Provider).Add(float64(result.PointsCredited))
		logrus.WithFields(fields).Info("回调入账成功")
	default:
		logrus.WithFields(fields).Warn("回调奖励换算为 0，已拒绝")
	}
	return result, nil
}

func outcome(result *CallbackResult, err error) string {
	switch {
	case errors.Is(err, callback.ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, callback.ErrSignatureMismatch):
		return "signature"
	case errors.Is(err, callback.ErrInvalidPayload):
		return "invalid"
	case errors.Is(err, repository.ErrUserNotFound):
		return "user_not_found"
	case err != nil:
		return "error"
	case result.IsDuplicate:
		return "duplicate"
	default:
		return result.Status
	}
}
