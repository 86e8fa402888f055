package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rewardhub/internal/callback"
	"rewardhub/internal/config"
	"rewardhub/internal/economy"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/internal/reward"
	"rewardhub/pkg/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var ErrNotReplayable = errors.New("transaction cannot be replayed")

// ReplayResult 重放结果；ConfigDrift 表示按当前配置换算的积分与原记录不同
type ReplayResult struct {
	OriginalID     int64             `json:"originalId"`
	ReplayID       int64             `json:"replayId"`
	OriginalStatus string            `json:"originalStatus"`
	OriginalPoints int64             `json:"originalPoints"`
	ReplayPoints   int64             `json:"replayPoints"`
	ConfigDrift    bool              `json:"configDrift"`
	Credited       bool              `json:"credited"`
	Status         string            `json:"status"`
	Conversion     reward.Conversion `json:"conversion"`
}

// ReplayService 管理员按已存储的原始报文重新执行换算和入账
//
// 原记录已入账：生成 duplicate 重放记录，不改余额，只展示差异。
// 原记录被拒绝：以 <provider_tx_id>#replay 为键入账一次，重复调用返回已有结果。
type ReplayService struct {
	db         *gorm.DB
	cfg        *config.Config
	registry   *callback.Registry
	economy    *economy.Service
	credit     *CreditService
	extTxRepo  *repository.ExternalTransactionRepository
	outboxRepo *repository.OutboxRepository
	clock      clock.Clock
}

func NewReplayService(db *gorm.DB, cfg *config.Config, registry *callback.Registry, econ *economy.Service, credit *CreditService, clk clock.Clock) *ReplayService {
	return &ReplayService{
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

func (s *ReplayService) Replay(ctx context.Context, id int64, actor string) (*ReplayResult, error) {
	orig, err := s.extTxRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.ReplayOf != nil {
		return nil, fmt.Errorf("%w: record %d is itself a replay", ErrNotReplayable, id)
	}
	if orig.Status != model.ExternalTxStatusCredited && orig.Status != model.ExternalTxStatusRejected {
		return nil, fmt.Errorf("%w: status %s", ErrNotReplayable, orig.Status)
	}

	var payload callback.Payload
	if err := json.Unmarshal([]byte(orig.RawPayload), &payload); err != nil {
		return nil, fmt.Errorf("%w: stored payload unreadable", ErrNotReplayable)
	}
	desc, err := s.registry.ParseTrusted(orig.Provider, payload)
	if err != nil {
		return nil, err
	}

	econ, err := s.economy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载经济配置失败: %w", err)
	}
	conv := reward.Explain(econ, desc.Provider, desc.RewardUnits)

	result := &ReplayResult{
		OriginalID:     orig.ID,
		OriginalStatus: orig.Status,
		OriginalPoints: orig.CreditedPoints,
		ReplayPoints:   conv.Points,
		Conversion:     conv,
	}

	if orig.Status == model.ExternalTxStatusCredited {
		result.ConfigDrift = conv.Points != orig.CreditedPoints
		err = s.recordShadow(ctx, orig, conv, actor, result)
	} else {
		err = s.creditRejected(ctx, orig, conv, actor, result)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"original_id":  orig.ID,
		"replay_id":    result.ReplayID,
		"actor":        actor,
		"points":       result.ReplayPoints,
		"config_drift": result.ConfigDrift,
		"credited":     result.Credited,
	}).Info("管理员重放回调")
	return result, nil
}

// ReplayByKey 按渠道交易号定位回调记录后重放
func (s *ReplayService) ReplayByKey(ctx context.Context, provider, providerTxID, actor string) (*ReplayResult, error) {
	orig, err := s.extTxRepo.GetByKey(ctx, strings.ToLower(provider), providerTxID)
	if err != nil {
		return nil, err
	}
	return s.Replay(ctx, orig.ID, actor)
}

// recordShadow 原记录已入账，只留存一条 duplicate 记录用于审计
func (s *ReplayService) recordShadow(ctx context.Context, orig *model.ExternalTransaction, conv reward.Conversion, actor string, result *ReplayResult) error {
	rec := &model.ExternalTransaction{
		Provider:     orig.Provider,
		ProviderTxID: orig.ProviderTxID + "#replay-" + uuid.NewString(),
		UserID:       orig.UserID,
		RawPayload:   orig.RawPayload,
		RewardUnits:  orig.RewardUnits,
		Status:       model.ExternalTxStatusDuplicate,
		Reason: fmt.Sprintf("replay by %s: original credited %d, current config yields %d",
			actor, orig.CreditedPoints, conv.Points),
		ReplayOf:  &orig.ID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("写入重放记录失败: %w", err)
	}
	result.ReplayID = rec.ID
	result.Status = rec.Status
	return nil
}

// creditRejected 原记录被拒绝，重放键只能入账一次
func (s *ReplayService) creditRejected(ctx context.Context, orig *model.ExternalTransaction, conv reward.Conversion, actor string, result *ReplayResult) error {
	candidate := &model.ExternalTransaction{
		Provider:     orig.Provider,
		ProviderTxID: orig.ProviderTxID + "#replay",
		UserID:       orig.UserID,
		RawPayload:   orig.RawPayload,
		RewardUnits:  orig.RewardUnits,
		Status:       model.ExternalTxStatusPending,
		ReplayOf:     &orig.ID,
		CreatedAt:    s.clock.Now(),
	}

	credited := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, isNew, err := s.extTxRepo.RecordOrReject(ctx, tx, candidate)
		if err != nil {
			return fmt.Errorf("写入重放记录失败: %w", err)
		}
		result.ReplayID = rec.ID
		if !isNew {
			result.Status = rec.Status
			result.Credited = rec.Status == model.ExternalTxStatusCredited
			result.ReplayPoints = rec.CreditedPoints
			return nil
		}

		if conv.Points == 0 {
			result.Status = model.ExternalTxStatusRejected
			return s.extTxRepo.MarkStatus(ctx, tx, rec.ID, model.ExternalTxStatusRejected, reasonZeroReward)
		}

		_, err = s.credit.Credit(ctx, tx, CreditRequest{
			UserID: orig.UserID,
			Points: conv.Points,
			Provenance: Provenance{
				Type:          model.PointTxTypeReplayCredit,
				Source:        orig.Provider,
				Reference:     orig.ProviderTxID,
				Remark:        fmt.Sprintf("重放 #%d，操作人 %s", orig.ID, actor),
				LedgerEntryID: &rec.ID,
			},
		})
		if err != nil {
			return err
		}

		result.Status = model.ExternalTxStatusCredited
		result.Credited = true
		credited = true
		return s.outboxRepo.Enqueue(ctx, tx, s.cfg.Kafka.Topic.PointsCredited, orig.UserID, model.EventPointsCredited, map[string]interface{}{
			"user_id":        orig.UserID,
			"provider":       orig.Provider,
			"transaction_id": orig.ProviderTxID,
			"points":         conv.Points,
			"config_version": conv.ConfigVersion,
			"replay_of":      orig.ID,
		})
	})
	if err != nil {
		return err
	}

	if credited {
		metrics.PointsCreditedTotal.WithLabelValues("replay").Add(float64(result.ReplayPoints))
	}
	return nil
}
