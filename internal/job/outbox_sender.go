package job

import (
	"context"
	"time"

	"rewardhub/internal/config"
	"rewardhub/internal/infrastructure/mq"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxSender 把与业务同事务写入的 outbox 消息投递到 Kafka
//
// 投递至少一次，消费方按 message_key + event 去重。
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  mq.Publisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	log        *logrus.Entry
}

func NewOutboxSender(db *gorm.DB, publisher mq.Publisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
		log:        logrus.WithField("job", "outbox_sender"),
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 返回本轮发送成功的条数
func (s *OutboxSender) processPendingMessages(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.WithError(err).Error("查询待发送消息失败")
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	entry := s.log.WithFields(logrus.Fields{
		"id":    msg.ID,
		"topic": msg.Topic,
		"key":   msg.MessageKey,
	})

	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxPublishTotal.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			// 下一轮会重发，依赖消费方去重
			entry.WithError(updateErr).Warn("更新消息状态失败")
		} else {
			entry.Debug("消息发送成功")
		}
		return true
	}

	metrics.OutboxPublishTotal.WithLabelValues("error").Inc()
	entry.WithError(err).WithField("retry_count", msg.RetryCount).Warn("消息发送失败")

	if err := s.outboxRepo.RecordFailure(ctx, msg, s.cfg.Business.MaxRetryCount); err != nil {
		entry.WithError(err).Error("记录发送失败次数失败")
		return false
	}
	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		metrics.OutboxPublishTotal.WithLabelValues("failed").Inc()
		entry.Error("消息超过最大重试次数，标记为失败")
	}
	return false
}
