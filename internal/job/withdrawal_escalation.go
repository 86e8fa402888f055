package job

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StaleEscalator 由提现服务实现
type StaleEscalator interface {
	EscalateStale(ctx context.Context, limit int) (int, error)
}

// WithdrawalEscalationJob 定期把超过审核时限的 pending 提现标记为升级
type WithdrawalEscalationJob struct {
	escalator StaleEscalator
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
	log       *logrus.Entry
}

func NewWithdrawalEscalationJob(escalator StaleEscalator) *WithdrawalEscalationJob {
	return &WithdrawalEscalationJob{
		escalator: escalator,
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 100,
		log:       logrus.WithField("job", "withdrawal_escalation"),
	}
}

func (j *WithdrawalEscalationJob) Start(ctx context.Context) {
	j.log.Info("提现超时升级任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("任务停止")
			return
		case <-ticker.C:
			j.escalate(ctx)
		}
	}
}

func (j *WithdrawalEscalationJob) Stop() {
	close(j.stopCh)
}

func (j *WithdrawalEscalationJob) escalate(ctx context.Context) int {
	n, err := j.escalator.EscalateStale(ctx, j.batchSize)
	if err != nil {
		j.log.WithError(err).Error("升级超时提现失败")
	}
	if n > 0 {
		j.log.WithField("count", n).Warn("提现审核超时，已升级")
	}
	return n
}
