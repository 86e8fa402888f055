package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rewardhub/internal/config"
	"rewardhub/internal/infrastructure/mq"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/internal/testutil"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxSender_SendAndRetry(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Enqueue(ctx, nil, "points_credited", "U1", model.EventPointsCredited, map[string]interface{}{"points": 100}))
	require.NoError(t, repo.Enqueue(ctx, nil, "withdrawal_events", "W1", model.EventWithdrawalRequested, map[string]interface{}{"points": 2000}))

	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	cfg := &config.Config{Business: config.BusinessConfig{MaxRetryCount: 2}}
	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), cfg)

	assert.Equal(t, 1, sender.processPendingMessages(ctx))

	sent, err := repo.GetByKey(ctx, "U1")
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, model.OutboxStatusSent, sent[0].Status)

	failing, err := repo.GetByKey(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusPending, failing[0].Status)
	assert.Equal(t, 1, failing[0].RetryCount)

	// 第二次失败达到上限
	assert.Equal(t, 0, sender.processPendingMessages(ctx))
	failing, err = repo.GetByKey(ctx, "W1")
	require.NoError(t, err)
	assert.Equal(t, model.OutboxStatusFailed, failing[0].Status)

	pending, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	require.NoError(t, producer.Close())
}

func TestOutboxSender_StopsOnCancel(t *testing.T) {
	db := testutil.NewDB(t)
	producer := mocks.NewSyncProducer(t, nil)
	sender := NewOutboxSender(db, mq.NewKafkaPublisher(producer), &config.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sender.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("outbox sender did not stop")
	}
}

type fakeEscalator struct {
	calls int32
	n     int
	err   error
}

func (f *fakeEscalator) EscalateStale(ctx context.Context, limit int) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.n, f.err
}

func TestWithdrawalEscalationJob(t *testing.T) {
	esc := &fakeEscalator{n: 3}
	job := NewWithdrawalEscalationJob(esc)
	assert.Equal(t, 3, job.escalate(context.Background()))

	esc = &fakeEscalator{err: errors.New("db down")}
	job = NewWithdrawalEscalationJob(esc)
	assert.Equal(t, 0, job.escalate(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&esc.calls))

	job.interval = 10 * time.Millisecond
	done := make(chan struct{})
	go func() {
		job.Start(context.Background())
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	job.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("escalation job did not stop")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&esc.calls), int32(2))
}
