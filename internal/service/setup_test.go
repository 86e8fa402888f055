package service

import (
	"context"
	"testing"
	"time"

	"rewardhub/internal/callback"
	"rewardhub/internal/config"
	"rewardhub/internal/economy"
	"rewardhub/internal/fraud"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/internal/testutil"
	"rewardhub/pkg/clock"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const offerwallSecret = "ow-secret"

type fixture struct {
	db         *gorm.DB
	clock      *clock.FixedClock
	cfg        *config.Config
	economy    *economy.Service
	credit     *CreditService
	callbacks  *CallbackService
	replays    *ReplayService
	withdraws  *WithdrawalService
	accounts   *AccountService
	users      *repository.UserRepository
	extTxs     *repository.ExternalTransactionRepository
	pointTxs   *repository.PointTransactionRepository
	outbox     *repository.OutboxRepository
	withdrawRp *repository.WithdrawalRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	_, rdb := testutil.NewRedis(t)
	clk := clock.NewFixedClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))

	cfg := &config.Config{
		Callback: config.CallbackConfig{Timeout: 5 * time.Second},
		Kafka: config.KafkaConfig{Topic: config.KafkaTopicConfig{
			PointsCredited:   "points_credited",
			WithdrawalEvents: "withdrawal_events",
		}},
		Business: config.BusinessConfig{
			MaxRetryCount:       3,
			WithdrawalLockTTL:   10 * time.Second,
			WithdrawalReviewSLA: 48 * time.Hour,
			ConfigCacheTTL:      time.Minute,
		},
	}

	registry := callback.NewRegistry(clk, 0)
	registry.Register(callback.Offerwall{}, offerwallSecret)
	registry.Register(callback.Qureka{}, "qk-secret")

	econ := economy.NewService(repository.NewEconomyRepository(db), rdb, clk, cfg.Business.ConfigCacheTTL)
	credit := NewCreditService(db, clk)
	users := repository.NewUserRepository(db)
	withdrawRp := repository.NewWithdrawalRepository(db)
	analyzer := fraud.NewAnalyzer(fraud.NewRepositorySignals(users, withdrawRp), econ, clk)

	return &fixture{
		db:         db,
		clock:      clk,
		cfg:        cfg,
		economy:    econ,
		credit:     credit,
		callbacks:  NewCallbackService(db, cfg, registry, econ, credit, clk),
		replays:    NewReplayService(db, cfg, registry, econ, credit, clk),
		withdraws:  NewWithdrawalService(db, rdb, cfg, econ, analyzer, credit, clk),
		accounts:   NewAccountService(db),
		users:      users,
		extTxs:     repository.NewExternalTransactionRepository(db),
		pointTxs:   repository.NewPointTransactionRepository(db),
		outbox:     repository.NewOutboxRepository(db),
		withdrawRp: withdrawRp,
	}
}

func (f *fixture) seedUser(t *testing.T, id string, points int64, age time.Duration) *model.User {
	t.Helper()
	return testutil.SeedUser(t, f.db, id, points, "US", f.clock.Now().Add(-age))
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Points
}

func offerwallPayload(t *testing.T, txnID, userID, amount string) callback.Payload {
	t.Helper()
	p := callback.Payload{"trans_id": txnID, "sub_id": userID, "amount": amount}
	sig, err := callback.Sign(callback.Offerwall{}, p, offerwallSecret)
	require.NoError(t, err)
	p["signature"] = sig
	return p
}
