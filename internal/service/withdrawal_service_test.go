package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rewardhub/internal/fraud"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withdrawal(userID string, points int64) *CreateWithdrawalRequest {
	return &CreateWithdrawalRequest{
		UserID:         userID,
		Points:         points,
		Method:         "paypal",
		AccountDetails: `{"email":"user@example.com"}`,
	}
}

func TestNewAccountIsBlockedBeforeScoring(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "U1", 6000, 2*time.Hour)

	_, err := f.withdraws.Create(context.Background(), withdrawal("U1", 6000))

	var rule *RuleError
	require.ErrorAs(t, err, &rule)
	assert.ErrorIs(t, err, ErrAccountTooNew)
	assert.Contains(t, rule.Message, "Account too new")
	assert.Contains(t, rule.Message, "4h 0m")
	assert.EqualValues(t, 6000, f.balance(t, "U1"))
}

func TestWithdrawalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 1500, 30*24*time.Hour)

	_, err := f.withdraws.Create(ctx, withdrawal("U1", 999))
	assert.ErrorIs(t, err, ErrBelowMinimum)
	assert.EqualError(t, err, "Minimum withdrawal is 1000 points")

	_, err = f.withdraws.Create(ctx, withdrawal("U1", 2000))
	assert.ErrorIs(t, err, repository.ErrInsufficientBalance)
	assert.EqualError(t, err, "Insufficient points")

	req := withdrawal("U1", 1000)
	req.Method = "crypto"
	_, err = f.withdraws.Create(ctx, req)
	assert.ErrorIs(t, err, ErrMethodNotAllowed)

	_, err = f.withdraws.Create(ctx, withdrawal("ghost", 1000))
	assert.ErrorIs(t, err, repository.ErrUserNotFound)

	_, err = f.withdraws.Create(ctx, withdrawal("U1", 1000))
	require.NoError(t, err)

	_, err = f.withdraws.Create(ctx, withdrawal("U1", 1000))
	assert.ErrorIs(t, err, ErrPendingWithdrawal)
	assert.EqualError(t, err, "You already have a pending withdrawal request")
}

func TestCreateWithdrawalDebitsAndRecordsRisk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 60000, 10*24*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 20000))
	require.NoError(t, err)

	w := res.Withdrawal
	assert.Equal(t, model.WithdrawalStatusPending, w.Status)
	assert.Equal(t, "20", w.USDValue.String())
	assert.Equal(t, res.Analysis.RiskScore, w.RiskScore)
	assert.Equal(t, fraud.RecommendReview, w.Recommendation)
	assert.EqualValues(t, 40000, f.balance(t, "U1"))

	stored, err := f.withdraws.Get(ctx, w.WithdrawalNo)
	require.NoError(t, err)
	assert.Equal(t, w.RiskScore, stored.RiskScore)
	assert.Contains(t, stored.RiskSignals, "first_withdrawal")

	events, err := f.outbox.GetByKey(ctx, w.WithdrawalNo)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "withdrawal_events", events[0].Topic)
	assert.Contains(t, events[0].Payload, model.EventWithdrawalRequested)
}

func TestRejectRecommendationStillCreatesPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 60000, 12*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 60000))
	require.NoError(t, err)

	assert.Equal(t, fraud.RecommendReject, res.Analysis.Recommendation)
	assert.GreaterOrEqual(t, res.Analysis.RiskScore, fraud.ThresholdReject)

	w := res.Withdrawal
	assert.Equal(t, model.WithdrawalStatusPending, w.Status)
	assert.Equal(t, fraud.RecommendReject, w.Recommendation)
	assert.EqualValues(t, 0, f.balance(t, "U1"))

	stored, err := f.withdraws.Get(ctx, w.WithdrawalNo)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusPending, stored.Status)
}

func TestRejectRestoresBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 5000, 30*24*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 5000))
	require.NoError(t, err)
	assert.EqualValues(t, 0, f.balance(t, "U1"))

	w, err := f.withdraws.Reject(ctx, res.Withdrawal.WithdrawalNo, "ops", "account mismatch")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRejected, w.Status)
	assert.EqualValues(t, 5000, f.balance(t, "U1"))

	u, err := f.users.GetByID(ctx, "U1")
	require.NoError(t, err)
	assert.EqualValues(t, 5000, u.LifetimeEarned)

	trail, err := f.pointTxs.ListByReference(ctx, w.WithdrawalNo)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, model.PointTxTypeWithdrawal, trail[0].Type)
	assert.Equal(t, model.PointTxTypeWithdrawalRefund, trail[1].Type)

	_, err = f.withdraws.Reject(ctx, w.WithdrawalNo, "ops", "again")
	assert.ErrorIs(t, err, repository.ErrWithdrawalStatusInvalid)
	assert.EqualValues(t, 5000, f.balance(t, "U1"))

	// 驳回后可以重新申请
	_, err = f.withdraws.Create(ctx, withdrawal("U1", 1000))
	require.NoError(t, err)
}

func TestPendingKeyConflictIsRuleError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 5000, 30*24*time.Hour)

	// 锁过期窗口内另一请求已占用 pending_key，但状态尚未对 HasPending 可见
	key := "U1"
	require.NoError(t, f.db.Create(&model.Withdrawal{
		WithdrawalNo: "W-inflight",
		UserID:       "U1",
		Points:       1000,
		USDValue:     decimal.NewFromInt(1),
		Method:       "paypal",
		Status:       model.WithdrawalStatusApproved,
		PendingKey:   &key,
	}).Error)

	_, err := f.withdraws.Create(ctx, withdrawal("U1", 1000))
	assert.ErrorIs(t, err, ErrPendingWithdrawal)
	assert.EqualError(t, err, "You already have a pending withdrawal request")
	// 事务回滚，余额不变
	assert.EqualValues(t, 5000, f.balance(t, "U1"))
}

func TestWithdrawalDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 5000, 30*24*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 2000))
	require.NoError(t, err)
	no := res.Withdrawal.WithdrawalNo

	detail, err := f.withdraws.Detail(ctx, no)
	require.NoError(t, err)
	assert.Equal(t, no, detail.Withdrawal.WithdrawalNo)
	require.Len(t, detail.Ledger, 1)
	assert.Equal(t, model.PointTxTypeWithdrawal, detail.Ledger[0].Type)
	assert.EqualValues(t, -2000, detail.Ledger[0].Amount)
	require.Len(t, detail.Events, 1)
	assert.Contains(t, detail.Events[0].Payload, model.EventWithdrawalRequested)

	_, err = f.withdraws.Reject(ctx, no, "ops", "duplicate account")
	require.NoError(t, err)
	detail, err = f.withdraws.Detail(ctx, no)
	require.NoError(t, err)
	assert.Len(t, detail.Ledger, 2)
	assert.Len(t, detail.Events, 2)

	_, err = f.withdraws.Detail(ctx, "W-missing")
	assert.ErrorIs(t, err, repository.ErrWithdrawalNotFound)
}

func TestApproveThenComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 3000, 30*24*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 2000))
	require.NoError(t, err)
	no := res.Withdrawal.WithdrawalNo

	_, err = f.withdraws.Complete(ctx, no, "ops", "")
	assert.ErrorIs(t, err, repository.ErrWithdrawalStatusInvalid)

	w, err := f.withdraws.Approve(ctx, no, "ops", "ok")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusApproved, w.Status)
	assert.NotNil(t, w.ProcessedAt)

	_, err = f.withdraws.Reject(ctx, no, "ops", "too late")
	assert.ErrorIs(t, err, repository.ErrWithdrawalStatusInvalid)

	w, err = f.withdraws.Complete(ctx, no, "ops", "paid")
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusCompleted, w.Status)
	assert.EqualValues(t, 1000, f.balance(t, "U1"))

	_, err = f.withdraws.Approve(ctx, "WDR-missing", "ops", "")
	assert.ErrorIs(t, err, repository.ErrWithdrawalNotFound)

	events, err := f.outbox.GetByKey(ctx, no)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestConcurrentWithdrawalsForOneBalance(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "U1", 1000, 30*24*time.Hour)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.withdraws.Create(context.Background(), withdrawal("U1", 1000))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var rule *RuleError
		require.True(t, errors.As(err, &rule), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.EqualValues(t, 0, f.balance(t, "U1"))
}

func TestEscalateStalePendingWithdrawals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "U1", 3000, 30*24*time.Hour)

	res, err := f.withdraws.Create(ctx, withdrawal("U1", 2000))
	require.NoError(t, err)

	n, err := f.withdraws.EscalateStale(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(49 * time.Hour)

	n, err = f.withdraws.EscalateStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.withdraws.EscalateStale(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := f.withdraws.Get(ctx, res.Withdrawal.WithdrawalNo)
	require.NoError(t, err)
	assert.NotNil(t, stored.EscalatedAt)
}
