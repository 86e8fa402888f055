// Package fraud 提现风险评分
//
// 四个子分：新账户、提现频率、金额、行为模式。子分内部取最大值，
// 子分之间相加，总分上限 100。评分只读，不修改任何数据。
package fraud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewardhub/internal/economy"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/pkg/clock"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SignalSource 评分所需的只读查询
type SignalSource interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	CountWithdrawalsSince(ctx context.Context, userID string, since time.Time) (int64, error)
	CountWithdrawals(ctx context.Context, userID string) (int64, error)
}

// ConfigSource 经济参数来源
type ConfigSource interface {
	Get(ctx context.Context) (*economy.Config, error)
}

type Analyzer struct {
	signals SignalSource
	config  ConfigSource
	clock   clock.Clock
}

func NewAnalyzer(signals SignalSource, config ConfigSource, clk clock.Clock) *Analyzer {
	return &Analyzer{signals: signals, config: config, clock: clk}
}

// Analyze 评估一笔提现；country 为空时使用用户资料中的国家
//
// 用户不存在直接返回 100/reject；查询失败返回 50/review，不会因错误放行。
func (a *Analyzer) Analyze(ctx context.Context, userID string, points int64, country string) *Analysis {
	result := &Analysis{
		UserID:          userID,
		RequestedPoints: points,
		USDValue:        decimal.Zero,
	}

	user, err := a.signals.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		result.RiskScore = 100
		result.Recommendation = RecommendReject
		result.Signals = []Signal{{Name: "user_not_found", Detail: "user record does not exist", Score: 100}}
		return result
	}
	if err != nil {
		return a.degraded(result, err)
	}
	if country == "" {
		country = user.CountryCode
	}

	rc, err := a.buildContext(ctx, user, points, country)
	if err != nil {
		return a.degraded(result, err)
	}
	result.USDValue = rc.usd

	type rule struct {
		fn  func(*ruleContext) (int, []Signal)
		out *int
	}
	rules := []rule{
		{ruleNewAccount, &result.NewAccountRisk},
		{ruleVelocity, &result.VelocityRisk},
		{ruleAmount, &result.AmountRisk},
		{rulePattern, &result.PatternRisk},
	}

	total := 0
	for _, r := range rules {
		score, signals := r.fn(rc)
		*r.out = score
		total += score
		result.Signals = append(result.Signals, signals...)
	}
	if total > 100 {
		total = 100
	}

	result.RiskScore = total
	result.Recommendation = Recommend(total)
	return result
}

func (a *Analyzer) degraded(result *Analysis, err error) *Analysis {
	logrus.WithError(err).WithField("user_id", result.UserID).Warn("风险信号查询失败，降级为人工审核")
	result.RiskScore = 50
	result.Recommendation = RecommendReview
	result.Signals = []Signal{{
		Name:   "degraded_check",
		Detail: "risk signals unavailable, manual review required",
		Score:  50,
	}}
	return result
}

// ruleContext 一次评分所需的全部信号，规则函数只读取不查询
type ruleContext struct {
	user             *model.User
	cfg              *economy.Config
	now              time.Time
	points           int64
	country          string
	usd              decimal.Decimal
	withdrawals24h   int64
	withdrawals7d    int64
	totalWithdrawals int64
}

func (a *Analyzer) buildContext(ctx context.Context, user *model.User, points int64, country string) (*ruleContext, error) {
	cfg, err := a.config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load economy config: %w", err)
	}

	now := a.clock.Now()
	last24h, err := a.signals.CountWithdrawalsSince(ctx, user.ID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	last7d, err := a.signals.CountWithdrawalsSince(ctx, user.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	total, err := a.signals.CountWithdrawals(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &ruleContext{
		user:             user,
		cfg:              cfg,
		now:              now,
		points:           points,
		country:          country,
		usd:              cfg.PointsToUSD(points, country),
		withdrawals24h:   last24h,
		withdrawals7d:    last7d,
		totalWithdrawals: total,
	}, nil
}

// repositorySignals 基于仓储的信号查询
type repositorySignals struct {
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
}

func NewRepositorySignals(users *repository.UserRepository, withdrawals *repository.WithdrawalRepository) SignalSource {
	return &repositorySignals{users: users, withdrawals: withdrawals}
}

func (s *repositorySignals) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

func (s *repositorySignals) CountWithdrawalsSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	return s.withdrawals.CountSince(ctx, userID, since)
}

func (s *repositorySignals) CountWithdrawals(ctx context.Context, userID string) (int64, error) {
	return s.withdrawals.CountByUser(ctx, userID)
}
