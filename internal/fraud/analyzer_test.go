package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"rewardhub/internal/economy"
	"rewardhub/internal/model"
	"rewardhub/internal/repository"
	"rewardhub/internal/testutil"
	"rewardhub/pkg/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fakeSignals struct {
	user     *model.User
	userErr  error
	last24h  int64
	last7d   int64
	total    int64
	countErr error
}

func (f *fakeSignals) GetUser(_ context.Context, _ string) (*model.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeSignals) CountWithdrawalsSince(_ context.Context, _ string, since time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if now.Sub(since) <= 24*time.Hour {
		return f.last24h, nil
	}
	return f.last7d, nil
}

func (f *fakeSignals) CountWithdrawals(_ context.Context, _ string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.total, nil
}

type staticConfig struct {
	cfg *economy.Config
	err error
}

func (s staticConfig) Get(context.Context) (*economy.Config, error) { return s.cfg, s.err }

func user(age time.Duration, points int64) *model.User {
	return &model.User{
		ID:             "U1",
		Points:         points,
		LifetimeEarned: points,
		CountryCode:    "US",
		CreatedAt:      now.Add(-age),
	}
}

func analyze(t *testing.T, s *fakeSignals, points int64, country string) *Analysis {
	t.Helper()
	a := NewAnalyzer(s, staticConfig{cfg: economy.Defaults()}, clock.NewFixedClock(now))
	return a.Analyze(context.Background(), "U1", points, country)
}

func TestScenarioFlaggedCountryFullBalance(t *testing.T) {
	s := &fakeSignals{user: user(10*24*time.Hour, 60000)}

	got := analyze(t, s, 60000, "NG")

	assert.Equal(t, "60", got.USDValue.String())
	assert.Equal(t, 30, got.AmountRisk)
	assert.Equal(t, 25, got.PatternRisk)
	assert.Equal(t, 0, got.NewAccountRisk)
	assert.Equal(t, 0, got.VelocityRisk)
	assert.Equal(t, 55, got.RiskScore)
	assert.Equal(t, RecommendReview, got.Recommendation)
}

func TestNewAccountBands(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{2 * time.Hour, 40},
		{30 * time.Hour, 25},
		{4 * 24 * time.Hour, 10},
		{8 * 24 * time.Hour, 0},
	}
	for _, tt := range tests {
		s := &fakeSignals{user: user(tt.age, 100000), total: 1}
		got := analyze(t, s, 1000, "US")
		assert.Equal(t, tt.want, got.NewAccountRisk, tt.age.String())
	}
}

func TestVelocityTakesMax(t *testing.T) {
	base := func() *fakeSignals { return &fakeSignals{user: user(30*24*time.Hour, 100000), total: 5} }

	s := base()
	s.last24h, s.last7d = 1, 1
	assert.Equal(t, 30, analyze(t, s, 1000, "US").VelocityRisk)

	s = base()
	s.last24h, s.last7d = 0, 3
	assert.Equal(t, 40, analyze(t, s, 1000, "US").VelocityRisk)

	s = base()
	s.last24h, s.last7d = 2, 4
	assert.Equal(t, 40, analyze(t, s, 1000, "US").VelocityRisk)
}

func TestAmountThresholdsAreNotCumulative(t *testing.T) {
	seasoned := func() *fakeSignals { return &fakeSignals{user: user(30*24*time.Hour, 1000000), total: 2} }

	assert.Equal(t, 0, analyze(t, seasoned(), 10000, "US").AmountRisk)
	assert.Equal(t, 15, analyze(t, seasoned(), 10010, "US").AmountRisk)
	assert.Equal(t, 30, analyze(t, seasoned(), 51000, "US").AmountRisk)

	first := &fakeSignals{user: user(30*24*time.Hour, 1000000)}
	assert.Equal(t, 15, analyze(t, first, 6000, "US").AmountRisk)
	assert.Equal(t, 0, analyze(t, first, 5000, "US").AmountRisk)
	assert.Equal(t, 30, analyze(t, first, 20000, "US").AmountRisk)
}

func TestPatternRisk(t *testing.T) {
	s := &fakeSignals{user: user(30*24*time.Hour, 5000), total: 1}
	assert.Equal(t, 20, analyze(t, s, 5000, "US").PatternRisk)
	assert.Equal(t, 0, analyze(t, s, 4000, "US").PatternRisk)

	// 3 天获得 60000 积分，超过每日正常上限
	fast := &fakeSignals{user: user(3*24*time.Hour, 60000), total: 1}
	assert.Equal(t, 30, analyze(t, fast, 1000, "US").PatternRisk)
	assert.Equal(t, 30, analyze(t, fast, 1000, "NG").PatternRisk)
}

func TestTotalIsCappedAndRejected(t *testing.T) {
	s := &fakeSignals{user: user(time.Hour, 80000), last24h: 1, last7d: 3}
	got := analyze(t, s, 80000, "NG")

	assert.Equal(t, 40, got.NewAccountRisk)
	assert.Equal(t, 40, got.VelocityRisk)
	assert.Equal(t, 100, got.RiskScore)
	assert.Equal(t, RecommendReject, got.Recommendation)
	assert.NotEmpty(t, got.Signals)
}

func TestRaisingOneSignalNeverLowersScore(t *testing.T) {
	amounts := []int64{1000, 5000, 5001, 6000, 10000, 10001, 20000, 50000, 50001, 90000}
	for _, total := range []int64{0, 3} {
		prev := -1
		for _, amount := range amounts {
			s := &fakeSignals{user: user(5*24*time.Hour, 100000), total: total}
			got := analyze(t, s, amount, "US").RiskScore
			assert.GreaterOrEqual(t, got, prev, "amount %d", amount)
			prev = got
		}
	}

	prev := -1
	for _, age := range []time.Duration{30 * 24 * time.Hour, 6 * 24 * time.Hour, 2 * 24 * time.Hour, time.Hour} {
		s := &fakeSignals{user: user(age, 5000), total: 1}
		got := analyze(t, s, 1000, "US").RiskScore
		assert.GreaterOrEqual(t, got, prev, "age %s", age)
		prev = got
	}
}

func TestUserNotFoundIsMaximumRisk(t *testing.T) {
	s := &fakeSignals{userErr: repository.ErrUserNotFound}
	got := analyze(t, s, 1000, "US")
	assert.Equal(t, 100, got.RiskScore)
	assert.Equal(t, RecommendReject, got.Recommendation)
}

func TestQueryFailureDegradesToReview(t *testing.T) {
	got := analyze(t, &fakeSignals{userErr: errors.New("db down")}, 1000, "US")
	assert.Equal(t, 50, got.RiskScore)
	assert.Equal(t, RecommendReview, got.Recommendation)
	require.Len(t, got.Signals, 1)
	assert.Equal(t, "degraded_check", got.Signals[0].Name)

	got = analyze(t, &fakeSignals{user: user(time.Hour, 0), countErr: errors.New("timeout")}, 1000, "US")
	assert.Equal(t, 50, got.RiskScore)
	assert.Equal(t, RecommendReview, got.Recommendation)

	a := NewAnalyzer(&fakeSignals{user: user(time.Hour, 0)}, staticConfig{err: errors.New("no config")}, clock.NewFixedClock(now))
	got = a.Analyze(context.Background(), "U1", 1000, "")
	assert.Equal(t, RecommendReview, got.Recommendation)
}

func TestRepositorySignals(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, "U1", 60000, "NG", now.Add(-10*24*time.Hour))

	signals := NewRepositorySignals(repository.NewUserRepository(db), repository.NewWithdrawalRepository(db))
	a := NewAnalyzer(signals, staticConfig{cfg: economy.Defaults()}, clock.NewFixedClock(now))

	got := a.Analyze(context.Background(), "U1", 60000, "")
	assert.Equal(t, 55, got.RiskScore)
	assert.Equal(t, RecommendReview, got.Recommendation)

	missing := a.Analyze(context.Background(), "nobody", 60000, "")
	assert.Equal(t, RecommendReject, missing.Recommendation)
}
