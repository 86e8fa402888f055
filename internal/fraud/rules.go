package fraud

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	usd5  = decimal.NewFromInt(5)
	usd10 = decimal.NewFromInt(10)
	usd50 = decimal.NewFromInt(50)
)

const amountRiskCap = 30

func ruleNewAccount(rc *ruleContext) (int, []Signal) {
	age := rc.now.Sub(rc.user.CreatedAt)

	var score int
	switch {
	case age < 24*time.Hour:
		score = 40
	case age < 3*24*time.Hour:
		score = 25
	case age < 7*24*time.Hour:
		score = 10
	default:
		return 0, nil
	}
	return score, []Signal{{
		Name:   "new_account",
		Detail: fmt.Sprintf("account is %.1f hours old", age.Hours()),
		Score:  score,
	}}
}

func ruleVelocity(rc *ruleContext) (int, []Signal) {
	var score int
	var signals []Signal

	if rc.withdrawals24h >= 1 {
		score = 30
		signals = append(signals, Signal{
			Name:   "velocity_24h",
			Detail: fmt.Sprintf("%d withdrawal(s) in the last 24 hours", rc.withdrawals24h),
			Score:  30,
		})
	}
	if rc.withdrawals7d >= 3 {
		score = maxInt(score, 40)
		signals = append(signals, Signal{
			Name:   "velocity_7d",
			Detail: fmt.Sprintf("%d withdrawals in the last 7 days", rc.withdrawals7d),
			Score:  40,
		})
	}
	return score, signals
}

// ruleAmount 阈值取高者；首次提现附加 15，合计不超过 30
func ruleAmount(rc *ruleContext) (int, []Signal) {
	var score int
	var signals []Signal

	switch {
	case rc.usd.GreaterThan(usd50):
		score = 30
	case rc.usd.GreaterThan(usd10):
		score = 15
	}
	if score > 0 {
		signals = append(signals, Signal{
			Name:   "large_amount",
			Detail: fmt.Sprintf("withdrawal value $%s", rc.usd.StringFixed(2)),
			Score:  score,
		})
	}

	if rc.totalWithdrawals == 0 && rc.usd.GreaterThan(usd5) {
		score += 15
		signals = append(signals, Signal{
			Name:   "first_withdrawal",
			Detail: fmt.Sprintf("first withdrawal of $%s", rc.usd.StringFixed(2)),
			Score:  15,
		})
	}

	if score > amountRiskCap {
		score = amountRiskCap
	}
	return score, signals
}

func rulePattern(rc *ruleContext) (int, []Signal) {
	var score int
	var signals []Signal

	if rc.points == rc.user.Points {
		score = 20
		signals = append(signals, Signal{
			Name:   "full_balance",
			Detail: "withdrawal equals the entire balance",
			Score:  20,
		})
	}

	days := rc.now.Sub(rc.user.CreatedAt).Hours() / 24
	if days < 1 {
		days = 1
	}
	perDay := float64(rc.user.LifetimeEarned) / days
	if perDay > float64(rc.cfg.NormalMaxPointsPerDay) {
		score = maxInt(score, 30)
		signals = append(signals, Signal{
			Name:   "earning_rate",
			Detail: fmt.Sprintf("earned %.0f points per day since signup", perDay),
			Score:  30,
		})
	}

	if rc.cfg.IsHighRiskCountry(rc.country) {
		score = maxInt(score, 25)
		signals = append(signals, Signal{
			Name:   "high_risk_country",
			Detail: fmt.Sprintf("country %s is flagged", rc.country),
			Score:  25,
		})
	}
	return score, signals
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
