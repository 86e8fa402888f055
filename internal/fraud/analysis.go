package fraud

import (
	"github.com/shopspring/decimal"
)

const (
	RecommendApprove = "approve"
	RecommendReview  = "review"
	RecommendReject  = "reject"
)

const (
	ThresholdReview = 30
	ThresholdReject = 60
)

// Signal 单条风险信号
type Signal struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
	Score  int    `json:"score"`
}

// Analysis 提现风险评估结果，不单独落库，摘要写入提现记录
type Analysis struct {
	UserID          string          `json:"user_id"`
	RequestedPoints int64           `json:"requested_points"`
	USDValue        decimal.Decimal `json:"usd_value"`
	RiskScore       int             `json:"risk_score"`
	VelocityRisk    int             `json:"velocity_risk"`
	NewAccountRisk  int             `json:"new_account_risk"`
	PatternRisk     int             `json:"pattern_risk"`
	AmountRisk      int             `json:"amount_risk"`
	Signals         []Signal        `json:"signals"`
	Recommendation  string          `json:"recommendation"`
}

// Recommend >= 60 驳回，>= 30 人工审核，其余通过
func Recommend(score int) string {
	switch {
	case score >= ThresholdReject:
		return RecommendReject
	case score >= ThresholdReview:
		return RecommendReview
	default:
		return RecommendApprove
	}
}
