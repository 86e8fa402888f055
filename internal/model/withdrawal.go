package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusCompleted = "completed"
)

var ValidWithdrawalTransitions = map[string][]string{
	WithdrawalStatusPending:  {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved: {WithdrawalStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidWithdrawalTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

type Withdrawal struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	WithdrawalNo   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdrawal_id"`
	UserID         string          `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Points         int64           `gorm:"not null" json:"points"`
	USDValue       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"usd_value"`
	Method         string          `gorm:"type:varchar(32);not null" json:"method"`
	AccountDetails string          `gorm:"type:text" json:"account_details"`
	Status         string          `gorm:"type:varchar(16);index;not null" json:"status"`
	RiskScore      int             `gorm:"not null;default:0" json:"risk_score"`
	Recommendation string          `gorm:"type:varchar(16)" json:"recommendation"`
	RiskSignals    string          `gorm:"type:text" json:"risk_signals"`
	// PendingKey 仅在 pending 状态下等于 user_id，唯一索引保证每个用户最多一笔待审核提现
	PendingKey  *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	ReviewNote  string     `gorm:"type:varchar(256)" json:"review_note,omitempty"`
	ReviewedBy  string     `gorm:"type:varchar(64)" json:"reviewed_by,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	EscalatedAt *time.Time `json:"escalated_at,omitempty"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
