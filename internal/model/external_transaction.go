package model

import (
	"time"
)

const (
	ExternalTxStatusPending   = "pending"
	ExternalTxStatusCredited  = "credited"
	ExternalTxStatusDuplicate = "duplicate"
	ExternalTxStatusRejected  = "rejected"
)

// ExternalTransaction 渠道回调幂等记录
// (provider, provider_tx_id) 唯一，同一键最多只有一条记录进入 credited
type ExternalTransaction struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider       string     `gorm:"type:varchar(32);not null;uniqueIndex:uk_provider_tx,priority:1" json:"provider"`
	ProviderTxID   string     `gorm:"type:varchar(128);not null;uniqueIndex:uk_provider_tx,priority:2" json:"provider_tx_id"`
	UserID         string     `gorm:"type:varchar(64);index;not null" json:"user_id"`
	RawPayload     string     `gorm:"type:text;not null" json:"-"` // 含渠道签名，不对外输出
	RewardUnits    string     `gorm:"type:varchar(64);not null" json:"reward_units"`
	CreditedPoints int64      `gorm:"not null;default:0" json:"credited_points"`
	Status         string     `gorm:"type:varchar(16);index;not null" json:"status"`
	Reason         string     `gorm:"type:varchar(256)" json:"reason,omitempty"`
	ReplayOf       *int64     `gorm:"index" json:"replay_of,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CreditedAt     *time.Time `json:"credited_at,omitempty"`
}

func (ExternalTransaction) TableName() string {
	return "external_transactions"
}
