package model

import (
	"time"
)

const (
	PointTxTypeProviderCredit   = "PROVIDER_CREDIT"   // 渠道回调入账
	PointTxTypeReplayCredit     = "REPLAY_CREDIT"     // 管理员重放入账
	PointTxTypeWithdrawal       = "WITHDRAWAL"        // 提现扣减
	PointTxTypeWithdrawalRefund = "WITHDRAWAL_REFUND" // 提现驳回返还
)

// PointTransaction 积分流水表
//
// 只追加，不修改，不删除；记录变动前后余额用于对账。
type PointTransaction struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	UserID        string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Amount        int64     `gorm:"not null" json:"amount"` // 正数入账，负数出账
	Type          string    `gorm:"type:varchar(32);not null" json:"type"`
	Source        string    `gorm:"type:varchar(32)" json:"source"`                  // 渠道或业务来源
	Reference     string    `gorm:"type:varchar(128);index" json:"reference"`        // 外部交易ID / 提现单号
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointTransaction) TableName() string {
	return "point_transactions"
}
