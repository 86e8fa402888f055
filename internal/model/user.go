package model

import (
	"time"
)

// User 用户积分账户
//
// Points 是唯一的权威余额字段，只能由 CreditService 修改。
// TotalPoints 为历史遗留字段，只读，迁移后不再写入。
type User struct {
	ID                string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Points            int64     `gorm:"not null;default:0" json:"points"`
	TotalPoints       int64     `gorm:"not null;default:0" json:"-"`                     // Deprecated: 使用 Points
	LifetimeEarned    int64     `gorm:"not null;default:0" json:"lifetime_earned"`       // 累计获得积分
	CountryCode       string    `gorm:"type:varchar(2);index" json:"country_code"`       // ISO-3166 alpha-2
	DeviceFingerprint string    `gorm:"type:varchar(128);index" json:"device_fingerprint"`
	EmailVerified     bool      `gorm:"not null;default:false" json:"email_verified"`
	PhoneVerified     bool      `gorm:"not null;default:false" json:"phone_verified"`
	ReferralCode      string    `gorm:"type:varchar(32);index" json:"referral_code"`
	ReferredBy        *string   `gorm:"type:varchar(64)" json:"referred_by,omitempty"`
	Version           int       `gorm:"not null;default:0" json:"version"` // 每次余额变动 +1
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
