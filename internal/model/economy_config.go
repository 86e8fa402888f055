package model

import (
	"time"
)

// EconomyConfigID 配置表只有一行
const EconomyConfigID = 1

// EconomyConfigDoc 持久化的经济参数覆盖文档（JSON），覆盖编译期默认值
type EconomyConfigDoc struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Version   int64     `gorm:"not null;default:0" json:"version"`
	Document  string    `gorm:"type:text;not null" json:"document"`
	UpdatedBy string    `gorm:"type:varchar(64)" json:"updated_by"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (EconomyConfigDoc) TableName() string {
	return "economy_config"
}
