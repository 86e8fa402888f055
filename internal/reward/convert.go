// Package reward 把渠道奖励单位换算成积分
package reward

import (
	"strings"

	"rewardhub/internal/economy"

	"github.com/shopspring/decimal"
)

// Conversion 一次换算的输入与结果，重放时用于比对配置漂移
type Conversion struct {
	Provider      string          `json:"provider"`
	Units         decimal.Decimal `json:"units"`
	Multiplier    decimal.Decimal `json:"multiplier"`
	GlobalMargin  decimal.Decimal `json:"global_margin"`
	MinimumValue  int64           `json:"minimum_value"`
	MaximumCredit int64           `json:"maximum_credit"`
	ConfigVersion int64           `json:"config_version"`
	Points        int64           `json:"points"`
}

// Convert floor(units × multiplier × (1 − margin))，再限制在 [minimum, maximum]
// 未知渠道或 units <= 0 返回 0
func Convert(cfg *economy.Config, provider string, units decimal.Decimal) int64 {
	return Explain(cfg, provider, units).Points
}

func Explain(cfg *economy.Config, provider string, units decimal.Decimal) Conversion {
	provider = strings.ToLower(provider)
	c := Conversion{
		Provider:      provider,
		Units:         units,
		GlobalMargin:  cfg.GlobalMargin,
		ConfigVersion: cfg.Version,
	}

	rate, ok := cfg.Providers[provider]
	if !ok {
		return c
	}
	c.Multiplier = rate.Multiplier
	c.MinimumValue = rate.MinimumValue
	c.MaximumCredit = rate.MaximumCredit

	if !units.IsPositive() {
		return c
	}

	points := units.
		Mul(rate.Multiplier).
		Mul(decimal.NewFromInt(1).Sub(cfg.GlobalMargin)).
		Floor()

	// 先在 decimal 上限制范围，超出 int64 的值不能直接 IntPart
	if lo := decimal.NewFromInt(rate.MinimumValue); points.LessThan(lo) {
		points = lo
	}
	if hi := decimal.NewFromInt(rate.MaximumCredit); points.GreaterThan(hi) {
		points = hi
	}
	c.Points = points.IntPart()
	return c
}
