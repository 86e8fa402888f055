// Package economy 管理积分经济参数：编译期默认值 + 数据库覆盖文档 + 版本化缓存
package economy

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidConfig = errors.New("invalid economy config")

// ProviderRate 渠道奖励单位到积分的换算参数
type ProviderRate struct {
	Multiplier    decimal.Decimal `json:"multiplier"`
	MinimumValue  int64           `json:"minimum_value"`
	MaximumCredit int64           `json:"maximum_credit"`
}

// Config 经济参数快照，读取方不得修改
type Config struct {
	Version               int64                      `json:"-"`
	PointsPerDollar       int64                      `json:"points_per_dollar"`
	GlobalMargin          decimal.Decimal            `json:"global_margin"`
	CountryMultipliers    map[string]decimal.Decimal `json:"country_multipliers"`
	EarningRates          map[string]int64           `json:"earning_rates"`
	DailyCaps             map[string]int64           `json:"daily_caps"`
	Providers             map[string]ProviderRate    `json:"providers"`
	MinWithdrawalPoints   int64                      `json:"min_withdrawal_points"`
	MinAccountAgeHours    int                        `json:"min_account_age_hours"`
	NormalMaxPointsPerDay int64                      `json:"normal_max_points_per_day"`
	HighRiskCountries     []string                   `json:"high_risk_countries"`
	WithdrawalMethods     []string                   `json:"withdrawal_methods"`
}

func Defaults() *Config {
	one := decimal.NewFromInt(1)
	return &Config{
		PointsPerDollar: 1000,
		GlobalMargin:    decimal.Zero,
		CountryMultipliers: map[string]decimal.Decimal{
			"US": one,
			"GB": one,
			"CA": one,
			"AU": one,
			"DE": one,
			"IN": decimal.RequireFromString("0.6"),
			"PH": decimal.RequireFromString("0.6"),
			"BR": decimal.RequireFromString("0.7"),
		},
		EarningRates: map[string]int64{
			"ad_view":   10,
			"news_read": 5,
			"game_play": 20,
			"survey":    200,
			"referral":  500,
		},
		DailyCaps: map[string]int64{
			"ad_view":   300,
			"news_read": 100,
			"game_play": 500,
		},
		Providers: map[string]ProviderRate{
			"offerwall": {Multiplier: one, MinimumValue: 1, MaximumCredit: 100000},
			"gamezop":   {Multiplier: one, MinimumValue: 1, MaximumCredit: 100000},
			"qureka":    {Multiplier: decimal.RequireFromString("0.1"), MinimumValue: 1, MaximumCredit: 100000},
		},
		MinWithdrawalPoints:   1000,
		MinAccountAgeHours:    6,
		NormalMaxPointsPerDay: 10000,
		HighRiskCountries:     []string{"RU", "NG", "UA", "CN", "VN", "PK", "KP", "RO", "GH", "TZ"},
		WithdrawalMethods:     []string{"paypal", "upi", "bank_transfer", "gift_card"},
	}
}

// Overlay 将覆盖文档叠加到默认值上；map 按 key 合并，其余字段整体替换
func Overlay(document string) (*Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(document) == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(document), cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// CountryMultiplier 未配置的国家按 1.0 计算
func (c *Config) CountryMultiplier(country string) decimal.Decimal {
	if m, ok := c.CountryMultipliers[strings.ToUpper(country)]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

func (c *Config) IsHighRiskCountry(country string) bool {
	country = strings.ToUpper(country)
	for _, cc := range c.HighRiskCountries {
		if strings.ToUpper(cc) == country {
			return true
		}
	}
	return false
}

func (c *Config) MethodAllowed(method string) bool {
	for _, m := range c.WithdrawalMethods {
		if m == method {
			return true
		}
	}
	return false
}

// PointsToUSD points / pointsPerDollar × 国家系数，保留两位小数
func (c *Config) PointsToUSD(points int64, country string) decimal.Decimal {
	if c.PointsPerDollar <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).
		Div(decimal.NewFromInt(c.PointsPerDollar)).
		Mul(c.CountryMultiplier(country)).
		Round(2)
}

func (c *Config) Validate() error {
	if c.PointsPerDollar <= 0 {
		return fmt.Errorf("%w: points_per_dollar must be positive", ErrInvalidConfig)
	}
	if c.GlobalMargin.IsNegative() || c.GlobalMargin.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: global_margin must be in [0, 1)", ErrInvalidConfig)
	}
	for cc, m := range c.CountryMultipliers {
		if !m.IsPositive() {
			return fmt.Errorf("%w: country multiplier for %s must be positive", ErrInvalidConfig, cc)
		}
	}
	for name, p := range c.Providers {
		if p.Multiplier.IsNegative() {
			return fmt.Errorf("%w: provider %s multiplier must not be negative", ErrInvalidConfig, name)
		}
		if p.MinimumValue < 0 || p.MaximumCredit < p.MinimumValue {
			return fmt.Errorf("%w: provider %s needs 0 <= minimum_value <= maximum_credit", ErrInvalidConfig, name)
		}
	}
	if c.MinWithdrawalPoints <= 0 {
		return fmt.Errorf("%w: min_withdrawal_points must be positive", ErrInvalidConfig)
	}
	if c.MinAccountAgeHours < 0 {
		return fmt.Errorf("%w: min_account_age_hours must not be negative", ErrInvalidConfig)
	}
	if c.NormalMaxPointsPerDay <= 0 {
		return fmt.Errorf("%w: normal_max_points_per_day must be positive", ErrInvalidConfig)
	}
	if len(c.WithdrawalMethods) == 0 {
		return fmt.Errorf("%w: at least one withdrawal method is required", ErrInvalidConfig)
	}
	return nil
}
