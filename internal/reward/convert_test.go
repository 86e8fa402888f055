package reward

import (
	"testing"

	"rewardhub/internal/economy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestConvert(t *testing.T) {
	cfg := economy.Defaults()
	cfg.Providers["capped"] = economy.ProviderRate{Multiplier: d("10"), MinimumValue: 5, MaximumCredit: 500}

	tests := []struct {
		name     string
		provider string
		units    string
		want     int64
	}{
		{"offerwall one to one", "offerwall", "100", 100},
		{"fractional units floor", "gamezop", "25.9", 25},
		{"qureka scaled down", "qureka", "125", 12},
		{"provider name case", "Qureka", "125", 12},
		{"raised to minimum", "capped", "0.1", 5},
		{"clamped to maximum", "capped", "80", 500},
		{"zero units", "offerwall", "0", 0},
		{"negative units", "offerwall", "-10", 0},
		{"unknown provider", "nobody", "100", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Convert(cfg, tt.provider, d(tt.units)))
		})
	}
}

func TestConvertClampsHugeUnits(t *testing.T) {
	cfg := economy.Defaults()
	limit := cfg.Providers["offerwall"].MaximumCredit

	for _, units := range []string{
		"9223372036854775807",
		"9223372036854775808",
		"18446744073709551621",
		"1e30",
	} {
		t.Run(units, func(t *testing.T) {
			assert.Equal(t, limit, Convert(cfg, "offerwall", d(units)))
		})
	}
}

func TestConvertAppliesGlobalMargin(t *testing.T) {
	cfg := economy.Defaults()
	cfg.GlobalMargin = d("0.25")
	assert.EqualValues(t, 75, Convert(cfg, "offerwall", d("100")))
	assert.EqualValues(t, 74, Convert(cfg, "offerwall", d("99")))
}

func TestExplainIsDeterministic(t *testing.T) {
	cfg := economy.Defaults()
	cfg.Version = 7

	a := Explain(cfg, "gamezop", d("42"))
	b := Explain(cfg, "gamezop", d("42"))
	assert.Equal(t, a, b)
	assert.EqualValues(t, 7, a.ConfigVersion)
	assert.EqualValues(t, 42, a.Points)
	assert.True(t, a.Multiplier.Equal(d("1")))
}
