package callback

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Payload 回调原始键值，query 与 body 合并后的结果
type Payload map[string]string

// first 按别名顺序取第一个非空值，返回命中的值
func (p Payload) first(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p[k]); v != "" {
			return v
		}
	}
	return ""
}

// Descriptor 校验通过后的标准化交易描述
type Descriptor struct {
	Provider              string          `json:"provider"`
	ProviderTransactionID string          `json:"provider_transaction_id"`
	UserID                string          `json:"user_id"`
	RewardUnits           decimal.Decimal `json:"reward_units"`
	RawUnits              string          `json:"raw_units"`
	Timestamp             time.Time       `json:"timestamp"`
}

// fields 解析出的原始字段，签名按渠道文档使用原样字符串计算
type fields struct {
	txnID     string
	userID    string
	reward    string
	timestamp string
	signature string
}

func (f fields) require(names ...string) error {
	values := map[string]string{
		"transaction id": f.txnID,
		"user id":        f.userID,
		"reward":         f.reward,
		"timestamp":      f.timestamp,
		"signature":      f.signature,
	}
	for _, n := range names {
		if values[n] == "" {
			return fmt.Errorf("%w: missing %s", ErrInvalidPayload, n)
		}
	}
	return nil
}

func (f fields) descriptor(provider string) (*Descriptor, error) {
	units, err := decimal.NewFromString(f.reward)
	if err != nil {
		return nil, fmt.Errorf("%w: reward %q is not a number", ErrInvalidPayload, f.reward)
	}
	if units.IsNegative() {
		return nil, fmt.Errorf("%w: reward must not be negative", ErrInvalidPayload)
	}

	d := &Descriptor{
		Provider:              provider,
		ProviderTransactionID: f.txnID,
		UserID:                f.userID,
		RewardUnits:           units,
		RawUnits:              f.reward,
	}
	if f.timestamp != "" {
		ts, err := parseTimestamp(f.timestamp)
		if err != nil {
			return nil, err
		}
		d.Timestamp = ts
	}
	return d, nil
}

// parseTimestamp 支持 unix 秒、unix 毫秒和 RFC3339
func parseTimestamp(raw string) (time.Time, error) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if len(raw) >= 13 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidPayload, raw)
	}
	return ts.UTC(), nil
}
