package callback

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Provider 单个奖励渠道的报文格式与签名规则
type Provider interface {
	Name() string
	// extract 按渠道字段别名取值，不做签名校验
	extract(p Payload) (fields, error)
	// sign 按渠道规则计算期望签名
	sign(f fields, secret string) string
}

const (
	ProviderOfferwall = "offerwall"
	ProviderGamezop   = "gamezop"
	ProviderQureka    = "qureka"
)

var signatureKeys = []string{"signature", "sig", "hash"}

// Offerwall 通用 offerwall：MD5(sub_id:amount:secret)，小写十六进制
type Offerwall struct{}

func (Offerwall) Name() string { return ProviderOfferwall }

func (Offerwall) extract(p Payload) (fields, error) {
	f := fields{
		txnID:     p.first("trans_id", "transactionId"),
		userID:    p.first("sub_id", "userId"),
		reward:    p.first("amount", "reward"),
		timestamp: p.first("timestamp"),
		signature: p.first(signatureKeys...),
	}
	return f, f.require("transaction id", "user id", "reward")
}

func (Offerwall) sign(f fields, secret string) string {
	sum := md5.Sum([]byte(f.userID + ":" + f.reward + ":" + secret))
	return hex.EncodeToString(sum[:])
}

// Gamezop HMAC-SHA256(secret, txn|user|coins|timestamp)，小写十六进制，时间戳必填
type Gamezop struct{}

func (Gamezop) Name() string { return ProviderGamezop }

func (Gamezop) extract(p Payload) (fields, error) {
	f := fields{
		txnID:     p.first("transactionId", "trans_id"),
		userID:    p.first("userId", "sub_id"),
		reward:    p.first("coins", "reward"),
		timestamp: p.first("timestamp"),
		signature: p.first(signatureKeys...),
	}
	return f, f.require("transaction id", "user id", "reward", "timestamp")
}

func (Gamezop) sign(f fields, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(f.txnID + "|" + f.userID + "|" + f.reward + "|" + f.timestamp))
	return hex.EncodeToString(mac.Sum(nil))
}

// Qureka MD5(txn:user:reward:secret)，大写十六进制
type Qureka struct{}

func (Qureka) Name() string { return ProviderQureka }

func (Qureka) extract(p Payload) (fields, error) {
	f := fields{
		txnID:     p.first("transactionId", "trans_id"),
		userID:    p.first("userId", "sub_id"),
		reward:    p.first("reward", "score"),
		timestamp: p.first("timestamp"),
		signature: p.first(signatureKeys...),
	}
	return f, f.require("transaction id", "user id", "reward")
}

func (Qureka) sign(f fields, secret string) string {
	sum := md5.Sum([]byte(f.txnID + ":" + f.userID + ":" + f.reward + ":" + secret))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Sign 供联调和测试生成合法签名
func Sign(p Provider, payload Payload, secret string) (string, error) {
	f, err := p.extract(payload)
	if err != nil {
		return "", err
	}
	return p.sign(f, secret), nil
}
