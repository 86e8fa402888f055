// Package callback 解析并校验奖励渠道的异步回调
package callback

import (
	"fmt"
	"strings"
	"time"

	"rewardhub/internal/config"
	"rewardhub/pkg/clock"

	"github.com/sirupsen/logrus"
)

var builtin = map[string]Provider{
	ProviderOfferwall: Offerwall{},
	ProviderGamezop:   Gamezop{},
	ProviderQureka:    Qureka{},
}

type entry struct {
	provider Provider
	secret   string
}

// Registry 已启用渠道及其密钥
type Registry struct {
	providers map[string]entry
	maxAge    time.Duration
	clock     clock.Clock
}

func NewRegistry(clk clock.Clock, maxAge time.Duration) *Registry {
	return &Registry{
		providers: make(map[string]entry),
		maxAge:    maxAge,
		clock:     clk,
	}
}

// NewRegistryFromConfig 按配置启用内置渠道，未知名称忽略并告警
func NewRegistryFromConfig(providers map[string]config.ProviderConfig, cb config.CallbackConfig, clk clock.Clock) *Registry {
	r := NewRegistry(clk, cb.MaxAge)
	for name, pc := range providers {
		if !pc.Enabled {
			continue
		}
		p, ok := builtin[strings.ToLower(name)]
		if !ok {
			logrus.WithField("provider", name).Warn("配置了未知的奖励渠道，已忽略")
			continue
		}
		if pc.SecretKey == "" {
			logrus.WithField("provider", name).Warn("渠道未配置密钥，已忽略")
			continue
		}
		r.Register(p, pc.SecretKey)
	}
	return r
}

func (r *Registry) Register(p Provider, secret string) {
	r.providers[p.Name()] = entry{provider: p, secret: secret}
}

func (r *Registry) Has(name string) bool {
	_, ok := r.providers[strings.ToLower(name)]
	return ok
}

// Parse 解析并校验签名，签名比较区分大小写
func (r *Registry) Parse(name string, payload Payload) (*Descriptor, error) {
	e, ok := r.providers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	f, err := e.provider.extract(payload)
	if err != nil {
		return nil, err
	}
	if err := f.require("signature"); err != nil {
		return nil, err
	}
	if f.signature != e.provider.sign(f, e.secret) {
		return nil, ErrSignatureMismatch
	}

	d, err := f.descriptor(e.provider.Name())
	if err != nil {
		return nil, err
	}
	if r.maxAge > 0 && !d.Timestamp.IsZero() && r.clock.Now().Sub(d.Timestamp) > r.maxAge {
		return nil, fmt.Errorf("%w: timestamp too old", ErrInvalidPayload)
	}
	return d, nil
}

// ParseTrusted 解析已入库的原始报文，不再校验签名和时效，用于重放
func (r *Registry) ParseTrusted(name string, payload Payload) (*Descriptor, error) {
	p, ok := builtin[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	f, err := p.extract(payload)
	if err != nil {
		return nil, err
	}
	return f.descriptor(p.Name())
}
