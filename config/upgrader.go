package config

import (
	"errors"
	"fmt"
	"time"
)

// 协商方式
const (
	// NegotiationListExchange 双方交换协议列表，监听方顺序优先
	NegotiationListExchange = "list-exchange"
	// NegotiationMultistream multistream-select 逐个提议，拨号方顺序优先
	NegotiationMultistream = "multistream"
)

// 应用协议名称
const (
	ProtocolFloodSub = "floodsub"
	ProtocolIdentify = "identify"
	ProtocolHello    = "hello"
)

// UpgraderConfig 协议协商配置
type UpgraderConfig struct {
	// Negotiation 协商方式
	Negotiation string `json:"negotiation"`

	// NegotiateTimeout 单次协商超时
	NegotiateTimeout Duration `json:"negotiate_timeout"`

	// Protocols 注册的应用协议，顺序即本地偏好顺序
	Protocols []string `json:"protocols"`
}

// DefaultUpgraderConfig 返回默认协商配置
func DefaultUpgraderConfig() UpgraderConfig {
	return UpgraderConfig{
		Negotiation:      NegotiationListExchange,
		NegotiateTimeout: Duration(10 * time.Second),
		Protocols:        []string{ProtocolFloodSub, ProtocolIdentify, ProtocolHello},
	}
}

// Validate 验证协商配置
func (c UpgraderConfig) Validate() error {
	switch c.Negotiation {
	case NegotiationListExchange, NegotiationMultistream:
	default:
		return fmt.Errorf("unknown negotiation %q", c.Negotiation)
	}
	if c.NegotiateTimeout <= 0 {
		return errors.New("negotiate timeout must be positive")
	}
	if len(c.Protocols) == 0 {
		return errors.New("at least one protocol is required")
	}
	seen := make(map[string]bool, len(c.Protocols))
	for _, p := range c.Protocols {
		switch p {
		case ProtocolFloodSub, ProtocolIdentify, ProtocolHello:
		default:
			return fmt.Errorf("unknown protocol %q", p)
		}
		if seen[p] {
			return fmt.Errorf("duplicate protocol %q", p)
		}
		seen[p] = true
	}
	return nil
}
