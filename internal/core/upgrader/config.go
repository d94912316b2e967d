package upgrader

import (
	"time"

	"github.com/dep2p/go-floodnet/config"
)

// Config 升级器配置
type Config struct {
	// Negotiation 协商方式（list-exchange / multistream）
	Negotiation string

	// NegotiateTimeout 协议协商超时（默认 10s）
	NegotiateTimeout time.Duration

	// Observer 状态变化回调（可选）
	Observer StateObserver
}

// DefaultConfig 创建默认配置
func DefaultConfig() Config {
	return Config{
		Negotiation:      config.NegotiationListExchange,
		NegotiateTimeout: 10 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建 Upgrader 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Upgrader.Negotiation != "" {
		c.Negotiation = cfg.Upgrader.Negotiation
	}
	if cfg.Upgrader.NegotiateTimeout > 0 {
		c.NegotiateTimeout = cfg.Upgrader.NegotiateTimeout.Duration()
	}
	return c
}
