package config

import (
	"fmt"
	"net"
)

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enable 是否采集指标
	Enable bool `json:"enable"`

	// ListenAddr Prometheus HTTP 端点，如 "127.0.0.1:9090"；为空时不暴露
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable: true,
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.ListenAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return fmt.Errorf("metrics listen addr: %w", err)
	}
	return nil
}
