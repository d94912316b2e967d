package swarm

import (
	"time"

	"github.com/dep2p/go-floodnet/config"
)

// Config Swarm 配置
type Config struct {
	// DialTimeout 单次拨号超时
	DialTimeout time.Duration

	// EventBuffer 事件通道缓冲，0 表示不上报事件
	EventBuffer int

	// MaxInboundStreams 每个连接同时处理的入站流上限
	MaxInboundStreams int

	// CloseLinger 流全部结束后连接保持的时间
	//
	// 期间对端关闭或有新流到达则提前结束等待。
	CloseLinger time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:       15 * time.Second,
		EventBuffer:       256,
		MaxInboundStreams: 64,
		CloseLinger:       2 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建 Swarm 配置
func ConfigFromUnified(cfg *config.Config) *Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return &Config{
		DialTimeout:       cfg.Transport.DialTimeout.Duration(),
		EventBuffer:       cfg.Swarm.EventBuffer,
		MaxInboundStreams: cfg.Swarm.MaxInboundStreams,
		CloseLinger:       cfg.Swarm.CloseLinger.Duration(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.EventBuffer < 0 {
		return ErrInvalidConfig
	}
	if c.MaxInboundStreams <= 0 {
		return ErrInvalidConfig
	}
	if c.CloseLinger <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Option Swarm 选项函数
type Option func(*Swarm) error

// WithConfig 设置配置
func WithConfig(cfg *Config) Option {
	return func(s *Swarm) error {
		if cfg == nil {
			return ErrInvalidConfig
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		s.config = cfg
		return nil
	}
}

// WithMetrics 设置指标上报
func WithMetrics(m Metrics) Option {
	return func(s *Swarm) error {
		if m != nil {
			s.metrics = m
		}
		return nil
	}
}
