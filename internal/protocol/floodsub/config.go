package floodsub

import (
	"errors"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-floodnet/config"
)

// Config 发布订阅配置
type Config struct {
	// FilteredFlood 仅向声明了主题兴趣的对端转发
	FilteredFlood bool

	// SeenTTL 已见消息存活时间
	SeenTTL time.Duration

	// SeenMaxEntries 已见消息上限
	SeenMaxEntries int

	// PeerQueueSize 对端发送队列长度
	PeerQueueSize int

	// SubscriptionBuffer 本地订阅缓冲
	SubscriptionBuffer int

	// MaxMessageSize 单帧上限
	MaxMessageSize int

	// HeartbeatInterval 心跳间隔
	HeartbeatInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return ConfigFromUnified(nil)
}

// ConfigFromUnified 从统一配置创建
func ConfigFromUnified(cfg *config.Config) Config {
	pc := config.DefaultPubSubConfig()
	if cfg != nil {
		pc = cfg.PubSub
	}
	return Config{
		FilteredFlood:      pc.FilteredFlood,
		SeenTTL:            pc.SeenTTL.Duration(),
		SeenMaxEntries:     pc.SeenMaxEntries,
		PeerQueueSize:      pc.PeerQueueSize,
		SubscriptionBuffer: pc.SubscriptionBuffer,
		MaxMessageSize:     pc.MaxMessageSize,
		HeartbeatInterval:  pc.HeartbeatInterval.Duration(),
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.SeenTTL <= 0 || c.SeenMaxEntries <= 0 {
		return errors.New("seen cache bounds must be positive")
	}
	if c.PeerQueueSize <= 0 || c.SubscriptionBuffer <= 0 {
		return errors.New("queue sizes must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	return nil
}

// Option 选项
type Option func(*PubSub) error

// WithConfig 设置配置
func WithConfig(cfg Config) Option {
	return func(p *PubSub) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.cfg = cfg
		return nil
	}
}

// WithClock 注入时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(p *PubSub) error {
		p.clock = c
		return nil
	}
}
