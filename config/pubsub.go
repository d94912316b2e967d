package config

import (
	"errors"
	"time"
)

// PubSubConfig flood 发布订阅配置
type PubSubConfig struct {
	// FilteredFlood 仅向声明了主题兴趣的对端转发
	// false 时向所有对端泛洪
	FilteredFlood bool `json:"filtered_flood"`

	// SeenTTL 已见消息缓存的存活时间
	SeenTTL Duration `json:"seen_ttl"`

	// SeenMaxEntries 已见消息缓存的最大条目数
	SeenMaxEntries int `json:"seen_max_entries"`

	// PeerQueueSize 每个对端的发送队列长度，满时断开该对端
	PeerQueueSize int `json:"peer_queue_size"`

	// SubscriptionBuffer 每个本地订阅的消息缓冲
	SubscriptionBuffer int `json:"subscription_buffer"`

	// MaxMessageSize 单帧最大字节数
	MaxMessageSize int `json:"max_message_size"`

	// HeartbeatInterval 心跳间隔（统计日志）
	HeartbeatInterval Duration `json:"heartbeat_interval"`
}

// DefaultPubSubConfig 返回默认发布订阅配置
func DefaultPubSubConfig() PubSubConfig {
	return PubSubConfig{
		FilteredFlood:      false,
		SeenTTL:            Duration(120 * time.Second),
		SeenMaxEntries:     16384,
		PeerQueueSize:      64,
		SubscriptionBuffer: 32,
		MaxMessageSize:     1 << 20,
		HeartbeatInterval:  Duration(30 * time.Second),
	}
}

// Validate 验证发布订阅配置
func (c PubSubConfig) Validate() error {
	if c.SeenTTL <= 0 {
		return errors.New("seen ttl must be positive")
	}
	if c.SeenMaxEntries <= 0 {
		return errors.New("seen max entries must be positive")
	}
	if c.PeerQueueSize <= 0 {
		return errors.New("peer queue size must be positive")
	}
	if c.SubscriptionBuffer <= 0 {
		return errors.New("subscription buffer must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("max message size must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat interval must be positive")
	}
	return nil
}
