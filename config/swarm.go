package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// SwarmConfig 连接群配置
type SwarmConfig struct {
	// ListenAddrs 启动时监听的地址
	ListenAddrs []string `json:"listen_addrs"`

	// Peers 启动时拨号的对端地址
	Peers []string `json:"peers,omitempty"`

	// EventBuffer 事件通道缓冲大小，满时丢弃事件
	EventBuffer int `json:"event_buffer"`

	// MaxInboundStreams 每个连接并发处理的入站流上限
	MaxInboundStreams int `json:"max_inbound_streams"`

	// CloseLinger 连接上的流全部结束后，等待对端关闭的最长时间
	CloseLinger Duration `json:"close_linger"`
}

// DefaultSwarmConfig 返回默认连接群配置
func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		ListenAddrs:       []string{"/ip4/0.0.0.0/tcp/0"},
		EventBuffer:       256,
		MaxInboundStreams: 64,
		CloseLinger:       Duration(2 * time.Second),
	}
}

// Validate 验证连接群配置
func (c SwarmConfig) Validate() error {
	for _, s := range c.ListenAddrs {
		if _, err := types.ParseAddress(s); err != nil {
			return fmt.Errorf("listen addr: %w", err)
		}
	}
	for _, s := range c.Peers {
		if _, err := types.ParseAddress(s); err != nil {
			return fmt.Errorf("peer addr: %w", err)
		}
	}
	if c.EventBuffer < 0 {
		return errors.New("event buffer must be non-negative")
	}
	if c.MaxInboundStreams <= 0 {
		return errors.New("max inbound streams must be positive")
	}
	if c.CloseLinger <= 0 {
		return errors.New("close linger must be positive")
	}
	return nil
}
