package config

import (
	"errors"
	"fmt"
	"time"
)

// 承载名称
const (
	CarrierTCP       = "tcp"
	CarrierWebSocket = "websocket"
	CarrierQUIC      = "quic"
)

// 承载预设
const (
	// CarrierPresetNative 原生环境：WebSocket-over-TCP 优先，其次 TCP，再次 QUIC
	CarrierPresetNative = "native"
	// CarrierPresetBrowser 浏览器环境：仅 WebSocket 拨号
	CarrierPresetBrowser = "browser"
)

// TransportConfig 传输层配置
//
// 承载集合在启动时由配置决定，Carriers 的顺序即组合传输的尝试顺序。
type TransportConfig struct {
	// Preset 承载预设（native / browser），非空时覆盖 Carriers
	Preset string `json:"preset,omitempty"`

	// Carriers 启用的承载，按优先级排列
	Carriers []string `json:"carriers"`

	// DialOnly 仅拨号，不监听（浏览器环境）
	DialOnly bool `json:"dial_only,omitempty"`

	// DialTimeout 拨号超时
	DialTimeout Duration `json:"dial_timeout"`

	// TCP 配置
	TCP TCPConfig `json:"tcp,omitempty"`

	// WebSocket 配置
	WebSocket WebSocketConfig `json:"websocket,omitempty"`

	// QUIC 配置
	QUIC QUICConfig `json:"quic,omitempty"`
}

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// KeepAlivePeriod KeepAlive 周期，0 使用系统默认
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool `json:"no_delay"`
}

// WebSocketConfig WebSocket 传输配置
type WebSocketConfig struct {
	// ReadBufferSize 读缓冲区大小
	ReadBufferSize int `json:"read_buffer_size,omitempty"`

	// WriteBufferSize 写缓冲区大小
	WriteBufferSize int `json:"write_buffer_size,omitempty"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// Path HTTP 升级路径
	Path string `json:"path,omitempty"`
}

// QUICConfig QUIC 传输配置
type QUICConfig struct {
	// MaxIdleTimeout 最大空闲超时
	MaxIdleTimeout Duration `json:"max_idle_timeout"`

	// KeepAlivePeriod KeepAlive 周期
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// MaxIncomingStreams 最大入站流数量
	MaxIncomingStreams int64 `json:"max_incoming_streams"`
}

// DefaultTransportConfig 返回默认传输配置
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Preset:      CarrierPresetNative,
		Carriers:    CarriersForPreset(CarrierPresetNative),
		DialTimeout: Duration(10 * time.Second),
		TCP: TCPConfig{
			KeepAlivePeriod: Duration(30 * time.Second),
			NoDelay:         true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   32 * 1024,
			WriteBufferSize:  32 * 1024,
			HandshakeTimeout: Duration(10 * time.Second),
			Path:             "/",
		},
		QUIC: QUICConfig{
			MaxIdleTimeout:     Duration(30 * time.Second),
			KeepAlivePeriod:    Duration(10 * time.Second),
			MaxIncomingStreams: 256,
		},
	}
}

// CarriersForPreset 返回预设对应的承载列表
func CarriersForPreset(preset string) []string {
	switch preset {
	case CarrierPresetNative:
		return []string{CarrierWebSocket, CarrierTCP, CarrierQUIC}
	case CarrierPresetBrowser:
		return []string{CarrierWebSocket}
	default:
		return nil
	}
}

// ResolvedCarriers 返回最终生效的承载列表
func (c TransportConfig) ResolvedCarriers() []string {
	if c.Preset != "" {
		return CarriersForPreset(c.Preset)
	}
	return c.Carriers
}

// IsDialOnly 是否仅拨号
func (c TransportConfig) IsDialOnly() bool {
	return c.DialOnly || c.Preset == CarrierPresetBrowser
}

// Validate 验证传输配置
func (c TransportConfig) Validate() error {
	if c.Preset != "" && CarriersForPreset(c.Preset) == nil {
		return fmt.Errorf("unknown transport preset %q", c.Preset)
	}

	carriers := c.ResolvedCarriers()
	if len(carriers) == 0 {
		return errors.New("at least one carrier must be enabled")
	}

	seen := make(map[string]bool)
	for _, name := range carriers {
		switch name {
		case CarrierTCP, CarrierWebSocket, CarrierQUIC:
		default:
			return fmt.Errorf("unknown carrier %q", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate carrier %q", name)
		}
		seen[name] = true
	}

	if c.DialTimeout < 0 {
		return errors.New("dial timeout must be non-negative")
	}
	if c.WebSocket.ReadBufferSize < 0 || c.WebSocket.WriteBufferSize < 0 {
		return errors.New("websocket buffer sizes must be non-negative")
	}
	if c.QUIC.MaxIncomingStreams < 0 {
		return errors.New("quic max incoming streams must be non-negative")
	}
	return nil
}
