package config

import (
	"errors"
	"fmt"
)

// 多路复用器名称
const (
	MuxerYamux = "yamux"
	MuxerDummy = "dummy"
)

// MuxerConfig 多路复用配置
type MuxerConfig struct {
	// Muxers 启用的多路复用器，按偏好排列
	//
	// 仅配置 dummy 时不进行多路复用协商，整个连接即唯一的流。
	Muxers []string `json:"muxers"`

	// MaxStreamWindowSize yamux 单流最大窗口
	MaxStreamWindowSize uint32 `json:"max_stream_window_size,omitempty"`

	// MaxIncomingStreams yamux 最大入站流数量
	MaxIncomingStreams uint32 `json:"max_incoming_streams,omitempty"`
}

// DefaultMuxerConfig 返回默认多路复用配置
func DefaultMuxerConfig() MuxerConfig {
	return MuxerConfig{
		Muxers:              []string{MuxerYamux},
		MaxStreamWindowSize: 16 * 1024 * 1024,
		MaxIncomingStreams:  1024,
	}
}

// Validate 验证多路复用配置
func (c MuxerConfig) Validate() error {
	if len(c.Muxers) == 0 {
		return errors.New("at least one muxer must be enabled")
	}
	for _, m := range c.Muxers {
		switch m {
		case MuxerYamux, MuxerDummy:
		default:
			return fmt.Errorf("unknown muxer %q", m)
		}
	}
	return nil
}
