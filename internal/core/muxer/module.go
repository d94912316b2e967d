package muxer

import (
	"fmt"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// Config 多路复用器配置
type Config struct {
	MaxStreamWindowSize uint32        // 最大流窗口大小
	MaxIncomingStreams  uint32        // 最大入站流数量
	KeepAliveInterval   time.Duration // 心跳间隔
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxStreamWindowSize: 16 * 1024 * 1024, // 16MB
		MaxIncomingStreams:  1024,
		KeepAliveInterval:   30 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建 Muxer 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Muxer.MaxStreamWindowSize > 0 {
		c.MaxStreamWindowSize = cfg.Muxer.MaxStreamWindowSize
	}
	if cfg.Muxer.MaxIncomingStreams > 0 {
		c.MaxIncomingStreams = cfg.Muxer.MaxIncomingStreams
	}
	return c
}

// New 按名称创建多路复用器
func New(name string, cfg Config) (pkgif.Multiplexer, error) {
	switch name {
	case config.MuxerYamux:
		return NewYamux(cfg), nil
	case config.MuxerDummy:
		return NewDummy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMuxer, name)
	}
}

// FromConfig 按配置顺序创建多路复用器列表
func FromConfig(cfg *config.Config) ([]pkgif.Multiplexer, error) {
	mc := ConfigFromUnified(cfg)
	out := make([]pkgif.Multiplexer, 0, len(cfg.Muxer.Muxers))
	for _, name := range cfg.Muxer.Muxers {
		m, err := New(name, mc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Module 是 muxer 的 Fx 模块
func Module() fx.Option {
	return fx.Module("muxer",
		fx.Provide(FromConfig),
	)
}
