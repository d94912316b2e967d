package floodnet

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/protocol/identify"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// Option 节点配置选项
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	// 回调
	onIdentify func(types.ConnInfo, identify.Info)
	onGreeting func(types.ConnInfo, []byte)

	// 用户扩展
	fxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置（覆盖之前的配置类选项）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithPreset 应用预设
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithListenAddrs 设置监听地址；不带参数时不监听
func WithListenAddrs(addrs ...string) Option {
	return func(o *options) error {
		for _, a := range addrs {
			if _, err := types.ParseAddress(a); err != nil {
				return err
			}
		}
		o.config.Swarm.ListenAddrs = append([]string(nil), addrs...)
		return nil
	}
}

// WithPeers 设置启动时拨号的对端
func WithPeers(addrs ...string) Option {
	return func(o *options) error {
		for _, a := range addrs {
			if _, err := types.ParseAddress(a); err != nil {
				return err
			}
		}
		o.config.Swarm.Peers = append(o.config.Swarm.Peers, addrs...)
		return nil
	}
}

// WithIdentityFile 设置身份密钥文件
func WithIdentityFile(path string) Option {
	return func(o *options) error {
		o.config.Identity.KeyFile = path
		return nil
	}
}

// WithProtocols 设置注册的应用协议及偏好顺序
func WithProtocols(names ...string) Option {
	return func(o *options) error {
		o.config.Upgrader.Protocols = append([]string(nil), names...)
		return nil
	}
}

// WithMetrics 启用指标，addr 非空时暴露 HTTP 端点
func WithMetrics(addr string) Option {
	return func(o *options) error {
		o.config.Metrics.Enable = true
		o.config.Metrics.ListenAddr = addr
		return nil
	}
}

// OnIdentify 设置 identify 完成回调
func OnIdentify(f func(types.ConnInfo, identify.Info)) Option {
	return func(o *options) error {
		o.onIdentify = f
		return nil
	}
}

// OnGreeting 设置收到 hello 问候语的回调
func OnGreeting(f func(types.ConnInfo, []byte)) Option {
	return func(o *options) error {
		o.onGreeting = f
		return nil
	}
}

// WithFxOption 追加 Fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
