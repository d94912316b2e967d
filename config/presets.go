package config

import (
	"fmt"
	"time"
)

// 预设名称
const (
	PresetNative  = "native"
	PresetBrowser = "browser"
	PresetTest    = "test"
)

// ApplyPreset 应用预设到现有配置
func ApplyPreset(c *Config, name string) error {
	switch name {
	case PresetNative:
		c.Transport.Preset = CarrierPresetNative
		c.Transport.Carriers = CarriersForPreset(CarrierPresetNative)
		c.Transport.DialOnly = false
	case PresetBrowser:
		c.Transport.Preset = CarrierPresetBrowser
		c.Transport.Carriers = CarriersForPreset(CarrierPresetBrowser)
		c.Transport.DialOnly = true
		c.Swarm.ListenAddrs = nil
	case PresetTest:
		c.Transport.Preset = ""
		c.Transport.Carriers = []string{CarrierTCP}
		c.Swarm.ListenAddrs = []string{"/ip4/127.0.0.1/tcp/0"}
		c.Upgrader.NegotiateTimeout = Duration(5 * time.Second)
		c.PubSub.HeartbeatInterval = Duration(time.Second)
		c.Swarm.CloseLinger = Duration(time.Second)
		c.Metrics.Enable = false
	default:
		return fmt.Errorf("unknown preset %q", name)
	}
	return nil
}

// NewTestConfig 返回测试用配置：仅 TCP 回环、关闭指标
func NewTestConfig() *Config {
	c := NewConfig()
	_ = ApplyPreset(c, PresetTest)
	return c
}
