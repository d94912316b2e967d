// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 加载和保存，支持预设（native / browser / test）。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.PubSub.FilteredFlood = true
//
//	// 从文件加载
//	cfg, err := config.LoadFile("floodnet.json")
//
//	// 应用预设
//	err := config.ApplyPreset(cfg, "browser")
package config

// Config floodnet 的完整配置结构
//
// 配置按照功能模块组织：
//   - Identity: 身份和密钥
//   - Transport: 承载选择与参数（TCP/WebSocket/QUIC）
//   - Muxer: 多路复用器
//   - Upgrader: 协议协商
//   - Swarm: 连接群
//   - PubSub: flood 发布订阅
//   - Metrics: Prometheus 指标
//   - Log: 日志
type Config struct {
	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Transport 传输层配置
	Transport TransportConfig `json:"transport"`

	// Muxer 多路复用配置
	Muxer MuxerConfig `json:"muxer"`

	// Upgrader 协议协商配置
	Upgrader UpgraderConfig `json:"upgrader"`

	// Swarm 连接群配置
	Swarm SwarmConfig `json:"swarm"`

	// PubSub 发布订阅配置
	PubSub PubSubConfig `json:"pubsub"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Transport: DefaultTransportConfig(),
		Muxer:     DefaultMuxerConfig(),
		Upgrader:  DefaultUpgraderConfig(),
		Swarm:     DefaultSwarmConfig(),
		PubSub:    DefaultPubSubConfig(),
		Metrics:   DefaultMetricsConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Transport.Validate(); err != nil {
		return err
	}
	if err := c.Muxer.Validate(); err != nil {
		return err
	}
	if err := c.Upgrader.Validate(); err != nil {
		return err
	}
	if err := c.Swarm.Validate(); err != nil {
		return err
	}
	if err := c.PubSub.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// Clone 深拷贝配置
func (c *Config) Clone() *Config {
	out := *c
	out.Transport.Carriers = append([]string(nil), c.Transport.Carriers...)
	out.Swarm.ListenAddrs = append([]string(nil), c.Swarm.ListenAddrs...)
	out.Swarm.Peers = append([]string(nil), c.Swarm.Peers...)
	out.Muxer.Muxers = append([]string(nil), c.Muxer.Muxers...)
	out.Upgrader.Protocols = append([]string(nil), c.Upgrader.Protocols...)
	return &out
}
