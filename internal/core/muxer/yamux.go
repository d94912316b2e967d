package muxer

import (
	"io"
	"net"

	"github.com/libp2p/go-yamux/v5"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// YamuxID yamux 协议标识
const YamuxID = "/yamux/1.0.0"

// 确保实现接口
var _ pkgif.Multiplexer = (*Yamux)(nil)

// Yamux yamux 多路复用器
type Yamux struct {
	config *yamux.Config
}

// NewYamux 创建 yamux 多路复用器
func NewYamux(cfg Config) *Yamux {
	c := yamux.DefaultConfig()

	// 16MiB 窗口：100ms 延迟下可达 160MB/s 吞吐量
	if cfg.MaxStreamWindowSize > 0 {
		c.MaxStreamWindowSize = cfg.MaxStreamWindowSize
	}
	if cfg.MaxIncomingStreams > 0 {
		c.MaxIncomingStreams = cfg.MaxIncomingStreams
	}
	if cfg.KeepAliveInterval > 0 {
		c.KeepAliveInterval = cfg.KeepAliveInterval
	}

	// 禁用日志输出
	c.LogOutput = io.Discard

	// 禁用读缓冲（底层连接已有缓冲）
	c.ReadBufSize = 0

	return &Yamux{config: c}
}

// ID 返回多路复用协议标识
func (y *Yamux) ID() string {
	return YamuxID
}

// NewConn 在网络连接上创建多路复用连接
func (y *Yamux) NewConn(conn net.Conn, isServer bool) (pkgif.MuxedConn, error) {
	var (
		sess *yamux.Session
		err  error
	)
	if isServer {
		sess, err = yamux.Server(conn, y.config, nil)
	} else {
		sess, err = yamux.Client(conn, y.config, nil)
	}
	if err != nil {
		return nil, err
	}
	return &muxedConn{session: sess}, nil
}

// Config 返回 yamux 配置（供测试使用）
func (y *Yamux) Config() *yamux.Config {
	return y.config
}
