package interfaces

import (
	"context"
	"io"
	"net"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// Transport 定义传输层接口
//
// Transport 抽象不同的承载（TCP、WebSocket、QUIC）。
type Transport interface {
	// Dial 拨号连接到指定地址，每次调用只解析一次，不做内部重试
	Dial(ctx context.Context, raddr types.Address) (Conn, error)

	// CanDial 检查是否支持拨号到指定地址
	CanDial(addr types.Address) bool

	// Listen 在指定地址监听
	Listen(laddr types.Address) (Listener, error)

	// Protocols 返回支持的承载名称
	Protocols() []string

	// Multiplexed 承载是否原生多路复用（如 QUIC）
	Multiplexed() bool

	// Close 关闭传输
	Close() error
}

// Listener 定义监听器接口
type Listener interface {
	// Accept 接受新连接；监听器关闭或致命错误后返回错误
	Accept() (Conn, error)

	// Multiaddr 返回实际监听地址（端口已解析）
	Multiaddr() types.Address

	// Close 关闭监听器
	Close() error
}

// Conn 定义传输连接接口
//
// 字节流承载的连接同时实现 net.Conn（见 StreamConn）；
// 原生多路复用承载的连接同时实现 MuxedConn。
type Conn interface {
	io.Closer

	// LocalMultiaddr 返回本地地址
	LocalMultiaddr() types.Address

	// RemoteMultiaddr 返回远端地址
	RemoteMultiaddr() types.Address

	// Transport 返回承载名称
	Transport() string
}

// StreamConn 字节流连接
type StreamConn interface {
	Conn
	net.Conn
}
