package tcp

import (
	"net"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现了接口
var _ pkgif.StreamConn = (*Conn)(nil)

// Conn 字节流连接
//
// 也被 websocket 传输复用，transport 字段区分承载。
type Conn struct {
	net.Conn

	transport string
	local     types.Address
	remote    types.Address
}

// NewConn 包装 net.Conn
func NewConn(c net.Conn, transport string, local, remote types.Address) *Conn {
	return &Conn{
		Conn:      c,
		transport: transport,
		local:     local,
		remote:    remote,
	}
}

// newConnFromNet 从 net.Conn 的网络地址推导多段地址
func newConnFromNet(c net.Conn) (*Conn, error) {
	local, err := types.AddressFromNetAddr(c.LocalAddr())
	if err != nil {
		return nil, err
	}
	remote, err := types.AddressFromNetAddr(c.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return NewConn(c, "tcp", local, remote), nil
}

// LocalMultiaddr 返回本地地址
func (c *Conn) LocalMultiaddr() types.Address {
	return c.local
}

// RemoteMultiaddr 返回远端地址
func (c *Conn) RemoteMultiaddr() types.Address {
	return c.remote
}

// Transport 返回承载名称
func (c *Conn) Transport() string {
	return c.transport
}

// CloseWrite 关闭写端；底层不支持半关闭时整体关闭
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
