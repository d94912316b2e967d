// Package websocket 提供 WebSocket-over-TCP 传输
//
// 地址形如 /ip4/<host>/tcp/<port>/ws。WebSocket 二进制消息流被适配为
// 字节流连接，之后与 TCP 一样交由 Muxer 处理。
package websocket

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/dep2p/go-floodnet/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/transport/websocket")

// wsSuffix /ws 地址后缀
var wsSuffix = types.MustParseAddress("/ws")

// Config WebSocket 传输配置
type Config struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	Path             string

	// DialOnly 仅拨号（浏览器环境），Listen 返回 ErrUnsupported
	DialOnly bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ReadBufferSize:   32 * 1024,
		WriteBufferSize:  32 * 1024,
		HandshakeTimeout: 10 * time.Second,
		Path:             "/",
	}
}

// 确保实现接口
var _ pkgif.Transport = (*Transport)(nil)

// Transport WebSocket 传输，底层复用 TCP 传输的拨号与监听
type Transport struct {
	config Config
	tcp    *tcp.Transport
	dialer *ws.Dialer

	listenersMu sync.Mutex
	listeners   map[*Listener]struct{}

	closed atomic.Bool
}

// New 创建 WebSocket 传输
func New(cfg Config, inner *tcp.Transport) *Transport {
	t := &Transport{
		config:    cfg,
		tcp:       inner,
		listeners: make(map[*Listener]struct{}),
	}
	t.dialer = &ws.Dialer{
		ReadBufferSize:   cfg.ReadBufferSize,
		WriteBufferSize:  cfg.WriteBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return t
}

// CanDial 地址是否为 <host>/tcp/<port>/ws
func (t *Transport) CanDial(addr types.Address) bool {
	if addr.Last() != types.ProtoWS || len(addr.Segments()) != 3 {
		return false
	}
	return tcp.IsTCPAddr(addr.Decapsulate(wsSuffix))
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, raddr types.Address) (pkgif.Conn, error) {
	if t.closed.Load() {
		return nil, tcp.ErrTransportClosed
	}
	if !t.CanDial(raddr) {
		return nil, fmt.Errorf("websocket: %w: %s", types.ErrUnsupported, raddr)
	}

	base := raddr.Decapsulate(wsSuffix)
	_, host, err := base.DialArgs()
	if err != nil {
		return nil, fmt.Errorf("websocket: %w: %s", types.ErrUnsupported, raddr)
	}

	d := *t.dialer
	d.NetDialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return t.tcp.DialRaw(ctx, base)
	}

	u := url.URL{Scheme: "ws", Host: host, Path: t.config.Path}
	logger.Debug("WebSocket 拨号", "addr", raddr.String(), "url", u.String())

	c, resp, err := d.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, tcp.ClassifyDialError(raddr, err)
	}

	conn, err := wrapConn(newNetConn(c))
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return conn, nil
}

// Listen 监听入站 WebSocket 连接
func (t *Transport) Listen(laddr types.Address) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, tcp.ErrTransportClosed
	}
	if t.config.DialOnly || !t.CanDial(laddr) {
		return nil, fmt.Errorf("websocket: %w: listen %s", types.ErrUnsupported, laddr)
	}

	nl, actual, err := t.tcp.ListenRaw(laddr.Decapsulate(wsSuffix))
	if err != nil {
		return nil, err
	}

	l := newListener(nl, actual.Encapsulate(wsSuffix), t.config)
	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	logger.Info("WebSocket 监听成功", "addr", l.Multiaddr().String())
	return l, nil
}

// Protocols 返回支持的承载名称
func (t *Transport) Protocols() []string {
	return []string{"websocket"}
}

// Multiplexed WebSocket 不提供原生多路复用
func (t *Transport) Multiplexed() bool {
	return false
}

// Close 关闭传输及其所有监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()

	var lastErr error
	for l := range t.listeners {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	t.listeners = make(map[*Listener]struct{})
	return lastErr
}

func wrapConn(nc *netConn) (*tcp.Conn, error) {
	local, err := types.AddressFromNetAddr(nc.LocalAddr())
	if err != nil {
		return nil, err
	}
	remote, err := types.AddressFromNetAddr(nc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return tcp.NewConn(nc, "websocket", local.Encapsulate(wsSuffix), remote.Encapsulate(wsSuffix)), nil
}
