// Package tcp 提供基于 TCP 的传输层实现
//
// 地址形如 /ip4/<host>/tcp/<port>（亦支持 ip6 / dns4 / dns6）。
// TCP 不提供原生多路复用，需要配合 Muxer 使用。
package tcp

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// Config TCP 传输配置
type Config struct {
	// DialTimeout 拨号超时，0 表示仅受 ctx 约束
	DialTimeout time.Duration

	// KeepAlivePeriod KeepAlive 周期
	KeepAlivePeriod time.Duration

	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		KeepAlivePeriod: 30 * time.Second,
		NoDelay:         true,
	}
}

// 确保实现 Transport 接口
var _ pkgif.Transport = (*Transport)(nil)

// Transport TCP 传输
type Transport struct {
	config Config

	listenersMu sync.Mutex
	listeners   map[*Listener]struct{}

	closed atomic.Bool
}

// New 创建 TCP 传输
func New(cfg Config) *Transport {
	return &Transport{
		config:    cfg,
		listeners: make(map[*Listener]struct{}),
	}
}

// CanDial 检查是否为纯 TCP 地址：<host>/tcp/<port>，无后续段
func (t *Transport) CanDial(addr types.Address) bool {
	return IsTCPAddr(addr)
}

// IsTCPAddr 地址是否恰好为 host + tcp 两段
func IsTCPAddr(addr types.Address) bool {
	segs := addr.Segments()
	if len(segs) != 2 {
		return false
	}
	return isHostCode(segs[0].Code) && segs[1].Code == types.ProtoTCP
}

func isHostCode(code int) bool {
	switch code {
	case types.ProtoIP4, types.ProtoIP6, types.ProtoDNS4, types.ProtoDNS6:
		return true
	}
	return false
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, raddr types.Address) (pkgif.Conn, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(raddr) {
		return nil, unsupported(raddr)
	}

	c, err := t.DialRaw(ctx, raddr)
	if err != nil {
		return nil, err
	}
	conn, err := newConnFromNet(c)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return conn, nil
}

// DialRaw 拨号并返回原始 net.Conn（供 websocket 复用）
func (t *Transport) DialRaw(ctx context.Context, raddr types.Address) (net.Conn, error) {
	network, host, err := raddr.DialArgs()
	if err != nil {
		return nil, unsupported(raddr)
	}

	if t.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.DialTimeout)
		defer cancel()
	}

	logger.Debug("TCP 拨号", "addr", raddr.String())
	d := &net.Dialer{KeepAlive: t.config.KeepAlivePeriod}
	c, err := d.DialContext(ctx, network, host)
	if err != nil {
		return nil, ClassifyDialError(raddr, err)
	}
	t.tune(c)
	return c, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(laddr types.Address) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, ErrTransportClosed
	}
	if !t.CanDial(laddr) {
		return nil, unsupported(laddr)
	}

	l, actual, err := t.ListenRaw(laddr)
	if err != nil {
		return nil, err
	}

	listener := &Listener{listener: l, addr: actual, transport: t}
	t.listenersMu.Lock()
	t.listeners[listener] = struct{}{}
	t.listenersMu.Unlock()

	logger.Info("TCP 监听成功", "addr", actual.String())
	return listener, nil
}

// ListenRaw 监听并返回原始 net.Listener 及实际 host/tcp 地址（供 websocket 复用）
func (t *Transport) ListenRaw(laddr types.Address) (net.Listener, types.Address, error) {
	network, host, err := laddr.DialArgs()
	if err != nil {
		return nil, types.Address{}, unsupported(laddr)
	}

	lc := net.ListenConfig{KeepAlive: t.config.KeepAlivePeriod}
	l, err := lc.Listen(context.Background(), network, host)
	if err != nil {
		return nil, types.Address{}, BindError(laddr, err)
	}

	// 端口为 0 时替换为系统分配的实际端口，其余部分保持调用方写法
	actual, err := types.WithResolvedPort(laddr, l.Addr().(*net.TCPAddr).Port)
	if err != nil {
		_ = l.Close()
		return nil, types.Address{}, BindError(laddr, err)
	}
	return l, actual, nil
}

// Protocols 返回支持的承载名称
func (t *Transport) Protocols() []string {
	return []string{"tcp"}
}

// Multiplexed TCP 不提供原生多路复用
func (t *Transport) Multiplexed() bool {
	return false
}

// Close 关闭传输及其所有监听器
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.listenersMu.Lock()
	ls := make([]*Listener, 0, len(t.listeners))
	for l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenersMu.Unlock()

	var lastErr error
	for _, l := range ls {
		if err := l.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (t *Transport) removeListener(l *Listener) {
	t.listenersMu.Lock()
	delete(t.listeners, l)
	t.listenersMu.Unlock()
}

func (t *Transport) tune(c net.Conn) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tc.SetNoDelay(t.config.NoDelay)
	if t.config.KeepAlivePeriod > 0 {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(t.config.KeepAlivePeriod)
	}
}

func unsupported(addr types.Address) error {
	return &UnsupportedError{Addr: addr}
}

// UnsupportedError 地址不被本传输支持
type UnsupportedError struct {
	Addr types.Address
}

func (e *UnsupportedError) Error() string {
	return "tcp: unsupported address " + e.Addr.String()
}

// Unwrap 返回 ErrUnsupported
func (e *UnsupportedError) Unwrap() error {
	return types.ErrUnsupported
}
