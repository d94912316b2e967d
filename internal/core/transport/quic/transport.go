// Package quic 实现 QUIC 传输
//
// 地址形如 /ip4/<host>/udp/<port>/quic-v1。QUIC 原生多路复用：
// 返回的连接同时实现 MuxedConn，Swarm 跳过 Muxer 协商。
package quic

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/dep2p/go-floodnet/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/transport/quic")

// Config QUIC 传输配置
type Config struct {
	DialTimeout        time.Duration
	MaxIdleTimeout     time.Duration
	KeepAlivePeriod    time.Duration
	MaxIncomingStreams int64

	// PrivateKey 证书密钥，为空时生成临时密钥
	PrivateKey ed25519.PrivateKey
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DialTimeout:        10 * time.Second,
		MaxIdleTimeout:     30 * time.Second,
		KeepAlivePeriod:    10 * time.Second,
		MaxIncomingStreams: 256,
	}
}

// 确保实现接口
var _ pkgif.Transport = (*Transport)(nil)

// Transport QUIC 传输
type Transport struct {
	config  Config
	tlsConf *tls.Config
	qconf   *quic.Config

	listenersMu sync.Mutex
	listeners   map[*Listener]struct{}

	closed atomic.Bool
}

// New 创建 QUIC 传输
func New(cfg Config) (*Transport, error) {
	tlsConf, err := newTLSConfig(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return &Transport{
		config:  cfg,
		tlsConf: tlsConf,
		qconf: &quic.Config{
			MaxIdleTimeout:     cfg.MaxIdleTimeout,
			KeepAlivePeriod:    cfg.KeepAlivePeriod,
			MaxIncomingStreams: cfg.MaxIncomingStreams,
		},
		listeners: make(map[*Listener]struct{}),
	}, nil
}

// CanDial 地址是否为 <ip>/udp/<port>/quic-v1
func (t *Transport) CanDial(addr types.Address) bool {
	segs := addr.Segments()
	if len(segs) != 3 {
		return false
	}
	switch segs[0].Code {
	case types.ProtoIP4, types.ProtoIP6, types.ProtoDNS4, types.ProtoDNS6:
	default:
		return false
	}
	return segs[1].Code == types.ProtoUDP && segs[2].Code == types.ProtoQUICV1
}

// Dial 建立出站连接
func (t *Transport) Dial(ctx context.Context, raddr types.Address) (pkgif.Conn, error) {
	if t.closed.Load() {
		return nil, tcp.ErrTransportClosed
	}
	if !t.CanDial(raddr) {
		return nil, fmt.Errorf("quic: %w: %s", types.ErrUnsupported, raddr)
	}

	host, err := hostPort(raddr)
	if err != nil {
		return nil, err
	}

	if t.config.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.config.DialTimeout)
		defer cancel()
	}

	logger.Debug("QUIC 拨号", "addr", raddr.String())
	qc, err := quic.DialAddr(ctx, host, t.tlsConf, t.qconf)
	if err != nil {
		return nil, tcp.ClassifyDialError(raddr, err)
	}

	c, err := newConn(qc)
	if err != nil {
		_ = qc.CloseWithError(0, "")
		return nil, err
	}
	return c, nil
}

// Listen 监听入站连接
func (t *Transport) Listen(laddr types.Address) (pkgif.Listener, error) {
	if t.closed.Load() {
		return nil, tcp.ErrTransportClosed
	}
	if !t.CanDial(laddr) {
		return nil, fmt.Errorf("quic: %w: %s", types.ErrUnsupported, laddr)
	}

	host, err := hostPort(laddr)
	if err != nil {
		return nil, err
	}

	ql, err := quic.ListenAddr(host, t.tlsConf, t.qconf)
	if err != nil {
		return nil, tcp.BindError(laddr, err)
	}

	actual, err := types.WithResolvedPort(laddr, ql.Addr().(*net.UDPAddr).Port)
	if err != nil {
		_ = ql.Close()
		return nil, tcp.BindError(laddr, err)
	}

	l := &Listener{ql: ql, addr: actual, transport: t}
	t.listenersMu.Lock()
	t.listeners[l] = struct{}{}
	t.listenersMu.Unlock()

	logger.Info("QUIC 监听成功", "addr", actual.String())
	return l, nil
}

// Protocols 返回支持的承载名称
func (t *Transport) Protocols() []string {
	return []string{"quic"}
}

// Multiplexed QUIC 原生多路复用
func (t *Transport) Multiplexed() bool {
	return true
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

var quicSuffix = types.MustParseAddress("/quic-v1")

// hostPort 返回 udp 部分的 host:port
func hostPort(addr types.Address) (string, error) {
	_, host, err := addr.Decapsulate(quicSuffix).DialArgs()
	if err != nil {
		return "", fmt.Errorf("quic: %w: %s", types.ErrUnsupported, addr)
	}
	return host, nil
}

// fromUDPAddr 把 UDP 地址转为 .../udp/<port>/quic-v1
func fromUDPAddr(a net.Addr) (types.Address, error) {
	base, err := types.AddressFromNetAddr(a)
	if err != nil {
		return types.Address{}, err
	}
	return base.Encapsulate(quicSuffix), nil
}
