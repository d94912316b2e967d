package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现接口
var _ pkgif.Listener = (*Listener)(nil)

// Listener TCP 监听器
type Listener struct {
	listener  net.Listener
	addr      types.Address
	transport *Transport
	closed    atomic.Bool
}

// Accept 接受连接
//
// 临时性错误（如 EMFILE）退避后重试；监听器关闭后返回包装 net.ErrClosed 的错误。
func (l *Listener) Accept() (pkgif.Conn, error) {
	var backoff time.Duration
	for {
		c, err := l.listener.Accept()
		if err != nil {
			if l.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil, fmt.Errorf("accept %s: %w", l.addr, net.ErrClosed)
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				logger.Warn("接受连接临时失败，稍后重试", "addr", l.addr.String(), "error", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			return nil, err
		}
		backoff = 0

		l.transport.tune(c)
		conn, err := newConnFromNet(c)
		if err != nil {
			logger.Warn("无法解析入站连接地址", "error", err)
			_ = c.Close()
			continue
		}
		logger.Debug("接受入站连接", "local", l.addr.String(), "remote", conn.RemoteMultiaddr().String())
		return conn, nil
	}
}

// Multiaddr 返回实际监听地址
func (l *Listener) Multiaddr() types.Address {
	return l.addr
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.transport.removeListener(l)
	return l.listener.Close()
}

// Addr 返回底层网络地址
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
