package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现接口
var _ pkgif.Listener = (*Listener)(nil)

// Listener QUIC 监听器
type Listener struct {
	ql        *quic.Listener
	addr      types.Address
	transport *Transport
	closed    atomic.Bool
}

// Accept 接受连接
func (l *Listener) Accept() (pkgif.Conn, error) {
	for {
		qc, err := l.ql.Accept(context.Background())
		if err != nil {
			if l.closed.Load() || errors.Is(err, quic.ErrServerClosed) {
				return nil, fmt.Errorf("accept %s: %w", l.addr, net.ErrClosed)
			}
			return nil, err
		}

		c, err := newConn(qc)
		if err != nil {
			logger.Warn("无法解析入站连接地址", "error", err)
			_ = qc.CloseWithError(0, "")
			continue
		}
		logger.Debug("接受入站连接", "local", l.addr.String(), "remote", c.RemoteMultiaddr().String())
		return c, nil
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
	return l.ql.Close()
}
