package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现接口
var _ pkgif.Listener = (*MergedListener)(nil)

type acceptResult struct {
	conn pkgif.Conn
	err  error
}

// MergedListener 合并多个监听器的入站序列
//
// 各承载的连接交错到达，跨承载无顺序保证。
// 所有内部监听器结束后 Accept 返回包装 net.ErrClosed 的错误；
// 内部监听器的致命错误原样返回。
type MergedListener struct {
	listeners []pkgif.Listener
	incoming  chan acceptResult
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewMergedListener 合并监听器
func NewMergedListener(ls ...pkgif.Listener) *MergedListener {
	m := &MergedListener{
		listeners: ls,
		incoming:  make(chan acceptResult),
		done:      make(chan struct{}),
	}
	for _, l := range ls {
		m.wg.Add(1)
		go m.pump(l)
	}
	go func() {
		m.wg.Wait()
		close(m.incoming)
	}()
	return m
}

func (m *MergedListener) pump(l pkgif.Listener) {
	defer m.wg.Done()
	for {
		c, err := l.Accept()
		if err != nil && errors.Is(err, net.ErrClosed) {
			return
		}
		select {
		case m.incoming <- acceptResult{conn: c, err: err}:
		case <-m.done:
			if c != nil {
				_ = c.Close()
			}
			return
		}
		if err != nil {
			return
		}
	}
}

// Accept 接受任一承载的连接
func (m *MergedListener) Accept() (pkgif.Conn, error) {
	select {
	case r, ok := <-m.incoming:
		if !ok {
			return nil, fmt.Errorf("merged listener: %w", net.ErrClosed)
		}
		return r.conn, r.err
	case <-m.done:
		return nil, fmt.Errorf("merged listener: %w", net.ErrClosed)
	}
}

// Multiaddr 返回第一个监听地址
func (m *MergedListener) Multiaddr() types.Address {
	if len(m.listeners) == 0 {
		return types.Address{}
	}
	return m.listeners[0].Multiaddr()
}

// Multiaddrs 返回所有监听地址
func (m *MergedListener) Multiaddrs() []types.Address {
	out := make([]types.Address, 0, len(m.listeners))
	for _, l := range m.listeners {
		out = append(out, l.Multiaddr())
	}
	return out
}

// Close 关闭所有内部监听器
func (m *MergedListener) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		for _, l := range m.listeners {
			err = multierr.Append(err, l.Close())
		}
	})
	return err
}
