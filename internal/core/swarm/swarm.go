package swarm

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-floodnet/internal/core/transport"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/swarm")

// 确保实现了接口
var _ pkgif.Swarm = (*Swarm)(nil)

// Upgrader Swarm 使用的升级器
//
// NegotiateConn 用于在字节流连接上选择多路复用器，Upgrade 用于每条流。
type Upgrader interface {
	Upgrade(ctx context.Context, s pkgif.MuxedStream, info types.ConnInfo) (pkgif.UpgradeOutput, error)
	NegotiateConn(ctx context.Context, c net.Conn, local []string, listener bool) (string, net.Conn, error)
}

// TaskInfo 任务注册表条目快照
type TaskInfo struct {
	ID       uint64
	Conn     types.ConnID
	Protocol types.ProtocolID
	Remote   types.Address
	Started  time.Time
}

// Swarm 连接群
type Swarm struct {
	config    *Config
	transport pkgif.Transport
	muxers    []pkgif.Multiplexer
	upgrader  Upgrader
	handler   pkgif.Handler
	metrics   Metrics

	events chan Event

	mu        sync.Mutex
	pending   []command
	listeners map[pkgif.Listener][]types.Address
	connView  map[types.ConnID]types.ConnInfo
	liveConns map[types.ConnID]pkgif.MuxedConn
	taskView  []TaskInfo
	closed    bool

	wake      chan struct{}
	closing   chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
}

// New 创建 Swarm
func New(transport pkgif.Transport, muxers []pkgif.Multiplexer, upgrader Upgrader, handler pkgif.Handler, opts ...Option) (*Swarm, error) {
	if transport == nil || upgrader == nil || handler == nil {
		return nil, fmt.Errorf("%w: transport, upgrader and handler are required", ErrInvalidConfig)
	}

	s := &Swarm{
		config:    DefaultConfig(),
		transport: transport,
		muxers:    muxers,
		upgrader:  upgrader,
		handler:   handler,
		metrics:   noopMetrics{},
		listeners: make(map[pkgif.Listener][]types.Address),
		connView:  make(map[types.ConnID]types.ConnInfo),
		liveConns: make(map[types.ConnID]pkgif.MuxedConn),
		wake:      make(chan struct{}, 1),
		closing:   make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.config.EventBuffer > 0 {
		s.events = make(chan Event, s.config.EventBuffer)
	}
	return s, nil
}

// ListenOn 在地址上开始监听，返回端口已解析的实际地址
//
// 接受循环由 Run 驱动；在 Run 之前或运行期间调用均可。
func (s *Swarm) ListenOn(addr types.Address) (types.Address, error) {
	if s.isClosed() {
		return types.Address{}, ErrSwarmClosed
	}

	l, err := s.transport.Listen(addr)
	if err != nil {
		return types.Address{}, err
	}
	actual := l.Multiaddr()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = l.Close()
		return types.Address{}, ErrSwarmClosed
	}
	s.listeners[l] = []types.Address{actual}
	s.pending = append(s.pending, cmdListen{listener: l, addrs: []types.Address{actual}})
	s.mu.Unlock()
	s.notify()

	logger.Info("开始监听", "addr", actual.String())
	return actual, nil
}

// listenAller 能把多个地址合并为一个入站序列的承载
type listenAller interface {
	ListenAll(addrs ...types.Address) (*transport.MergedListener, error)
}

// ListenOnAll 在多个地址上监听，入站连接合并为一个序列
//
// 任一地址失败时已建立的监听全部关闭并返回错误。返回值与 addrs 一一对应。
func (s *Swarm) ListenOnAll(addrs ...types.Address) ([]types.Address, error) {
	if s.isClosed() {
		return nil, ErrSwarmClosed
	}
	if len(addrs) == 0 {
		return nil, nil
	}

	var ml *transport.MergedListener
	if la, ok := s.transport.(listenAller); ok {
		var err error
		if ml, err = la.ListenAll(addrs...); err != nil {
			return nil, err
		}
	} else {
		ls := make([]pkgif.Listener, 0, len(addrs))
		for _, a := range addrs {
			l, err := s.transport.Listen(a)
			if err != nil {
				for _, opened := range ls {
					_ = opened.Close()
				}
				return nil, err
			}
			ls = append(ls, l)
		}
		ml = transport.NewMergedListener(ls...)
	}
	actual := ml.Multiaddrs()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ml.Close()
		return nil, ErrSwarmClosed
	}
	s.listeners[ml] = actual
	s.pending = append(s.pending, cmdListen{listener: ml, addrs: actual})
	s.mu.Unlock()
	s.notify()

	logger.Info("开始监听", "addrs", types.AddressStrings(actual))
	return actual, nil
}

// Dial 发起拨号，立即返回拨号标识
//
// 没有承载能处理地址时同步返回 ErrUnsupported；其余结果以事件上报。
func (s *Swarm) Dial(addr types.Address) (types.DialID, error) {
	if s.isClosed() {
		return "", ErrSwarmClosed
	}
	if !s.transport.CanDial(addr) {
		return "", fmt.Errorf("%w: no transport for %s", types.ErrUnsupported, addr)
	}

	id := types.NewDialID()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSwarmClosed
	}
	s.pending = append(s.pending, cmdDial{id: id, addr: addr})
	s.mu.Unlock()
	s.notify()

	logger.Debug("提交拨号", "dial", id.String(), "addr", addr.String())
	return id, nil
}

// ListenAddrs 返回当前监听地址
func (s *Swarm) ListenAddrs() []types.Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Address, 0, len(s.listeners))
	for _, as := range s.listeners {
		out = append(out, as...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Conns 返回当前连接快照
func (s *Swarm) Conns() []types.ConnInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ConnInfo, 0, len(s.connView))
	for _, info := range s.connView {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Opened.Before(out[j].Opened) })
	return out
}

// Tasks 返回任务注册表快照
func (s *Swarm) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaskInfo(nil), s.taskView...)
}

// Events 返回事件通道，Run 结束后关闭
//
// EventBuffer 为 0 时返回 nil。
func (s *Swarm) Events() <-chan Event {
	return s.events
}

// Close 关闭所有监听器与连接，并使 Run 退出
func (s *Swarm) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		listeners := make([]pkgif.Listener, 0, len(s.listeners))
		for l := range s.listeners {
			listeners = append(listeners, l)
		}
		conns := make([]pkgif.MuxedConn, 0, len(s.liveConns))
		for _, c := range s.liveConns {
			conns = append(conns, c)
		}
		s.mu.Unlock()

		close(s.closing)

		for _, l := range listeners {
			err = multierr.Append(err, ignoreClosed(l.Close()))
		}
		for _, c := range conns {
			err = multierr.Append(err, ignoreClosed(c.Close()))
		}
		logger.Info("Swarm 已关闭", "listeners", len(listeners), "conns", len(conns))
	})
	return err
}

func (s *Swarm) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Swarm) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Swarm) takePending() []command {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.pending
	s.pending = nil
	return cmds
}

func (s *Swarm) forgetListener(l pkgif.Listener) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
}

func (s *Swarm) closeListeners() {
	s.mu.Lock()
	listeners := make([]pkgif.Listener, 0, len(s.listeners))
	for l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		_ = l.Close()
	}
}
