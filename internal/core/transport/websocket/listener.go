package websocket

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	ws "github.com/gorilla/websocket"

	"github.com/dep2p/go-floodnet/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现接口
var _ pkgif.Listener = (*Listener)(nil)

// Listener WebSocket 监听器
//
// 内部运行一个 http.Server，升级成功的连接经 incoming 通道交给 Accept。
type Listener struct {
	addr     types.Address
	upgrader ws.Upgrader
	server   *http.Server
	path     string

	incoming chan *tcp.Conn
	closing  chan struct{}

	closeOnce sync.Once
	serveErr  chan error
}

func newListener(nl net.Listener, addr types.Address, cfg Config) *Listener {
	l := &Listener{
		addr: addr,
		upgrader: ws.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			// 节点间连接没有浏览器 Origin 语义
			CheckOrigin: func(*http.Request) bool { return true },
		},
		path:     cfg.Path,
		incoming: make(chan *tcp.Conn),
		closing:  make(chan struct{}),
		serveErr: make(chan error, 1),
	}

	l.server = &http.Server{
		Handler:           l,
		ReadHeaderTimeout: cfg.HandshakeTimeout,
	}

	go func() {
		l.serveErr <- l.server.Serve(nl)
	}()
	return l
}

// ServeHTTP 处理 HTTP 升级
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if l.path != "" && r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}

	c, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn, err := wrapConn(newNetConn(c))
	if err != nil {
		logger.Warn("无法解析入站连接地址", "error", err)
		_ = c.Close()
		return
	}

	select {
	case l.incoming <- conn:
	case <-l.closing:
		_ = conn.Close()
	}
}

// Accept 接受连接
func (l *Listener) Accept() (pkgif.Conn, error) {
	select {
	case c := <-l.incoming:
		logger.Debug("接受入站连接", "local", l.addr.String(), "remote", c.RemoteMultiaddr().String())
		return c, nil
	case <-l.closing:
		return nil, fmt.Errorf("accept %s: %w", l.addr, net.ErrClosed)
	case err := <-l.serveErr:
		l.serveErr <- err
		if errors.Is(err, http.ErrServerClosed) {
			return nil, fmt.Errorf("accept %s: %w", l.addr, net.ErrClosed)
		}
		// Serve 异常退出视为致命错误
		return nil, fmt.Errorf("accept %s: %w", l.addr, err)
	}
}

// Multiaddr 返回实际监听地址
func (l *Listener) Multiaddr() types.Address {
	return l.addr
}

// Close 关闭监听器
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.closing)
		err = l.server.Close()
	})
	return err
}
