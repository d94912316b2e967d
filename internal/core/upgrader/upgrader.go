package upgrader

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/upgrader")

// 确保实现了接口
var _ pkgif.Upgrader = (*Upgrader)(nil)

// Upgrader 流升级器
//
// 一个实例可注册多个协议处理器，每条流只选中其中一个。
type Upgrader struct {
	cfg        Config
	negotiator Negotiator

	mu       sync.RWMutex
	handlers []pkgif.ProtocolHandler
}

// New 创建流升级器
func New(cfg Config, handlers ...pkgif.ProtocolHandler) (*Upgrader, error) {
	n, err := NewNegotiator(cfg.Negotiation)
	if err != nil {
		return nil, err
	}
	if cfg.NegotiateTimeout <= 0 {
		cfg.NegotiateTimeout = DefaultConfig().NegotiateTimeout
	}

	u := &Upgrader{cfg: cfg, negotiator: n}
	for _, h := range handlers {
		if err := u.Register(h); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Register 注册协议处理器，注册顺序即本地偏好顺序
func (u *Upgrader) Register(h pkgif.ProtocolHandler) error {
	if h.ID() == "" {
		return types.ErrEmptyProtocolID
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.handlers {
		if existing.ID() == h.ID() {
			return fmt.Errorf("%w: %s", ErrDuplicateProtocol, h.ID())
		}
	}
	u.handlers = append(u.handlers, h)
	logger.Debug("注册协议处理器", "protocol", string(h.ID()))
	return nil
}

// Protocols 返回已注册协议（按注册顺序）
func (u *Upgrader) Protocols() []types.ProtocolID {
	u.mu.RLock()
	defer u.mu.RUnlock()
	out := make([]types.ProtocolID, len(u.handlers))
	for i, h := range u.handlers {
		out[i] = h.ID()
	}
	return out
}

func (u *Upgrader) handler(id types.ProtocolID) pkgif.ProtocolHandler {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, h := range u.handlers {
		if h.ID() == id {
			return h
		}
	}
	return nil
}

// Upgrade 在流上协商协议并执行对应处理器
//
// 入站流本地为监听方。协商失败时重置流且不调用任何处理器。
func (u *Upgrader) Upgrade(ctx context.Context, s pkgif.MuxedStream, info types.ConnInfo) (pkgif.UpgradeOutput, error) {
	u.observe(info, StateStart, "")

	ids := u.Protocols()
	if len(ids) == 0 {
		u.observe(info, StateFailed, "")
		_ = s.Reset()
		return nil, ErrNoHandlers
	}

	u.observe(info, StateExchanging, "")
	restore, err := setDeadline(ctx, s, u.cfg.NegotiateTimeout)
	if err != nil {
		u.observe(info, StateFailed, "")
		_ = s.Reset()
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	selected, r, err := u.negotiator.Negotiate(s, types.ProtocolStrings(ids), info.Direction.IsListener())
	restore()
	if err != nil {
		u.observe(info, StateFailed, "")
		_ = s.Reset()
		logger.Debug("协议协商失败", "remote", info.Remote.String(), "direction", info.Direction.String(), "error", err)
		return nil, fmt.Errorf("negotiate with %s: %w", info.Remote, err)
	}

	p := types.ProtocolID(selected)
	u.observe(info, StateSelected, p)

	h := u.handler(p)
	if h == nil {
		// 协商结果只可能来自本地列表
		u.observe(info, StateFailed, p)
		_ = s.Reset()
		return nil, fmt.Errorf("negotiated protocol %s not registered", p)
	}

	logger.Debug("协议已选中", "protocol", selected, "remote", info.Remote.String(), "direction", info.Direction.String())
	u.observe(info, StateRunning, p)

	out, err := h.Upgrade(ctx, wrapStream(s, r), info)
	if err != nil {
		u.observe(info, StateFailed, p)
		_ = s.Reset()
		return nil, fmt.Errorf("upgrade %s: %w", p, err)
	}
	return out, nil
}

// NegotiateConn 在原始连接上协商（用于选择多路复用器）
//
// 返回的连接包含协商期间已缓冲的字节。
func (u *Upgrader) NegotiateConn(ctx context.Context, c net.Conn, local []string, listener bool) (string, net.Conn, error) {
	restore, err := setDeadline(ctx, c, u.cfg.NegotiateTimeout)
	if err != nil {
		return "", nil, err
	}
	selected, r, err := u.negotiator.Negotiate(c, local, listener)
	restore()
	if err != nil {
		return "", nil, err
	}
	if r == io.Reader(c) {
		return selected, c, nil
	}
	return selected, &negotiatedConn{Conn: c, r: r}, nil
}

func (u *Upgrader) observe(info types.ConnInfo, st State, p types.ProtocolID) {
	if u.cfg.Observer != nil {
		u.cfg.Observer(info, st, p)
	}
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// setDeadline 设置协商截止时间，ctx 截止时间更早时以其为准
func setDeadline(ctx context.Context, d deadliner, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := d.SetDeadline(deadline); err != nil {
		return nil, err
	}
	return func() { _ = d.SetDeadline(time.Time{}) }, nil
}

// negotiatedStream 先读出协商期间缓冲的字节
type negotiatedStream struct {
	pkgif.MuxedStream
	r io.Reader
}

func (s *negotiatedStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func wrapStream(s pkgif.MuxedStream, r io.Reader) pkgif.MuxedStream {
	if r == nil || r == io.Reader(s) {
		return s
	}
	return &negotiatedStream{MuxedStream: s, r: r}
}

// negotiatedConn 先读出协商期间缓冲的字节
type negotiatedConn struct {
	net.Conn
	r io.Reader
}

func (c *negotiatedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// CloseWrite 透传半关闭
func (c *negotiatedConn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Conn.Close()
}
