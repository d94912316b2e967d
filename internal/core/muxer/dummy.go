package muxer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// DummyID dummy 多路复用器标识
const DummyID = "/floodnet/dummy/1.0.0"

// 确保实现接口
var (
	_ pkgif.Multiplexer = (*Dummy)(nil)
	_ pkgif.MuxedConn   = (*dummyConn)(nil)
	_ pkgif.MuxedStream = (*dummyStream)(nil)
)

// Dummy 单流多路复用器
//
// 整个连接即唯一的流：第一次 OpenStream 或 AcceptStream 取得该流，
// 之后 OpenStream 返回 ErrStreamLimit，AcceptStream 阻塞至连接关闭后返回 ErrConnectionClosed。
type Dummy struct{}

// NewDummy 创建 dummy 多路复用器
func NewDummy() *Dummy {
	return &Dummy{}
}

// ID 返回标识
func (d *Dummy) ID() string {
	return DummyID
}

// NewConn 包装连接
func (d *Dummy) NewConn(conn net.Conn, _ bool) (pkgif.MuxedConn, error) {
	return &dummyConn{
		conn:   conn,
		closed: make(chan struct{}),
	}, nil
}

type dummyConn struct {
	conn      net.Conn
	taken     atomic.Bool
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (c *dummyConn) take() (*dummyStream, bool) {
	if !c.taken.CompareAndSwap(false, true) {
		return nil, false
	}
	return &dummyStream{conn: c}, true
}

// OpenStream 取得唯一的流
func (c *dummyConn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	if c.IsClosed() {
		return nil, types.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := c.take()
	if !ok {
		return nil, ErrStreamLimit
	}
	return s, nil
}

// AcceptStream 取得唯一的流，已被取走时阻塞至连接关闭
func (c *dummyConn) AcceptStream() (pkgif.MuxedStream, error) {
	if c.IsClosed() {
		return nil, types.ErrConnectionClosed
	}
	if s, ok := c.take(); ok {
		return s, nil
	}
	<-c.closed
	return nil, types.ErrConnectionClosed
}

// Close 关闭连接
func (c *dummyConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// IsClosed 是否已关闭
func (c *dummyConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// dummyStream 等同于整个连接的流
type dummyStream struct {
	conn *dummyConn
}

func (s *dummyStream) Read(p []byte) (int, error) {
	n, err := s.conn.conn.Read(p)
	return n, s.mapError(err)
}

func (s *dummyStream) Write(p []byte) (int, error) {
	n, err := s.conn.conn.Write(p)
	return n, s.mapError(err)
}

// Close 关闭流即关闭连接
func (s *dummyStream) Close() error {
	return s.conn.Close()
}

// CloseWrite 半关闭，底层不支持时关闭整个连接
func (s *dummyStream) CloseWrite() error {
	if cw, ok := s.conn.conn.(interface{ CloseWrite() error }); ok {
		return s.mapError(cw.CloseWrite())
	}
	return s.conn.Close()
}

// Reset 关闭连接
func (s *dummyStream) Reset() error {
	return s.conn.Close()
}

func (s *dummyStream) SetDeadline(t time.Time) error      { return s.conn.conn.SetDeadline(t) }
func (s *dummyStream) SetReadDeadline(t time.Time) error  { return s.conn.conn.SetReadDeadline(t) }
func (s *dummyStream) SetWriteDeadline(t time.Time) error { return s.conn.conn.SetWriteDeadline(t) }

func (s *dummyStream) mapError(err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	if s.conn.IsClosed() || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %w", types.ErrConnectionClosed, err)
	}
	return err
}
