package quic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// 确保实现接口：QUIC 连接原生多路复用
var (
	_ pkgif.Conn        = (*Conn)(nil)
	_ pkgif.MuxedConn   = (*Conn)(nil)
	_ pkgif.MuxedStream = (*Stream)(nil)
)

// Conn QUIC 连接
type Conn struct {
	qc     *quic.Conn
	local  types.Address
	remote types.Address
}

func newConn(qc *quic.Conn) (*Conn, error) {
	local, err := fromUDPAddr(qc.LocalAddr())
	if err != nil {
		return nil, err
	}
	remote, err := fromUDPAddr(qc.RemoteAddr())
	if err != nil {
		return nil, err
	}
	return &Conn{qc: qc, local: local, remote: remote}, nil
}

// LocalMultiaddr 返回本地地址
func (c *Conn) LocalMultiaddr() types.Address { return c.local }

// RemoteMultiaddr 返回远端地址
func (c *Conn) RemoteMultiaddr() types.Address { return c.remote }

// Transport 返回承载名称
func (c *Conn) Transport() string { return "quic" }

// OpenStream 打开新流
func (c *Conn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	s, err := c.qc.OpenStreamSync(ctx)
	if err != nil {
		return nil, c.parseError(err)
	}
	return &Stream{s: s}, nil
}

// AcceptStream 接受远端打开的流
func (c *Conn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.qc.AcceptStream(context.Background())
	if err != nil {
		return nil, c.parseError(err)
	}
	return &Stream{s: s}, nil
}

// Close 关闭连接
func (c *Conn) Close() error {
	return c.qc.CloseWithError(0, "")
}

// IsClosed 是否已关闭
func (c *Conn) IsClosed() bool {
	return c.qc.Context().Err() != nil
}

func (c *Conn) parseError(err error) error {
	if err == nil {
		return nil
	}
	if c.IsClosed() {
		return fmt.Errorf("%w: %w", types.ErrConnectionClosed, err)
	}
	var appErr *quic.ApplicationError
	var idleErr *quic.IdleTimeoutError
	if errors.As(err, &appErr) || errors.As(err, &idleErr) {
		return fmt.Errorf("%w: %w", types.ErrConnectionClosed, err)
	}
	return err
}

// Stream QUIC 流
type Stream struct {
	s *quic.Stream
}

func (s *Stream) Read(p []byte) (int, error)  { return s.s.Read(p) }
func (s *Stream) Write(p []byte) (int, error) { return s.s.Write(p) }

// CloseWrite 关闭发送方向
func (s *Stream) CloseWrite() error {
	return s.s.Close()
}

// Close 关闭双向
func (s *Stream) Close() error {
	s.s.CancelRead(0)
	return s.s.Close()
}

// Reset 异常关闭
func (s *Stream) Reset() error {
	s.s.CancelRead(1)
	s.s.CancelWrite(1)
	return nil
}

func (s *Stream) SetDeadline(t time.Time) error      { return s.s.SetDeadline(t) }
func (s *Stream) SetReadDeadline(t time.Time) error  { return s.s.SetReadDeadline(t) }
func (s *Stream) SetWriteDeadline(t time.Time) error { return s.s.SetWriteDeadline(t) }
