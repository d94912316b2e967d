package interfaces

import (
	"context"
	"io"
	"net"
	"time"
)

// Multiplexer 多路复用器
type Multiplexer interface {
	// ID 返回多路复用协议标识（用于协商）
	ID() string

	// NewConn 在字节流连接上建立多路复用会话
	NewConn(conn net.Conn, isServer bool) (MuxedConn, error)
}

// MuxedConn 多路复用连接
//
// 连接关闭后，所有未完成和后续的流操作返回 ErrConnectionClosed。
type MuxedConn interface {
	// OpenStream 打开新流
	OpenStream(ctx context.Context) (MuxedStream, error)

	// AcceptStream 接受远端打开的流
	AcceptStream() (MuxedStream, error)

	// Close 关闭连接及其所有流
	Close() error

	// IsClosed 是否已关闭
	IsClosed() bool
}

// MuxedStream 多路复用流
//
// 关闭一个流不影响同一连接上的其他流。
type MuxedStream interface {
	io.ReadWriteCloser

	// CloseWrite 关闭写端，远端读到 EOF
	CloseWrite() error

	// Reset 异常关闭
	Reset() error

	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
