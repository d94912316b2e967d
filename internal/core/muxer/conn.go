package muxer

import (
	"context"

	"github.com/libp2p/go-yamux/v5"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

var logger = log.Logger("core/muxer")

// muxedConn 包装 yamux.Session，实现 MuxedConn 接口
type muxedConn struct {
	session *yamux.Session
}

// 确保实现接口
var _ pkgif.MuxedConn = (*muxedConn)(nil)

// OpenStream 打开新流
func (c *muxedConn) OpenStream(ctx context.Context) (pkgif.MuxedStream, error) {
	s, err := c.session.OpenStream(ctx)
	if err != nil {
		logger.Debug("打开流失败", "error", err)
		return nil, parseError(err, c.session.IsClosed())
	}
	return &muxedStream{stream: s, conn: c}, nil
}

// AcceptStream 接受新流
func (c *muxedConn) AcceptStream() (pkgif.MuxedStream, error) {
	s, err := c.session.AcceptStream()
	if err != nil {
		return nil, parseError(err, c.session.IsClosed())
	}
	return &muxedStream{stream: s, conn: c}, nil
}

// Close 关闭连接
func (c *muxedConn) Close() error {
	logger.Debug("关闭多路复用连接")
	return c.session.Close()
}

// IsClosed 检查连接是否已关闭
func (c *muxedConn) IsClosed() bool {
	return c.session.IsClosed()
}

// NumStreams 当前打开的流数量
func (c *muxedConn) NumStreams() int {
	return c.session.NumStreams()
}
