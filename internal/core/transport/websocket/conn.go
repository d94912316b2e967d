package websocket

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

// 确保实现接口
var _ net.Conn = (*netConn)(nil)

// netConn 把 WebSocket 消息流适配为字节流
//
// 每次 Write 发送一条二进制消息；Read 跨消息边界连续读取。
// 收到正常关闭帧时 Read 返回 io.EOF。
type netConn struct {
	conn *ws.Conn

	readMu sync.Mutex
	reader io.Reader

	writeMu     sync.Mutex
	writeClosed bool

	closeOnce sync.Once
	closeErr  error
}

func newNetConn(c *ws.Conn) *netConn {
	return &netConn{conn: c}
}

func (c *netConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if c.reader == nil {
			mt, r, err := c.conn.NextReader()
			if err != nil {
				return 0, mapReadError(err)
			}
			if mt != ws.BinaryMessage && mt != ws.TextMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *netConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeClosed {
		return 0, net.ErrClosed
	}
	if err := c.conn.WriteMessage(ws.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CloseWrite 发送关闭帧，仍可继续读取直至对端关闭
func (c *netConn) CloseWrite() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeClosed {
		return nil
	}
	c.writeClosed = true
	msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
	return c.conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(time.Second))
}

func (c *netConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.CloseWrite()
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *netConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *netConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *netConn) SetDeadline(t time.Time) error {
	if err := c.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return c.conn.SetWriteDeadline(t)
}

func (c *netConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *netConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

func mapReadError(err error) error {
	if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway, ws.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
