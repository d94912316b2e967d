package swarm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dep2p/go-floodnet/internal/core/muxer"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// setupConn 为原始连接选择多路复用器
func (l *loop) setupConn(c pkgif.Conn, dir types.Direction, dial types.DialID) {
	info := types.ConnInfo{
		ID:        types.NewConnID(),
		Direction: dir,
		Local:     c.LocalMultiaddr(),
		Remote:    c.RemoteMultiaddr(),
		Transport: c.Transport(),
		Opened:    time.Now(),
	}

	mc, muxerID, err := l.s.multiplex(l.ctx, c, dir)
	if err != nil {
		_ = c.Close()
		logger.Debug("多路复用协商失败", "remote", info.Remote.String(), "direction", dir.String(), "error", err)
		l.send(msgSetupFailed{info: info, dial: dial, err: err})
		return
	}
	info.Muxer = muxerID
	l.send(msgConnReady{entry: &connEntry{info: info, mc: mc, dial: dial}})
}

// multiplex 返回连接的多路复用视图
//
// 原生多路复用承载直接使用；字节流连接在已配置的多路复用器中协商，
// 仅配置 dummy 时无需协商。
func (s *Swarm) multiplex(ctx context.Context, c pkgif.Conn, dir types.Direction) (pkgif.MuxedConn, string, error) {
	if mc, ok := c.(pkgif.MuxedConn); ok {
		return mc, c.Transport(), nil
	}
	sc, ok := c.(pkgif.StreamConn)
	if !ok {
		return nil, "", fmt.Errorf("%w: connection type %T", types.ErrUnsupported, c)
	}
	if len(s.muxers) == 0 {
		return nil, "", ErrNoMuxer
	}

	m := s.muxers[0]
	var conn net.Conn = sc
	if bm, ok := s.metrics.(ByteMeter); ok {
		conn = bm.MeterConn(conn)
	}
	if len(s.muxers) > 1 || m.ID() != muxer.DummyID {
		ids := make([]string, len(s.muxers))
		for i, x := range s.muxers {
			ids[i] = x.ID()
		}

		// ctx 取消时关闭连接以解除阻塞的协商
		stop := context.AfterFunc(ctx, func() { _ = sc.Close() })
		selected, nc, err := s.upgrader.NegotiateConn(ctx, conn, ids, dir.IsListener())
		stop()
		if err != nil {
			return nil, "", fmt.Errorf("select muxer: %w", err)
		}
		m = s.muxerByID(selected)
		if m == nil {
			return nil, "", fmt.Errorf("%w: %s", muxer.ErrUnknownMuxer, selected)
		}
		conn = nc
	}

	mc, err := m.NewConn(conn, dir.IsListener())
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", m.ID(), err)
	}
	return mc, m.ID(), nil
}

func (s *Swarm) muxerByID(id string) pkgif.Multiplexer {
	for _, m := range s.muxers {
		if m.ID() == id {
			return m
		}
	}
	return nil
}

// acceptStreams 接受对端打开的流，直至连接关闭
func (l *loop) acceptStreams(e *connEntry) {
	for {
		st, err := e.mc.AcceptStream()
		if err != nil {
			if errors.Is(err, types.ErrConnectionClosed) || errors.Is(err, net.ErrClosed) {
				err = nil
			}
			l.send(msgAcceptDone{conn: e.info.ID, err: err})
			return
		}
		l.send(msgStream{conn: e.info.ID, stream: st})
	}
}

// openStream 出站连接打开一条流
func (l *loop) openStream(e *connEntry) {
	st, err := e.mc.OpenStream(l.ctx)
	if err != nil {
		l.send(msgStreamFailed{info: e.info, dial: e.dial, err: fmt.Errorf("open stream: %w", err)})
		return
	}
	l.send(msgStream{conn: e.info.ID, stream: st, opened: true})
}

// upgradeStream 在流上协商协议并执行处理器
func (l *loop) upgradeStream(info types.ConnInfo, dial types.DialID, st pkgif.MuxedStream) {
	out, err := l.s.upgrader.Upgrade(l.ctx, st, info)
	l.send(msgUpgraded{info: info, dial: dial, out: out, err: err})
}

func ignoreClosed(err error) error {
	if err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, types.ErrConnectionClosed) {
		return nil
	}
	return err
}
