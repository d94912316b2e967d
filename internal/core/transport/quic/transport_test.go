package quic

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// TestTransport_CanDial 测试地址匹配
func TestTransport_CanDial(t *testing.T) {
	tr := newTestTransport(t)

	assert.True(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/4001/quic-v1")))
	assert.True(t, tr.CanDial(types.MustParseAddress("/ip6/::1/udp/4001/quic-v1")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/4001")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/4001")))
	assert.True(t, tr.Multiplexed())
}

// TestTransport_Streams 测试 QUIC 原生多路复用
func TestTransport_Streams(t *testing.T) {
	tr := newTestTransport(t)

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	defer l.Close()

	port, ok := l.Multiaddr().Port()
	require.True(t, ok)
	assert.NotZero(t, port)
	assert.Equal(t, types.ProtoQUICV1, l.Multiaddr().Last())

	serverDone := make(chan error, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		mc := c.(pkgif.MuxedConn)
		for i := 0; i < 2; i++ {
			s, err := mc.AcceptStream()
			if err != nil {
				serverDone <- err
				return
			}
			go func(s pkgif.MuxedStream) {
				defer s.Close()
				_, _ = io.Copy(s, s)
			}(s)
		}
		serverDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := tr.Dial(ctx, l.Multiaddr())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "quic", c.Transport())

	mc := c.(pkgif.MuxedConn)
	for _, payload := range []string{"first", "second"} {
		s, err := mc.OpenStream(ctx)
		require.NoError(t, err)
		_, err = s.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, s.CloseWrite())

		got, err := io.ReadAll(s)
		require.NoError(t, err)
		assert.Equal(t, payload, string(got))
	}
	require.NoError(t, <-serverDone)

	t.Log("✅ QUIC 多流回显正确")
}

// TestListener_CloseEndsAccept 测试关闭监听器后 Accept 返回 net.ErrClosed
func TestListener_CloseEndsAccept(t *testing.T) {
	tr := newTestTransport(t)

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		done <- err
	}()

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("Accept 未在关闭后返回")
	}
}

// TestConn_CloseFailsStreams 测试关闭连接后流操作返回 ErrConnectionClosed
func TestConn_CloseFailsStreams(t *testing.T) {
	tr := newTestTransport(t)

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/udp/0/quic-v1"))
	require.NoError(t, err)
	defer l.Close()

	accepted := make(chan pkgif.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := tr.Dial(ctx, l.Multiaddr())
	require.NoError(t, err)
	server := <-accepted
	defer server.Close()

	mc := c.(pkgif.MuxedConn)
	require.NoError(t, c.Close())
	assert.True(t, mc.IsClosed())

	_, err = mc.OpenStream(ctx)
	assert.ErrorIs(t, err, types.ErrConnectionClosed)
}
