package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	tr := New(DefaultConfig(), tcp.New(tcp.DefaultConfig()))
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

// TestTransport_CanDial 测试地址匹配
func TestTransport_CanDial(t *testing.T) {
	tr := newTestTransport(t)

	assert.True(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/1000/ws")))
	assert.True(t, tr.CanDial(types.MustParseAddress("/dns4/example.com/tcp/443/ws")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/1000")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/1000/quic-v1")))
}

// TestTransport_ByteStream 测试跨消息边界的字节流语义与半关闭
func TestTransport_ByteStream(t *testing.T) {
	tr := newTestTransport(t)

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0/ws"))
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, types.ProtoWS, l.Multiaddr().Last())
	port, ok := l.Multiaddr().Port()
	require.True(t, ok)
	assert.NotZero(t, port)

	serverDone := make(chan error, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		sc := c.(pkgif.StreamConn)
		defer sc.Close()

		for _, part := range []string{"hello", " ", "world"} {
			if _, err := sc.Write([]byte(part)); err != nil {
				serverDone <- err
				return
			}
		}
		if err := sc.(*tcp.Conn).CloseWrite(); err != nil {
			serverDone <- err
			return
		}
		// 等待对端回应关闭帧
		_, _ = io.Copy(io.Discard, sc)
		serverDone <- nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := tr.Dial(ctx, l.Multiaddr())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "websocket", c.Transport())
	assert.Equal(t, types.ProtoWS, c.RemoteMultiaddr().Last())

	data, err := io.ReadAll(c.(pkgif.StreamConn))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NoError(t, <-serverDone)

	t.Log("✅ WebSocket 字节流正确")
}

// TestTransport_DialOnly 测试仅拨号模式
func TestTransport_DialOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DialOnly = true
	tr := New(cfg, tcp.New(tcp.DefaultConfig()))
	defer tr.Close()

	_, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0/ws"))
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

// TestTransport_DialUnsupported 测试非 ws 地址
func TestTransport_DialUnsupported(t *testing.T) {
	tr := newTestTransport(t)
	_, err := tr.Dial(context.Background(), types.MustParseAddress("/ip4/127.0.0.1/tcp/1"))
	assert.ErrorIs(t, err, types.ErrUnsupported)
}
