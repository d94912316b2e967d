package tcp

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

// TestTransport_CanDial 测试地址匹配
func TestTransport_CanDial(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	assert.True(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/1")))
	assert.True(t, tr.CanDial(types.MustParseAddress("/ip6/::1/tcp/1")))
	assert.True(t, tr.CanDial(types.MustParseAddress("/dns4/localhost/tcp/1")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/tcp/1/ws")))
	assert.False(t, tr.CanDial(types.MustParseAddress("/ip4/127.0.0.1/udp/1/quic-v1")))
}

// TestTransport_ListenDial 测试第一章场景：监听方写入 hello world，拨号方读取
func TestTransport_ListenDial(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	port, ok := l.Multiaddr().Port()
	require.True(t, ok)
	assert.NotZero(t, port, "监听地址应包含实际端口")

	done := make(chan error, 1)
	go func() {
		c, err := l.Accept()
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		_, err = c.(pkgif.StreamConn).Write([]byte("hello world"))
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := tr.Dial(ctx, l.Multiaddr())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "tcp", c.Transport())
	assert.True(t, c.RemoteMultiaddr().Equal(l.Multiaddr()))

	data, err := io.ReadAll(c.(pkgif.StreamConn))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	require.NoError(t, <-done)

	t.Log("✅ TCP 监听与拨号成功")
}

// TestTransport_DialRefused 测试拨号到未监听端口
func TestTransport_DialRefused(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	// 先占用再释放一个端口，保证其未被监听
	nl, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr, err := types.AddressFromNetAddr(nl.Addr())
	require.NoError(t, err)
	require.NoError(t, nl.Close())

	_, err = tr.Dial(context.Background(), addr)
	assert.ErrorIs(t, err, types.ErrConnectionRefused)
}

// TestTransport_DialUnsupported 测试不支持的地址
func TestTransport_DialUnsupported(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	_, err := tr.Dial(context.Background(), types.MustParseAddress("/ip4/127.0.0.1/udp/1/quic-v1"))
	assert.ErrorIs(t, err, types.ErrUnsupported)

	_, err = tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0/ws"))
	assert.ErrorIs(t, err, types.ErrUnsupported)
}

// TestTransport_BindError 测试端口占用
func TestTransport_BindError(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	_, err = tr.Listen(l.Multiaddr())
	assert.ErrorIs(t, err, types.ErrBind)
}

// TestListener_CloseEndsAccept 测试关闭后 Accept 返回 net.ErrClosed
func TestListener_CloseEndsAccept(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(types.MustParseAddress("/ip4/127.0.0.1/tcp/0"))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Accept()
		errCh <- err
	}()

	require.NoError(t, l.Close())
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, net.ErrClosed))
	case <-time.After(5 * time.Second):
		t.Fatal("Accept 未在关闭后返回")
	}
}

// TestClassifyDialError 测试错误分类
func TestClassifyDialError(t *testing.T) {
	addr := types.MustParseAddress("/ip4/127.0.0.1/tcp/1")

	err := ClassifyDialError(addr, context.DeadlineExceeded)
	assert.ErrorIs(t, err, types.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = ClassifyDialError(addr, errors.New("boom"))
	assert.ErrorIs(t, err, types.ErrConnectionRefused)

	assert.ErrorIs(t, ClassifyDialError(addr, context.Canceled), context.Canceled)
	assert.NoError(t, ClassifyDialError(addr, nil))
}

// TestTransport_ListenResolvesPortKeepsHost 测试端口 0 被替换而主机部分保持原样
func TestTransport_ListenResolvesPortKeepsHost(t *testing.T) {
	tr := New(DefaultConfig())
	defer tr.Close()

	l, err := tr.Listen(types.MustParseAddress("/dns4/localhost/tcp/0"))
	require.NoError(t, err)
	defer l.Close()

	addr := l.Multiaddr()
	port, ok := addr.Port()
	require.True(t, ok)
	assert.NotZero(t, port)
	assert.Equal(t, types.ProtoDNS4, addr.Segments()[0].Code)

	t.Log("✅ 监听地址保持主机写法:", addr)
}
