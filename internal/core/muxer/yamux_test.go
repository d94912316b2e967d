package muxer

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

func newYamuxPair(t *testing.T) (client, server pkgif.MuxedConn) {
	t.Helper()
	m := NewYamux(DefaultConfig())
	cc, sc := testConnPair(t)

	client, err := m.NewConn(cc, false)
	require.NoError(t, err)
	server, err = m.NewConn(sc, true)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return client, server
}

// TestYamux_Config 测试配置
func TestYamux_Config(t *testing.T) {
	m := NewYamux(DefaultConfig())
	assert.Equal(t, YamuxID, m.ID())
	assert.Equal(t, uint32(16*1024*1024), m.Config().MaxStreamWindowSize)
	assert.Equal(t, uint32(1024), m.Config().MaxIncomingStreams)
	assert.Equal(t, 0, m.Config().ReadBufSize)
}

// TestYamux_ManyStreams 测试单连接上的多条独立流
func TestYamux_ManyStreams(t *testing.T) {
	client, server := newYamuxPair(t)

	const n = 16
	go func() {
		for i := 0; i < n; i++ {
			s, err := server.AcceptStream()
			if err != nil {
				return
			}
			go func(s pkgif.MuxedStream) {
				defer s.Close()
				_, _ = io.Copy(s, s)
			}(s)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := client.OpenStream(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer s.Close()

			payload := []byte{byte(i), byte(i + 1), byte(i + 2)}
			_, err = s.Write(payload)
			assert.NoError(t, err)
			assert.NoError(t, s.CloseWrite())

			got, err := io.ReadAll(s)
			assert.NoError(t, err)
			assert.Equal(t, payload, got)
		}(i)
	}
	wg.Wait()

	t.Log("✅ 多流并发回显正确")
}

// TestYamux_CloseOneStream 测试关闭一个流不影响其他流
func TestYamux_CloseOneStream(t *testing.T) {
	client, server := newYamuxPair(t)

	accepted := make(chan pkgif.MuxedStream, 2)
	go func() {
		for i := 0; i < 2; i++ {
			s, err := server.AcceptStream()
			if err != nil {
				return
			}
			accepted <- s
		}
	}()

	s1, err := client.OpenStream(context.Background())
	require.NoError(t, err)
	_, err = s1.Write([]byte("a"))
	require.NoError(t, err)

	s2, err := client.OpenStream(context.Background())
	require.NoError(t, err)
	_, err = s2.Write([]byte("b"))
	require.NoError(t, err)

	// yamux 按打开顺序投递入站流
	r1 := <-accepted
	r2 := <-accepted

	one := make([]byte, 1)
	_, err = io.ReadFull(r1, one)
	require.NoError(t, err)
	assert.Equal(t, "a", string(one))

	require.NoError(t, s1.Reset())

	// s2 仍可双向通信
	_, err = s2.Write([]byte("c"))
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = io.ReadFull(r2, buf)
	require.NoError(t, err)
	assert.Equal(t, "bc", string(buf))

	_, err = r2.Write([]byte("d"))
	require.NoError(t, err)
	_, err = io.ReadFull(s2, one)
	require.NoError(t, err)
	assert.Equal(t, "d", string(one))
	assert.False(t, client.IsClosed())
}

// TestYamux_CloseConnFailsStreams 测试关闭连接后流操作返回 ErrConnectionClosed
func TestYamux_CloseConnFailsStreams(t *testing.T) {
	client, server := newYamuxPair(t)

	go func() {
		s, err := server.AcceptStream()
		if err == nil {
			_, _ = s.Write([]byte("x"))
		}
	}()

	s, err := client.OpenStream(context.Background())
	require.NoError(t, err)
	one := make([]byte, 1)
	_, _ = s.Write([]byte("x"))
	_, err = io.ReadFull(s, one)
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		_, err := s.Read(one)
		readErr <- err
	}()

	require.NoError(t, client.Close())
	assert.True(t, client.IsClosed())

	select {
	case err := <-readErr:
		assert.ErrorIs(t, err, types.ErrConnectionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("挂起的读操作未在连接关闭后返回")
	}

	_, err = client.OpenStream(context.Background())
	assert.ErrorIs(t, err, types.ErrConnectionClosed)

	_, err = client.AcceptStream()
	assert.ErrorIs(t, err, types.ErrConnectionClosed)

	t.Log("✅ 连接关闭后流操作返回 ErrConnectionClosed")
}
