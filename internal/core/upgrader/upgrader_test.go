package upgrader

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/config"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// pipeStream 把 net.Conn 适配为 MuxedStream
type pipeStream struct {
	net.Conn
}

func (p pipeStream) CloseWrite() error { return p.Conn.Close() }
func (p pipeStream) Reset() error      { return p.Conn.Close() }

func bytesReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}

func streamPair() (pkgif.MuxedStream, pkgif.MuxedStream) {
	a, b := net.Pipe()
	return pipeStream{a}, pipeStream{b}
}

// rawOutput 测试用的升级产物，携带协商后的流
type rawOutput struct {
	id     types.ProtocolID
	stream pkgif.MuxedStream
}

func (o *rawOutput) Protocol() types.ProtocolID { return o.id }

// testHandler 测试用协议处理器
type testHandler struct {
	id    types.ProtocolID
	calls atomic.Int32
}

func (h *testHandler) ID() types.ProtocolID { return h.id }

func (h *testHandler) Upgrade(_ context.Context, s pkgif.MuxedStream, _ types.ConnInfo) (pkgif.UpgradeOutput, error) {
	h.calls.Add(1)
	return &rawOutput{id: h.id, stream: s}, nil
}

func handlers(ids ...string) []*testHandler {
	out := make([]*testHandler, len(ids))
	for i, id := range ids {
		out[i] = &testHandler{id: types.ProtocolID(id)}
	}
	return out
}

func newUpgrader(t *testing.T, mode string, hs []*testHandler) *Upgrader {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Negotiation = mode
	cfg.NegotiateTimeout = 2 * time.Second
	u, err := New(cfg)
	require.NoError(t, err)
	for _, h := range hs {
		require.NoError(t, u.Register(h))
	}
	return u
}

type upgradeResult struct {
	out pkgif.UpgradeOutput
	err error
}

// runPair 在一对流上同时执行监听方和拨号方升级
func runPair(t *testing.T, listener, dialer *Upgrader) (upgradeResult, upgradeResult) {
	t.Helper()
	ls, ds := streamPair()

	var wg sync.WaitGroup
	var lr, dr upgradeResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		lr.out, lr.err = listener.Upgrade(context.Background(), ls, types.ConnInfo{Direction: types.DirInbound})
	}()
	go func() {
		defer wg.Done()
		dr.out, dr.err = dialer.Upgrade(context.Background(), ds, types.ConnInfo{Direction: types.DirOutbound})
	}()
	wg.Wait()
	return lr, dr
}

// TestSelectProtocol 测试选择规则
func TestSelectProtocol(t *testing.T) {
	p, ok := SelectProtocol([]string{"/b", "/a"}, []string{"/a", "/b", "/c"})
	assert.True(t, ok)
	assert.Equal(t, "/b", p)

	_, ok = SelectProtocol([]string{"/x"}, []string{"/y"})
	assert.False(t, ok)

	_, ok = SelectProtocol(nil, []string{"/y"})
	assert.False(t, ok)
}

// TestUpgrade_ListenerOrderWins 测试交集非空时选中监听方优先的协议
func TestUpgrade_ListenerOrderWins(t *testing.T) {
	listenerHs := handlers("/floodsub/1.0.0", "/hello/1.0.0", "/only-listener")
	dialerHs := handlers("/only-dialer", "/hello/1.0.0", "/floodsub/1.0.0")

	lr, dr := runPair(t,
		newUpgrader(t, config.NegotiationListExchange, listenerHs),
		newUpgrader(t, config.NegotiationListExchange, dialerHs),
	)
	require.NoError(t, lr.err)
	require.NoError(t, dr.err)

	assert.Equal(t, types.ProtocolID("/floodsub/1.0.0"), lr.out.Protocol())
	assert.Equal(t, types.ProtocolID("/floodsub/1.0.0"), dr.out.Protocol())
	assert.Equal(t, int32(1), listenerHs[0].calls.Load())
	assert.Equal(t, int32(1), dialerHs[2].calls.Load())

	t.Log("✅ 双方选中同一协议，监听方顺序优先")
}

// TestUpgrade_Disjoint 测试无共同协议时失败且不调用处理器
func TestUpgrade_Disjoint(t *testing.T) {
	listenerHs := handlers("/a")
	dialerHs := handlers("/b")

	lr, dr := runPair(t,
		newUpgrader(t, config.NegotiationListExchange, listenerHs),
		newUpgrader(t, config.NegotiationListExchange, dialerHs),
	)
	assert.ErrorIs(t, lr.err, types.ErrNoCommonProtocol)
	assert.ErrorIs(t, dr.err, types.ErrNoCommonProtocol)
	assert.Zero(t, listenerHs[0].calls.Load())
	assert.Zero(t, dialerHs[0].calls.Load())

	t.Log("✅ 无共同协议时双方均返回 ErrNoCommonProtocol")
}

// TestUpgrade_PayloadAfterNegotiation 测试协商后的双向数据
func TestUpgrade_PayloadAfterNegotiation(t *testing.T) {
	lr, dr := runPair(t,
		newUpgrader(t, config.NegotiationListExchange, handlers("/echo")),
		newUpgrader(t, config.NegotiationListExchange, handlers("/echo")),
	)
	require.NoError(t, lr.err)
	require.NoError(t, dr.err)

	ls := lr.out.(*rawOutput).stream
	ds := dr.out.(*rawOutput).stream

	go func() {
		_, _ = ls.Write([]byte("hello world"))
		_ = ls.CloseWrite()
	}()
	got, err := io.ReadAll(ds)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

// TestListExchange_NoByteLoss 测试与协商帧同批到达的负载不丢失
func TestListExchange_NoByteLoss(t *testing.T) {
	local, peer := net.Pipe()
	defer local.Close()
	defer peer.Close()

	// 对端在一次写入中发送头部、列表和负载
	var batch bytes.Buffer
	appendFrame(&batch, []byte(SelectProtocolID))
	appendFrame(&batch, []byte("/x\n/floodsub/1.0.0"))
	batch.WriteString("payload-bytes")

	go func() {
		// 先读完本地列表再写，避免 net.Pipe 双向阻塞
		br := bytesReader(peer)
		_, _ = readList(br)
		_, _ = peer.Write(batch.Bytes())
	}()

	selected, r, err := ListExchange{}.Negotiate(local, []string{"/floodsub/1.0.0"}, true)
	require.NoError(t, err)
	assert.Equal(t, "/floodsub/1.0.0", selected)

	buf := make([]byte, len("payload-bytes"))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, "payload-bytes", string(buf))

	t.Log("✅ 协商后字节无丢失")
}

// TestListExchange_Malformed 测试错误的协商头部
func TestListExchange_Malformed(t *testing.T) {
	local, peer := net.Pipe()
	defer peer.Close()

	go func() {
		var bad bytes.Buffer
		appendFrame(&bad, []byte("/not-select/1.0.0"))
		appendFrame(&bad, []byte("/a"))
		_, _ = peer.Write(bad.Bytes())
		_, _ = io.Copy(io.Discard, peer)
	}()

	_, _, err := ListExchange{}.Negotiate(local, []string{"/a"}, false)
	assert.ErrorIs(t, err, types.ErrMalformed)
}

// TestReadFrame_TooLarge 测试超长帧
func TestReadFrame_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x80, 0x80, 0x80, 0x01}) // 2MiB
	_, err := readFrame(bytesReader(&buf))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.ErrorIs(t, err, types.ErrMalformed)
}

// TestUpgrade_Multistream 测试 multistream 模式（拨号方顺序优先）
func TestUpgrade_Multistream(t *testing.T) {
	lr, dr := runPair(t,
		newUpgrader(t, config.NegotiationMultistream, handlers("/a", "/b")),
		newUpgrader(t, config.NegotiationMultistream, handlers("/c", "/b", "/a")),
	)
	require.NoError(t, lr.err)
	require.NoError(t, dr.err)
	assert.Equal(t, types.ProtocolID("/b"), lr.out.Protocol())
	assert.Equal(t, types.ProtocolID("/b"), dr.out.Protocol())
}

// TestUpgrade_MultistreamDisjoint 测试 multistream 模式无共同协议
func TestUpgrade_MultistreamDisjoint(t *testing.T) {
	listenerHs := handlers("/a")
	lr, dr := runPair(t,
		newUpgrader(t, config.NegotiationMultistream, listenerHs),
		newUpgrader(t, config.NegotiationMultistream, handlers("/b")),
	)
	assert.ErrorIs(t, dr.err, types.ErrNoCommonProtocol)
	assert.Error(t, lr.err)
	assert.Zero(t, listenerHs[0].calls.Load())
}

// TestUpgrade_States 测试状态序列
func TestUpgrade_States(t *testing.T) {
	var mu sync.Mutex
	var states []State
	observer := func(info types.ConnInfo, st State, _ types.ProtocolID) {
		if info.Direction != types.DirInbound {
			return
		}
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	}

	cfg := DefaultConfig()
	cfg.Observer = observer
	listener, err := New(cfg, &testHandler{id: "/a"})
	require.NoError(t, err)

	lr, dr := runPair(t, listener, newUpgrader(t, config.NegotiationListExchange, handlers("/a")))
	require.NoError(t, lr.err)
	require.NoError(t, dr.err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateStart, StateExchanging, StateSelected, StateRunning}, states)
	assert.True(t, states[len(states)-1].Terminal())
}

// TestUpgrader_Register 测试注册规则
func TestUpgrader_Register(t *testing.T) {
	u, err := New(DefaultConfig())
	require.NoError(t, err)

	require.NoError(t, u.Register(&testHandler{id: "/a"}))
	assert.ErrorIs(t, u.Register(&testHandler{id: "/a"}), ErrDuplicateProtocol)
	assert.ErrorIs(t, u.Register(&testHandler{id: ""}), types.ErrEmptyProtocolID)
	assert.Equal(t, []types.ProtocolID{"/a"}, u.Protocols())

	_, err = New(Config{Negotiation: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownNegotiation)
}

// TestUpgrade_NoHandlers 测试未注册协议时失败
func TestUpgrade_NoHandlers(t *testing.T) {
	u, err := New(DefaultConfig())
	require.NoError(t, err)
	s, _ := streamPair()
	_, err = u.Upgrade(context.Background(), s, types.ConnInfo{Direction: types.DirInbound})
	assert.ErrorIs(t, err, ErrNoHandlers)
}

// TestNegotiateConn 测试在原始连接上选择多路复用器
func TestNegotiateConn(t *testing.T) {
	u, err := New(DefaultConfig())
	require.NoError(t, err)

	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	type result struct {
		sel  string
		conn net.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sel, c, err := u.NegotiateConn(context.Background(), b, []string{"/yamux/1.0.0", "/dummy"}, true)
		done <- result{sel, c, err}
	}()

	sel, dc, err := u.NegotiateConn(context.Background(), a, []string{"/dummy", "/yamux/1.0.0"}, false)
	require.NoError(t, err)
	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "/yamux/1.0.0", sel)
	assert.Equal(t, sel, r.sel)

	go func() { _, _ = dc.Write([]byte("ok")) }()
	buf := make([]byte, 2)
	_, err = io.ReadFull(r.conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(buf))
}
