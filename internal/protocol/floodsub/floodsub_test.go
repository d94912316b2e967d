package floodsub

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/internal/core/identity"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

// TestPubSub_TwoNodes 测试两节点：B 订阅，A 发布，B 恰好收到一次
func TestPubSub_TwoNodes(t *testing.T) {
	n := newTestNet(t)
	a, b := n.node(), n.node()
	n.connect(b, a)
	waitPeers(t, a, 1)
	waitPeers(t, b, 1)

	sub, err := b.Subscribe("room")
	require.NoError(t, err)
	waitPeerTopic(t, a, "room", 1)

	require.NoError(t, a.Publish(context.Background(), "room", []byte("hi")))

	m := expectMessage(t, sub)
	assert.Equal(t, "hi", string(m.Data))
	assert.Equal(t, a.LocalPeer(), m.From)
	assert.Equal(t, []string{"room"}, m.Topics)
	assert.NotEmpty(t, m.ReceivedFrom)
	expectNoMessage(t, sub)

	t.Log("✅ 两节点发布订阅正确")
}

// TestPubSub_RelayThroughHub 测试 B、C 只连接 A：C 发布，B 经 A 收到一次，A 不回传给 C
func TestPubSub_RelayThroughHub(t *testing.T) {
	n := newTestNet(t)
	a, b, c := n.node(), n.node(), n.node()
	n.connect(b, a)
	n.connect(c, a)
	waitPeers(t, a, 2)

	subB, err := b.Subscribe("room")
	require.NoError(t, err)
	subC, err := c.Subscribe("room")
	require.NoError(t, err)
	waitPeerTopic(t, a, "room", 2)

	require.NoError(t, c.Publish(context.Background(), "room", []byte("via hub")))

	m := expectMessage(t, subB)
	assert.Equal(t, "via hub", string(m.Data))
	assert.Equal(t, c.LocalPeer(), m.From)
	expectNoMessage(t, subB)

	// 发布者不接收自己的消息，A 也不回传
	expectNoMessage(t, subC)
	assert.Zero(t, c.Stats().Duplicates)
	require.Eventually(t, func() bool { return a.Stats().Relayed == 1 }, 5*time.Second, 10*time.Millisecond)

	t.Log("✅ 经中心节点转发正确")
}

// TestPubSub_CycleDedup 测试环形拓扑中每个节点恰好收到一次
func TestPubSub_CycleDedup(t *testing.T) {
	n := newTestNet(t)
	a, b, c := n.node(), n.node(), n.node()
	n.connect(a, b)
	n.connect(b, c)
	n.connect(c, a)
	for _, ps := range []*PubSub{a, b, c} {
		waitPeers(t, ps, 2)
	}

	subB, err := b.Subscribe("room")
	require.NoError(t, err)
	subC, err := c.Subscribe("room")
	require.NoError(t, err)

	require.NoError(t, a.Publish(context.Background(), "room", []byte("loop")))

	assert.Equal(t, "loop", string(expectMessage(t, subB).Data))
	assert.Equal(t, "loop", string(expectMessage(t, subC).Data))
	expectNoMessage(t, subB)
	expectNoMessage(t, subC)

	// 环上至少有一次重复被丢弃
	require.Eventually(t, func() bool {
		return a.Stats().Duplicates+b.Stats().Duplicates+c.Stats().Duplicates >= 1
	}, 5*time.Second, 10*time.Millisecond)

	t.Log("✅ 环形拓扑去重正确")
}

// TestPubSub_LineReachability 测试链式拓扑可达
func TestPubSub_LineReachability(t *testing.T) {
	n := newTestNet(t)
	nodes := []*PubSub{n.node(), n.node(), n.node(), n.node()}
	for i := 0; i+1 < len(nodes); i++ {
		n.connect(nodes[i], nodes[i+1])
	}
	waitPeers(t, nodes[1], 2)
	waitPeers(t, nodes[2], 2)

	last := nodes[len(nodes)-1]
	sub, err := last.Subscribe("room")
	require.NoError(t, err)

	require.NoError(t, nodes[0].Publish(context.Background(), "room", []byte("far")))
	assert.Equal(t, "far", string(expectMessage(t, sub).Data))

	t.Log("✅ 链式拓扑可达")
}

// TestPubSub_SubscribeIdempotent 测试重复订阅
func TestPubSub_SubscribeIdempotent(t *testing.T) {
	n := newTestNet(t)
	a, b := n.node(), n.node()
	n.connect(a, b)
	waitPeers(t, a, 1)

	s1, err := b.Subscribe("room")
	require.NoError(t, err)
	s2, err := b.Subscribe("room")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, []string{"room"}, b.Topics())
	waitPeerTopic(t, a, "room", 1)

	require.NoError(t, a.Publish(context.Background(), "room", []byte("once")))
	assert.Equal(t, "once", string(expectMessage(t, s1).Data))
	expectNoMessage(t, s1)

	require.NoError(t, b.Unsubscribe("room"))
	assert.Empty(t, b.Topics())
	waitPeerTopic(t, a, "room", 0)
	_, ok := <-s1.Messages()
	assert.False(t, ok)

	assert.ErrorIs(t, b.Unsubscribe("room"), ErrNotSubscribed)
	_, err = b.Subscribe("")
	assert.ErrorIs(t, err, ErrEmptyTopic)

	t.Log("✅ 订阅幂等")
}

// TestPubSub_HelloOnAttach 测试新对端收到完整订阅集
func TestPubSub_HelloOnAttach(t *testing.T) {
	n := newTestNet(t)
	a, b := n.node(), n.node()

	_, err := b.Subscribe("x")
	require.NoError(t, err)
	_, err = b.Subscribe("y")
	require.NoError(t, err)

	n.connect(a, b)
	waitPeerTopic(t, a, "x", 1)
	waitPeerTopic(t, a, "y", 1)

	t.Log("✅ 连接时发送订阅集")
}

// rawFrames 从管道端读取帧
func rawFrames(conn net.Conn) <-chan *rpc {
	ch := make(chan *rpc, 16)
	go func() {
		defer close(ch)
		br := bufio.NewReader(conn)
		for {
			r, err := readRPC(br, 1<<20)
			if err != nil {
				return
			}
			ch <- r
		}
	}()
	return ch
}

// TestPubSub_MalformedFrames 测试坏帧被丢弃，对端保持连接
func TestPubSub_MalformedFrames(t *testing.T) {
	n := newTestNet(t)
	cfg := DefaultConfig()
	cfg.MaxMessageSize = 64
	a := n.node(WithConfig(cfg))
	sub, err := a.Subscribe("room")
	require.NoError(t, err)

	raw := n.attachRaw(a)
	go func() { _, _ = io.Copy(io.Discard, raw) }()
	waitPeers(t, a, 1)

	other := n.node()
	valid := &wireMessage{
		from:   other.LocalPeer().Bytes(),
		data:   []byte("ok"),
		seqno:  encodeSeqno(7),
		topics: []string{"room"},
	}

	var buf []byte
	// 非法 protobuf
	buf = append(buf, 0x02, 0xff, 0xff)
	// 超长帧
	big := make([]byte, 100)
	buf = appendFrame(buf, &rpc{msgs: []*wireMessage{{from: valid.from, data: big, seqno: encodeSeqno(8), topics: []string{"room"}}}})
	// 无主题消息
	buf = appendFrame(buf, &rpc{msgs: []*wireMessage{{from: valid.from, data: []byte("x"), seqno: encodeSeqno(9)}}})
	// 合法消息
	buf = appendFrame(buf, &rpc{msgs: []*wireMessage{valid}})
	_, err = raw.Write(buf)
	require.NoError(t, err)

	m := expectMessage(t, sub)
	assert.Equal(t, "ok", string(m.Data))
	assert.Equal(t, uint64(7), m.Seqno)
	assert.Equal(t, uint64(3), a.Stats().Malformed)
	assert.Equal(t, 1, a.Stats().Peers)

	t.Log("✅ 坏帧被丢弃")
}

// TestPubSub_FilteredFlood 测试过滤泛洪只发给有兴趣的对端
func TestPubSub_FilteredFlood(t *testing.T) {
	n := newTestNet(t)
	cfg := DefaultConfig()
	cfg.FilteredFlood = true
	a := n.node(WithConfig(cfg))
	b := n.node()
	n.connect(b, a)

	raw := n.attachRaw(a)
	frames := rawFrames(raw)
	waitPeers(t, a, 2)

	sub, err := b.Subscribe("room")
	require.NoError(t, err)
	waitPeerTopic(t, a, "room", 1)

	require.NoError(t, a.Publish(context.Background(), "room", []byte("filtered")))
	assert.Equal(t, "filtered", string(expectMessage(t, sub).Data))

	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case r, ok := <-frames:
			if !ok {
				t.Fatal("原始对端被断开")
			}
			assert.Empty(t, r.msgs, "未订阅的对端不应收到消息")
		case <-timeout:
			t.Log("✅ 过滤泛洪正确")
			return
		}
	}
}

// TestPubSub_SlowPeerDropped 测试发送队列满时断开对端
func TestPubSub_SlowPeerDropped(t *testing.T) {
	n := newTestNet(t)
	cfg := DefaultConfig()
	cfg.PeerQueueSize = 1
	a := n.node(WithConfig(cfg))

	// 从不读取的对端
	n.attachRaw(a)
	waitPeers(t, a, 1)

	for i := 0; i < 4; i++ {
		require.NoError(t, a.Publish(context.Background(), "room", []byte("x")))
	}
	require.Eventually(t, func() bool {
		st := a.Stats()
		return st.DroppedPeers == 1 && st.Peers == 0
	}, 5*time.Second, 10*time.Millisecond)

	t.Log("✅ 慢对端被断开")
}

// TestPubSub_PublishValidation 测试发布参数校验
func TestPubSub_PublishValidation(t *testing.T) {
	n := newTestNet(t)
	cfg := DefaultConfig()
	cfg.MaxMessageSize = 4
	a := n.node(WithConfig(cfg))

	assert.ErrorIs(t, a.Publish(context.Background(), "", []byte("x")), ErrEmptyTopic)
	assert.ErrorIs(t, a.Publish(context.Background(), "room", []byte("too long")), ErrMessageTooLarge)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Publish(context.Background(), "room", []byte("x")), ErrClosed)
	_, err := a.Subscribe("room")
	assert.ErrorIs(t, err, ErrClosed)

	t.Log("✅ 发布参数校验正确")
}

// TestPubSub_Heartbeat 测试心跳由注入的时钟驱动
func TestPubSub_Heartbeat(t *testing.T) {
	prev := log.Default()
	log.SetDefault(slogt.New(t))
	defer log.SetDefault(prev)

	mock := clock.NewMock()
	id, err := identity.Generate()
	require.NoError(t, err)
	ps, err := New(id.PeerID(), WithClock(mock))
	require.NoError(t, err)

	_, err = ps.Subscribe("room")
	require.NoError(t, err)
	mock.Add(DefaultConfig().HeartbeatInterval)
	assert.Equal(t, []string{"room"}, ps.Topics())
	assert.Equal(t, 1, ps.Stats().Topics)

	require.NoError(t, ps.Close())
	t.Log("✅ 心跳正常")
}

// TestTopic_HashedID 测试主题 ID
func TestTopic_HashedID(t *testing.T) {
	plain := NewTopic("room")
	assert.Equal(t, "room", plain.ID())
	assert.Equal(t, "room", plain.Name())

	hashed := NewTopic("room", WithHashedID())
	assert.Equal(t, "room", hashed.Name())
	assert.NotEqual(t, "room", hashed.ID())
	assert.Equal(t, hashed.ID(), NewTopic("room", WithHashedID()).ID())

	t.Log("✅ 主题 ID 正确")
}
