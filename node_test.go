package floodnet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/protocol/identify"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

func newTestNode(t *testing.T, opts ...Option) *Node {
	t.Helper()
	n, err := New(append([]Option{WithConfig(config.NewTestConfig())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func addrOf(t *testing.T, n *Node) string {
	t.Helper()
	addrs := n.FullAddrs()
	require.NotEmpty(t, addrs)
	return addrs[0].String()
}

func waitTopicPeers(t *testing.T, n *Node, topic string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		count := 0
		for _, ts := range n.PubSub().PeerTopics() {
			for _, x := range ts {
				if x == topic {
					count++
				}
			}
		}
		return count == want
	}, 5*time.Second, 20*time.Millisecond)
}

func nextMessage(t *testing.T, sub pkgif.Subscription) *pkgif.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := sub.Next(ctx)
	require.NoError(t, err)
	return m
}

func noMessage(t *testing.T, sub pkgif.Subscription) {
	t.Helper()
	select {
	case m := <-sub.Messages():
		t.Fatalf("意外收到消息: %q", m.Data)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestNode_TwoNodes 测试 A 监听、B 拨号、B 订阅、A 发布
func TestNode_TwoNodes(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t, WithListenAddrs(), WithPeers(addrOf(t, a)))

	sub, err := b.Subscribe("room")
	require.NoError(t, err)
	waitTopicPeers(t, a, "room", 1)

	require.NoError(t, a.Publish(context.Background(), "room", []byte("hi")))
	m := nextMessage(t, sub)
	assert.Equal(t, "hi", string(m.Data))
	assert.Equal(t, a.ID(), m.From)
	noMessage(t, sub)

	require.Len(t, a.Conns(), 1)
	assert.Equal(t, types.DirInbound, a.Conns()[0].Direction)

	t.Log("✅ 两节点场景正确")
}

// TestNode_RelayThroughHub 测试 B、C 只连接 A，C 发布，B 经 A 收到
func TestNode_RelayThroughHub(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t, WithListenAddrs(), WithPeers(addrOf(t, a)))
	c := newTestNode(t, WithListenAddrs(), WithPeers(addrOf(t, a)))

	subB, err := b.Subscribe("room")
	require.NoError(t, err)
	subC, err := c.Subscribe("room")
	require.NoError(t, err)
	waitTopicPeers(t, a, "room", 2)

	require.NoError(t, c.Publish(context.Background(), "room", []byte("via hub")))
	m := nextMessage(t, subB)
	assert.Equal(t, "via hub", string(m.Data))
	assert.Equal(t, c.ID(), m.From)
	noMessage(t, subB)
	noMessage(t, subC)

	t.Log("✅ 中心转发场景正确")
}

// TestNode_Hello 测试仅注册 hello 时拨号方收到问候后结束
func TestNode_Hello(t *testing.T) {
	a := newTestNode(t, WithProtocols(config.ProtocolHello))

	got := make(chan string, 1)
	b := newTestNode(t,
		WithProtocols(config.ProtocolHello),
		WithListenAddrs(),
		WithPeers(addrOf(t, a)),
		OnGreeting(func(_ types.ConnInfo, g []byte) { got <- string(g) }),
	)
	assert.Nil(t, b.PubSub())
	_, err := b.Subscribe("room")
	assert.ErrorIs(t, err, ErrPubSubDisabled)

	select {
	case g := <-got:
		assert.Equal(t, "hello world", g)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到问候")
	}

	// 任务结束后连接空闲关闭，拨号方的 Swarm 没有剩余工作
	select {
	case <-b.Done():
		assert.NoError(t, b.Err())
	case <-time.After(5 * time.Second):
		t.Fatal("拨号方未结束")
	}

	t.Log("✅ hello 场景正确")
}

// TestNode_Identify 测试 identify 优先时双方交换身份
func TestNode_Identify(t *testing.T) {
	seen := make(chan identify.Info, 2)
	cb := OnIdentify(func(_ types.ConnInfo, info identify.Info) { seen <- info })

	a := newTestNode(t, WithProtocols(config.ProtocolIdentify, config.ProtocolFloodSub), cb)
	b := newTestNode(t, WithProtocols(config.ProtocolIdentify, config.ProtocolFloodSub), cb,
		WithListenAddrs(), WithPeers(addrOf(t, a)))

	ids := map[types.PeerID]bool{}
	for i := 0; i < 2; i++ {
		select {
		case info := <-seen:
			ids[info.PeerID] = true
			assert.Contains(t, info.Protocols, identify.ProtocolID)
		case <-time.After(5 * time.Second):
			t.Fatal("未完成身份交换")
		}
	}
	assert.True(t, ids[a.ID()])
	assert.True(t, ids[b.ID()])

	// 双方都读到对端信息后连接才关闭
	select {
	case <-b.Done():
		assert.NoError(t, b.Err())
	case <-time.After(5 * time.Second):
		t.Fatal("拨号方未结束")
	}

	t.Log("✅ identify 场景正确")
}

// TestNode_Lifecycle 测试启动与关闭
func TestNode_Lifecycle(t *testing.T) {
	n, err := New(WithConfig(config.NewTestConfig()))
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	assert.ErrorIs(t, n.Start(context.Background()), ErrAlreadyStarted)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.ErrorIs(t, n.Start(context.Background()), ErrNodeClosed)

	select {
	case <-n.Done():
	default:
		t.Fatal("关闭后 Swarm 仍在运行")
	}

	_, err = New(WithProtocols("gossipsub"))
	assert.Error(t, err)

	t.Log("✅ 生命周期正确")
}

// TestNode_CloseRightAfterStart 测试启动后立即关闭不视为异常退出
func TestNode_CloseRightAfterStart(t *testing.T) {
	for i := 0; i < 5; i++ {
		n, err := New(WithConfig(config.NewTestConfig()))
		require.NoError(t, err)
		require.NoError(t, n.Start(context.Background()))
		require.NoError(t, n.Close())

		select {
		case <-n.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("关闭后 Swarm 未退出")
		}
		assert.NoError(t, n.Err())
	}

	t.Log("✅ 立即关闭为正常退出")
}

// TestNode_ListenSeveralAddrs 测试多个监听地址共用一个入站序列
func TestNode_ListenSeveralAddrs(t *testing.T) {
	a := newTestNode(t, WithListenAddrs("/ip4/127.0.0.1/tcp/0", "/ip4/127.0.0.1/tcp/0"))

	bound := a.ListenAddrs()
	require.Len(t, bound, 2)
	for _, addr := range bound {
		port, ok := addr.Port()
		require.True(t, ok)
		assert.NotZero(t, port)
	}
	assert.False(t, bound[0].Equal(bound[1]))

	full := a.FullAddrs()
	require.Len(t, full, 2)
	for _, addr := range full {
		newTestNode(t, WithListenAddrs(), WithPeers(addr.String()))
	}
	require.Eventually(t, func() bool {
		return len(a.Conns()) == 2
	}, 5*time.Second, 20*time.Millisecond)

	t.Log("✅ 两个监听地址均可接入")
}
