package floodsub

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/internal/core/identity"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// pipeStream 把 net.Conn 适配为 MuxedStream
type pipeStream struct {
	net.Conn
}

func (p pipeStream) CloseWrite() error { return p.Conn.Close() }
func (p pipeStream) Reset() error      { return p.Conn.Close() }

var _ pkgif.MuxedStream = pipeStream{}

// testNet 测试网络，跟踪所有对端任务
type testNet struct {
	t  *testing.T
	wg sync.WaitGroup
}

func newTestNet(t *testing.T) *testNet {
	n := &testNet{t: t}
	t.Cleanup(n.wg.Wait)
	return n
}

// node 创建节点，测试结束时关闭
func (n *testNet) node(opts ...Option) *PubSub {
	n.t.Helper()
	id, err := identity.Generate()
	require.NoError(n.t, err)
	ps, err := New(id.PeerID(), opts...)
	require.NoError(n.t, err)
	n.t.Cleanup(func() { _ = ps.Close() })
	return ps
}

// run 在后台运行升级产物的任务
func (n *testNet) run(out pkgif.UpgradeOutput) {
	task := out.(*Output).Task()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		_ = task(context.Background())
	}()
}

// connect 用内存管道连接两个节点，a 为拨号方
func (n *testNet) connect(a, b *PubSub) {
	n.t.Helper()
	ca, cb := net.Pipe()
	outA, err := a.Protocol().Upgrade(context.Background(), pipeStream{ca}, types.ConnInfo{ID: types.NewConnID(), Direction: types.DirOutbound})
	require.NoError(n.t, err)
	outB, err := b.Protocol().Upgrade(context.Background(), pipeStream{cb}, types.ConnInfo{ID: types.NewConnID(), Direction: types.DirInbound})
	require.NoError(n.t, err)
	n.run(outA)
	n.run(outB)
}

// attachRaw 把节点连到一个由测试直接读写的管道端
func (n *testNet) attachRaw(ps *PubSub) net.Conn {
	n.t.Helper()
	local, remote := net.Pipe()
	out, err := ps.Protocol().Upgrade(context.Background(), pipeStream{local}, types.ConnInfo{ID: types.NewConnID(), Direction: types.DirInbound})
	require.NoError(n.t, err)
	n.run(out)
	n.t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func waitPeers(t *testing.T, ps *PubSub, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return ps.Stats().Peers == want }, 5*time.Second, 10*time.Millisecond)
}

func waitPeerTopic(t *testing.T, ps *PubSub, topic string, peers int) {
	t.Helper()
	require.Eventually(t, func() bool {
		n := 0
		for _, topics := range ps.PeerTopics() {
			for _, x := range topics {
				if x == topic {
					n++
				}
			}
		}
		return n == peers
	}, 5*time.Second, 10*time.Millisecond)
}

// expectMessage 等待一条消息
func expectMessage(t *testing.T, sub pkgif.Subscription) *pkgif.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := sub.Next(ctx)
	require.NoError(t, err)
	return m
}

// expectNoMessage 确认一段时间内没有消息
func expectNoMessage(t *testing.T, sub pkgif.Subscription) {
	t.Helper()
	select {
	case m, ok := <-sub.Messages():
		if ok {
			t.Fatalf("意外收到消息: %q", m.Data)
		}
	case <-time.After(200 * time.Millisecond):
	}
}
