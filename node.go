package floodnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/identity"
	"github.com/dep2p/go-floodnet/internal/core/metrics"
	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	"github.com/dep2p/go-floodnet/internal/protocol/floodsub"
	"github.com/dep2p/go-floodnet/internal/util/addrutil"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// stopTimeout 关闭 Fx 应用的超时
const stopTimeout = 10 * time.Second

// Node floodnet 节点
type Node struct {
	opts *options
	app  *fx.App

	// 由 Fx 注入
	id       *identity.Identity
	swarm    *swarm.Swarm
	upgrader *upgrader.Upgrader
	pubsub   *floodsub.PubSub
	metrics  *metrics.Metrics

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New 创建节点
//
// 创建节点但不启动，需要调用 Start() 启动。
func New(opts ...Option) (*Node, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	n := &Node{opts: o, done: make(chan struct{})}
	app, err := buildFxApp(o, n)
	if err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	n.app = app
	return n, nil
}

// Start 启动节点
//
// 依次启动 Fx 应用、监听配置的地址、拨号配置的对端，然后在后台运行 Swarm。
// Swarm 结束后 Done 关闭。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return ErrNodeClosed
	}
	if n.started {
		return ErrAlreadyStarted
	}

	if err := n.app.Start(ctx); err != nil {
		logger.Error("节点初始化失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}

	cfg := n.opts.config
	if err := n.listenAndDial(cfg); err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = n.app.Stop(stopCtx)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.started = true
	go func() {
		err := n.swarm.Run(runCtx)
		// Close 可能先于 Run 关闭 Swarm，属于正常退出
		if errors.Is(err, swarm.ErrSwarmClosed) {
			err = nil
		}
		n.mu.Lock()
		n.runErr = err
		n.mu.Unlock()
		if err != nil {
			logger.Error("连接群异常退出", "error", err)
		}
		close(n.done)
	}()

	logger.Info("节点启动成功", "peer", n.id.PeerID().ShortString(), "protocols", types.ProtocolStrings(n.upgrader.Protocols()))
	return nil
}

func (n *Node) listenAndDial(cfg *config.Config) error {
	addrs := make([]types.Address, 0, len(cfg.Swarm.ListenAddrs))
	for _, s := range cfg.Swarm.ListenAddrs {
		addr, err := types.ParseAddress(s)
		if err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}
	bound, err := n.swarm.ListenOnAll(addrs...)
	if err != nil {
		logger.Error("监听地址失败", "addrs", cfg.Swarm.ListenAddrs, "error", err)
		return fmt.Errorf("listen failed: %w", err)
	}
	for _, a := range bound {
		logger.Info("监听地址成功", "addr", a.String())
	}
	for _, s := range cfg.Swarm.Peers {
		if _, err := n.Dial(s); err != nil {
			return err
		}
	}
	return nil
}

// ID 返回节点 ID
func (n *Node) ID() types.PeerID {
	return n.id.PeerID()
}

// Identity 返回节点身份
func (n *Node) Identity() *identity.Identity {
	return n.id
}

// Config 返回节点配置
func (n *Node) Config() *config.Config {
	return n.opts.config
}

// ListenAddrs 返回实际监听地址
func (n *Node) ListenAddrs() []types.Address {
	return n.swarm.ListenAddrs()
}

// FullAddrs 返回可分享的完整地址（带 /p2p/<PeerID>），公网地址在前
func (n *Node) FullAddrs() []types.Address {
	addrs := addrutil.SortForSharing(n.swarm.ListenAddrs())
	out := make([]types.Address, 0, len(addrs))
	for _, a := range addrs {
		full, err := addrutil.BuildFullAddr(a, n.ID())
		if err != nil {
			logger.Debug("构建完整地址失败", "addr", a.String(), "error", err)
			continue
		}
		out = append(out, full)
	}
	return out
}

// Dial 拨号对端，结果以 Swarm 事件上报
//
// addr 可以带 /p2p/<PeerID> 后缀，拨号时剥离。
func (n *Node) Dial(addr string) (types.DialID, error) {
	a, err := types.ParseAddress(addr)
	if err != nil {
		return "", err
	}
	peer, dialAddr, err := addrutil.SplitDialAddr(a)
	if err != nil {
		return "", err
	}
	id, err := n.swarm.Dial(dialAddr)
	if err != nil {
		return "", err
	}
	logger.Debug("发起拨号", "addr", dialAddr.String(), "peer", peer.ShortString(), "dial", id.String())
	return id, nil
}

// Conns 返回当前连接
func (n *Node) Conns() []types.ConnInfo {
	return n.swarm.Conns()
}

// Events 返回 Swarm 事件通道；Swarm 结束后关闭
func (n *Node) Events() <-chan swarm.Event {
	return n.swarm.Events()
}

// Swarm 返回连接群
func (n *Node) Swarm() *swarm.Swarm {
	return n.swarm
}

// PubSub 返回发布订阅服务；未注册 floodsub 时为 nil
func (n *Node) PubSub() *floodsub.PubSub {
	return n.pubsub
}

// Metrics 返回指标集合；未启用时为 nil
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Subscribe 订阅主题
func (n *Node) Subscribe(topic string) (pkgif.Subscription, error) {
	if n.pubsub == nil {
		return nil, ErrPubSubDisabled
	}
	return n.pubsub.Subscribe(topic)
}

// Publish 发布消息
func (n *Node) Publish(ctx context.Context, topic string, data []byte) error {
	if n.pubsub == nil {
		return ErrPubSubDisabled
	}
	return n.pubsub.Publish(ctx, topic, data)
}

// Done 在 Swarm 结束后关闭
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err 返回 Swarm 的结束错误
func (n *Node) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.runErr
}

// Close 关闭节点
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	started := n.started
	cancel := n.cancel
	n.mu.Unlock()

	if !started {
		return nil
	}

	ctx, stop := context.WithTimeout(context.Background(), stopTimeout)
	defer stop()
	err := n.app.Stop(ctx)
	cancel()

	select {
	case <-n.done:
	case <-ctx.Done():
		logger.Warn("等待连接群退出超时")
	}
	logger.Info("节点已关闭")
	return err
}
