package floodsub

import (
	"context"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// protocolHandler 注册到 Upgrader 的 floodsub 处理器
type protocolHandler struct {
	ps *PubSub
}

// Protocol 返回 floodsub 协议处理器
func (ps *PubSub) Protocol() pkgif.ProtocolHandler {
	return protocolHandler{ps: ps}
}

// ID 返回协议标识
func (h protocolHandler) ID() types.ProtocolID {
	return ProtocolID
}

// Upgrade 将协商后的流包装为对端任务
func (h protocolHandler) Upgrade(_ context.Context, s pkgif.MuxedStream, info types.ConnInfo) (pkgif.UpgradeOutput, error) {
	return &Output{
		ps:   h.ps,
		peer: newPeer(info, s, h.ps.cfg.PeerQueueSize),
	}, nil
}

// Output floodsub 升级产物
//
// Task 驱动对端读写直至流结束，必须交给 Swarm 运行。
type Output struct {
	ps   *PubSub
	peer *peer
}

// Protocol 实现 UpgradeOutput
func (o *Output) Protocol() types.ProtocolID {
	return ProtocolID
}

// Conn 返回连接信息
func (o *Output) Conn() types.ConnInfo {
	return o.peer.info
}

// Task 返回对端任务
func (o *Output) Task() pkgif.Task {
	return func(ctx context.Context) error {
		return o.ps.servePeer(ctx, o.peer)
	}
}
