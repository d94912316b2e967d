package interfaces

import (
	"context"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// UpgradeOutput 协议升级产物
//
// 具体类型由协商选中的协议决定（floodsub 任务、原始字节流、identify 信息等）。
type UpgradeOutput interface {
	Protocol() types.ProtocolID
}

// ProtocolHandler 流级协议处理器
//
// Upgrade 在协商选中本协议后调用，接管流上剩余的全部字节。
type ProtocolHandler interface {
	ID() types.ProtocolID
	Upgrade(ctx context.Context, s MuxedStream, info types.ConnInfo) (UpgradeOutput, error)
}

// Upgrader 流升级器
type Upgrader interface {
	// Upgrade 在流上协商协议并执行对应处理器
	//
	// info.Direction 为 DirInbound 时本地为监听方，其协议列表顺序优先。
	Upgrade(ctx context.Context, s MuxedStream, info types.ConnInfo) (UpgradeOutput, error)

	// Protocols 返回已注册协议（按注册顺序）
	Protocols() []types.ProtocolID
}
