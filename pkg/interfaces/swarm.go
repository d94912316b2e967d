package interfaces

import (
	"context"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// Task 处理器返回的长期任务，由 Swarm 驱动直至完成
type Task func(ctx context.Context) error

// Handler 用户处理器
//
// 每个升级成功的流调用一次，返回的 Task 以连接 ID 为键登记到任务注册表。
// 返回 nil 表示无需后续任务。
type Handler interface {
	Handle(out UpgradeOutput, remote types.Address) Task
}

// HandlerFunc 函数适配器
type HandlerFunc func(out UpgradeOutput, remote types.Address) Task

// Handle 实现 Handler
func (f HandlerFunc) Handle(out UpgradeOutput, remote types.Address) Task {
	return f(out, remote)
}

// Swarm 连接群
type Swarm interface {
	// ListenOn 开始监听，返回实际地址
	ListenOn(addr types.Address) (types.Address, error)

	// Dial 发起拨号，立即返回拨号标识；结果以事件形式上报
	Dial(addr types.Address) (types.DialID, error)

	// Run 驱动所有监听、拨号与任务，直至全部完成或出现致命错误
	Run(ctx context.Context) error

	// ListenAddrs 返回已监听地址
	ListenAddrs() []types.Address

	// Close 关闭所有监听器和连接
	Close() error
}
