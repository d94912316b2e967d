package upgrader

import (
	"github.com/dep2p/go-floodnet/pkg/types"
)

// State 单次协商的状态
type State int

const (
	// StateStart 初始
	StateStart State = iota
	// StateExchanging 正在交换协议列表
	StateExchanging
	// StateSelected 已选中协议
	StateSelected
	// StateRunning 协议处理器已接管流
	StateRunning
	// StateFailed 协商或处理器失败
	StateFailed
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateExchanging:
		return "exchanging"
	case StateSelected:
		return "selected"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateRunning || s == StateFailed
}

// StateObserver 状态变化回调
//
// protocol 仅在 Selected 和 Running 时非空。
type StateObserver func(info types.ConnInfo, state State, protocol types.ProtocolID)
