package swarm

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-floodnet/pkg/types"
)

var (
	// ErrSwarmClosed Swarm 已关闭
	ErrSwarmClosed = errors.New("swarm closed")

	// ErrAlreadyRunning Run 已在运行
	ErrAlreadyRunning = errors.New("swarm already running")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNoMuxer 字节流连接没有可用的多路复用器
	ErrNoMuxer = errors.New("no stream multiplexer configured")

	// ErrStreamLimit 入站流超过上限
	ErrStreamLimit = errors.New("inbound stream limit reached")
)

// DialError 拨号错误
type DialError struct {
	ID   types.DialID
	Addr types.Address
	Err  error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("dial %s (%s): %v", e.Addr, e.ID, e.Err)
}

// Unwrap 返回底层错误
func (e *DialError) Unwrap() error {
	return e.Err
}

// ListenerError 监听器致命错误
type ListenerError struct {
	Addr types.Address
	Err  error
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %s: %v", e.Addr, e.Err)
}

// Unwrap 返回底层错误
func (e *ListenerError) Unwrap() error {
	return e.Err
}
