package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dep2p/go-floodnet/pkg/types"
)

var (
	// ErrTransportClosed 传输已关闭
	ErrTransportClosed = errors.New("transport closed")
)

// ClassifyDialError 将拨号错误归入统一错误分类
//
// 超时归为 ErrTimeout，其余网络失败（拒绝、不可达）归为 ErrConnectionRefused，
// 原始错误保留在链上。
func ClassifyDialError(addr types.Address, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrConnectionRefused) {
		return err
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: dial %s: %w", types.ErrTimeout, addr, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: dial %s: %w", types.ErrConnectionRefused, addr, err)
}

// BindError 包装监听错误
func BindError(addr types.Address, err error) error {
	return fmt.Errorf("%w: listen %s: %w", types.ErrBind, addr, err)
}
