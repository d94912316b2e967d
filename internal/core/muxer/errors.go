package muxer

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-yamux/v5"

	"github.com/dep2p/go-floodnet/pkg/types"
)

var (
	// ErrStreamReset 流被重置错误
	ErrStreamReset = errors.New("stream reset")

	// ErrStreamLimit dummy 连接只有一个流
	ErrStreamLimit = errors.New("stream limit reached")

	// ErrUnknownMuxer 未知的多路复用器
	ErrUnknownMuxer = errors.New("unknown muxer")
)

// parseError 转换 yamux 错误为标准错误
//
// 会话关闭导致的错误统一为 types.ErrConnectionClosed。
func parseError(err error, sessionClosed bool) error {
	if err == nil {
		return nil
	}

	// 会话关闭（本地或远端 GoAway）
	if errors.Is(err, yamux.ErrSessionShutdown) || errors.Is(err, yamux.ErrRemoteGoAway) || sessionClosed {
		if errors.Is(err, types.ErrConnectionClosed) {
			return err
		}
		return fmt.Errorf("%w: %w", types.ErrConnectionClosed, err)
	}

	// 检查流重置错误
	if errors.Is(err, yamux.ErrStreamReset) {
		return fmt.Errorf("%w: %w", ErrStreamReset, err)
	}

	// 返回原始错误
	return err
}
