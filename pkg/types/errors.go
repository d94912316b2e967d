package types

import "errors"

// ============================================================================
//                              传输层错误
// ============================================================================

var (
	// ErrUnsupported 地址不被任何传输支持
	ErrUnsupported = errors.New("address not supported by transport")

	// ErrBind 监听地址绑定失败
	ErrBind = errors.New("bind failed")

	// ErrConnectionRefused 远端拒绝连接
	ErrConnectionRefused = errors.New("connection refused")

	// ErrTimeout 操作超时
	ErrTimeout = errors.New("operation timed out")

	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("connection closed")
)

// ============================================================================
//                              协议层错误
// ============================================================================

var (
	// ErrNoCommonProtocol 协商双方没有共同支持的协议
	ErrNoCommonProtocol = errors.New("no common protocol")

	// ErrMalformed 收到格式错误的帧
	ErrMalformed = errors.New("malformed frame")
)

// ============================================================================
//                              ID / 地址错误
// ============================================================================

var (
	// ErrInvalidAddress 地址格式无效
	ErrInvalidAddress = errors.New("invalid address")

	// ErrNoPort 地址中没有端口段
	ErrNoPort = errors.New("address has no port segment")

	// ErrEmptyPeerID 空节点 ID
	ErrEmptyPeerID = errors.New("empty peer ID")

	// ErrInvalidPeerID 无效的节点 ID
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrEmptyProtocolID 空协议 ID
	ErrEmptyProtocolID = errors.New("empty protocol ID")
)
