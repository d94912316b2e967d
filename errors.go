package floodnet

import "errors"

var (
	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("floodnet: node closed")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("floodnet: node already started")

	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("floodnet: node not started")

	// ErrPubSubDisabled 未注册 floodsub 协议
	ErrPubSubDisabled = errors.New("floodnet: floodsub not enabled")
)
