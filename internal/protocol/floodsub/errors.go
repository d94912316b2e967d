package floodsub

import "errors"

var (
	// ErrClosed 服务已关闭
	ErrClosed = errors.New("floodsub closed")

	// ErrEmptyTopic 主题为空
	ErrEmptyTopic = errors.New("empty topic")

	// ErrMessageTooLarge 消息超过上限
	ErrMessageTooLarge = errors.New("message too large")

	// ErrNotSubscribed 未订阅该主题
	ErrNotSubscribed = errors.New("not subscribed")

	// ErrSubscriptionCancelled 订阅已取消
	ErrSubscriptionCancelled = errors.New("subscription cancelled")

	// ErrQueueFull 对端发送队列已满
	ErrQueueFull = errors.New("peer send queue full")
)
