package interfaces

import (
	"context"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// Message 发布订阅消息
type Message struct {
	// From 原始发布者
	From types.PeerID

	// Seqno 发布者本地单调递增序号
	Seqno uint64

	// Topics 消息所属主题
	Topics []string

	// Data 负载
	Data []byte

	// ReceivedFrom 直接转发给本节点的连接（本地发布时为空）
	ReceivedFrom types.ConnID
}

// Subscription 主题订阅
type Subscription interface {
	// Topic 返回订阅的主题
	Topic() string

	// Next 阻塞等待下一条消息
	Next(ctx context.Context) (*Message, error)

	// Messages 返回消息通道，取消订阅后关闭
	Messages() <-chan *Message

	// Cancel 取消订阅
	Cancel()
}

// PubSub 发布订阅服务
type PubSub interface {
	// Subscribe 订阅主题（幂等），并向所有对端广播
	Subscribe(topic string) (Subscription, error)

	// Unsubscribe 取消订阅主题，并向所有对端广播
	Unsubscribe(topic string) error

	// Publish 发布消息
	Publish(ctx context.Context, topic string, data []byte) error

	// Topics 返回本地已订阅主题
	Topics() []string

	// Close 关闭服务
	Close() error
}
