package floodsub

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// 确保实现了接口
var _ pkgif.Subscription = (*Subscription)(nil)

// Subscription 主题订阅
type Subscription struct {
	ps    *PubSub
	topic string
	ch    chan *pkgif.Message
	once  sync.Once
}

func newSubscription(ps *PubSub, topic string, buf int) *Subscription {
	return &Subscription{
		ps:    ps,
		topic: topic,
		ch:    make(chan *pkgif.Message, buf),
	}
}

// Topic 返回主题
func (s *Subscription) Topic() string {
	return s.topic
}

// Messages 返回消息通道，取消订阅后关闭
func (s *Subscription) Messages() <-chan *pkgif.Message {
	return s.ch
}

// Next 等待下一条消息
func (s *Subscription) Next(ctx context.Context) (*pkgif.Message, error) {
	select {
	case m, ok := <-s.ch:
		if !ok {
			return nil, ErrSubscriptionCancelled
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel 取消订阅并广播
func (s *Subscription) Cancel() {
	s.ps.cancelSubscription(s)
}

// close 仅由事件循环调用
func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}
