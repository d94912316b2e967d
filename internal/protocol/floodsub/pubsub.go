package floodsub

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("protocol/floodsub")

// ProtocolID floodsub 协议标识
const ProtocolID types.ProtocolID = "/floodsub/1.0.0"

// 确保实现了接口
var _ pkgif.PubSub = (*PubSub)(nil)

// Stats 运行统计
type Stats struct {
	Published    uint64
	Delivered    uint64
	Relayed      uint64
	Duplicates   uint64
	Malformed    uint64
	DroppedPeers uint64
	Peers        int
	Topics       int
}

type counters struct {
	published    atomic.Uint64
	delivered    atomic.Uint64
	relayed      atomic.Uint64
	duplicates   atomic.Uint64
	malformed    atomic.Uint64
	droppedPeers atomic.Uint64
	peers        atomic.Int64
	topics       atomic.Int64
}

// PubSub flood 发布订阅
//
// 订阅表、对端集合、序号与已见缓存只由事件循环 goroutine 访问；
// API 调用与对端帧以消息形式送入循环。
type PubSub struct {
	local types.PeerID
	cfg   Config
	clock clock.Clock

	eval     chan func()
	incoming chan peerRPC

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	// 以下仅由事件循环访问
	seqno  uint64
	topics map[string]*Subscription
	peers  map[*peer]struct{}
	seen   *seenCache

	stats counters
}

type peerRPC struct {
	peer *peer
	rpc  *rpc
}

// New 创建发布订阅服务并启动事件循环
func New(local types.PeerID, opts ...Option) (*PubSub, error) {
	if err := local.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ps := &PubSub{
		local:    local,
		cfg:      DefaultConfig(),
		clock:    clock.New(),
		eval:     make(chan func()),
		incoming: make(chan peerRPC),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		topics:   make(map[string]*Subscription),
		peers:    make(map[*peer]struct{}),
	}
	for _, opt := range opts {
		if err := opt(ps); err != nil {
			cancel()
			return nil, err
		}
	}
	ps.seen = newSeenCache(ps.cfg.SeenMaxEntries, ps.cfg.SeenTTL)
	// 与 libp2p 一致，以当前时间作为序号起点
	ps.seqno = uint64(ps.clock.Now().UnixNano())

	go ps.run()
	logger.Info("floodsub 已启动", "peer", local.ShortString(), "filtered", ps.cfg.FilteredFlood)
	return ps, nil
}

// LocalPeer 返回本地节点 ID
func (ps *PubSub) LocalPeer() types.PeerID {
	return ps.local
}

func (ps *PubSub) run() {
	defer close(ps.done)

	ticker := ps.clock.Ticker(ps.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-ps.eval:
			f()
		case m := <-ps.incoming:
			ps.handleRPC(m.peer, m.rpc)
		case <-ticker.C:
			ps.heartbeat()
		case <-ps.ctx.Done():
			for _, sub := range ps.topics {
				sub.close()
			}
			ps.topics = nil
			for p := range ps.peers {
				p.close()
			}
			ps.peers = nil
			return
		}
	}
}

// do 在事件循环中同步执行 f
func (ps *PubSub) do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	select {
	case ps.eval <- func() { f(); close(finished) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-ps.ctx.Done():
		return ErrClosed
	}
	<-finished
	return nil
}

// Subscribe 订阅主题
//
// 幂等：重复订阅返回同一个 Subscription，但每次都向所有对端重新广播。
func (ps *PubSub) Subscribe(topic string) (pkgif.Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	var sub *Subscription
	err := ps.do(context.Background(), func() {
		sub = ps.topics[topic]
		if sub == nil {
			sub = newSubscription(ps, topic, ps.cfg.SubscriptionBuffer)
			ps.topics[topic] = sub
			ps.stats.topics.Store(int64(len(ps.topics)))
			logger.Info("订阅主题", "topic", topic)
		}
		ps.broadcast(&rpc{subs: []subOpt{{subscribe: true, topic: topic}}})
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe 取消订阅并向所有对端广播
func (ps *PubSub) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrEmptyTopic
	}
	var found bool
	err := ps.do(context.Background(), func() {
		sub := ps.topics[topic]
		if sub == nil {
			return
		}
		found = true
		ps.removeSubscription(sub)
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, topic)
	}
	return nil
}

// cancelSubscription Subscription.Cancel 调用，只移除仍处于活动状态的同一订阅
func (ps *PubSub) cancelSubscription(sub *Subscription) {
	_ = ps.do(context.Background(), func() {
		if ps.topics[sub.topic] == sub {
			ps.removeSubscription(sub)
		}
	})
}

func (ps *PubSub) removeSubscription(sub *Subscription) {
	delete(ps.topics, sub.topic)
	sub.close()
	ps.stats.topics.Store(int64(len(ps.topics)))
	ps.broadcast(&rpc{subs: []subOpt{{subscribe: false, topic: sub.topic}}})
	logger.Info("取消订阅主题", "topic", sub.topic)
}

// Topics 返回本地已订阅主题
func (ps *PubSub) Topics() []string {
	var out []string
	_ = ps.do(context.Background(), func() {
		out = ps.topicList()
	})
	return out
}

func (ps *PubSub) topicList() []string {
	out := make([]string, 0, len(ps.topics))
	for t := range ps.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PeerTopics 返回各对端声明的主题兴趣，键为连接 ID
func (ps *PubSub) PeerTopics() map[types.ConnID][]string {
	out := make(map[types.ConnID][]string)
	_ = ps.do(context.Background(), func() {
		for p := range ps.peers {
			out[p.info.ID] = p.topicList()
		}
	})
	return out
}

// Publish 发布消息到单个主题
func (ps *PubSub) Publish(ctx context.Context, topic string, data []byte) error {
	return ps.PublishTopics(ctx, []string{topic}, data)
}

// PublishTopics 发布消息到多个主题
//
// 本地不接收自己发布的消息。
func (ps *PubSub) PublishTopics(ctx context.Context, topics []string, data []byte) error {
	if len(topics) == 0 {
		return ErrEmptyTopic
	}
	for _, t := range topics {
		if t == "" {
			return ErrEmptyTopic
		}
	}
	if len(data) > ps.cfg.MaxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), ps.cfg.MaxMessageSize)
	}

	payload := append([]byte(nil), data...)
	topics = append([]string(nil), topics...)
	return ps.do(ctx, func() {
		ps.seqno++
		m := &wireMessage{
			from:   ps.local.Bytes(),
			data:   payload,
			seqno:  encodeSeqno(ps.seqno),
			topics: topics,
		}
		ps.seen.visit(messageID(m.from, ps.seqno, m.data, m.topics))
		sent := ps.forward(m, nil)
		ps.stats.published.Add(1)
		logger.Debug("发布消息", "topics", topics, "seqno", ps.seqno, "size", len(payload), "peers", sent)
	})
}

// Stats 返回统计快照
func (ps *PubSub) Stats() Stats {
	return Stats{
		Published:    ps.stats.published.Load(),
		Delivered:    ps.stats.delivered.Load(),
		Relayed:      ps.stats.relayed.Load(),
		Duplicates:   ps.stats.duplicates.Load(),
		Malformed:    ps.stats.malformed.Load(),
		DroppedPeers: ps.stats.droppedPeers.Load(),
		Peers:        int(ps.stats.peers.Load()),
		Topics:       int(ps.stats.topics.Load()),
	}
}

// Close 关闭服务，关闭所有订阅并重置所有对端流
func (ps *PubSub) Close() error {
	ps.closeOnce.Do(func() {
		ps.cancel()
		<-ps.done
		logger.Info("floodsub 已关闭")
	})
	return nil
}

// broadcast 向所有对端发送（订阅变更不受过滤策略影响）
func (ps *PubSub) broadcast(r *rpc) {
	if len(ps.peers) == 0 {
		return
	}
	frame := appendFrame(nil, r)
	for p := range ps.peers {
		ps.send(p, frame)
	}
}

// forward 转发消息给除 from 外的对端，返回发送数
func (ps *PubSub) forward(m *wireMessage, from *peer) int {
	var frame []byte
	n := 0
	for p := range ps.peers {
		if p == from {
			continue
		}
		if ps.cfg.FilteredFlood && !p.interested(m.topics) {
			continue
		}
		if frame == nil {
			frame = appendFrame(nil, &rpc{msgs: []*wireMessage{m}})
		}
		if ps.send(p, frame) {
			n++
		}
	}
	return n
}

// send 非阻塞入队；队列满时断开该对端
func (ps *PubSub) send(p *peer, frame []byte) bool {
	select {
	case p.out <- frame:
		return true
	default:
		logger.Warn("对端发送队列已满，断开", "conn", p.info.ID.String(), "remote", p.info.Remote.String())
		ps.stats.droppedPeers.Add(1)
		ps.removePeer(p)
		return false
	}
}

func (ps *PubSub) addPeer(p *peer) {
	ps.peers[p] = struct{}{}
	ps.stats.peers.Store(int64(len(ps.peers)))
	logger.Debug("对端加入", "conn", p.info.ID.String(), "remote", p.info.Remote.String())

	// 新对端先收到本地完整订阅集
	if len(ps.topics) == 0 {
		return
	}
	hello := &rpc{}
	for _, t := range ps.topicList() {
		hello.subs = append(hello.subs, subOpt{subscribe: true, topic: t})
	}
	ps.send(p, appendFrame(nil, hello))
}

func (ps *PubSub) removePeer(p *peer) {
	if _, ok := ps.peers[p]; !ok {
		return
	}
	delete(ps.peers, p)
	p.close()
	ps.stats.peers.Store(int64(len(ps.peers)))
	logger.Debug("对端离开", "conn", p.info.ID.String(), "remote", p.info.Remote.String())
}

// handleRPC 处理对端帧
func (ps *PubSub) handleRPC(p *peer, r *rpc) {
	if _, ok := ps.peers[p]; !ok {
		return
	}

	for _, s := range r.subs {
		if s.subscribe {
			p.topics[s.topic] = struct{}{}
		} else {
			delete(p.topics, s.topic)
		}
		logger.Debug("对端订阅变更", "conn", p.info.ID.String(), "topic", s.topic, "subscribe", s.subscribe)
	}

	for _, m := range r.msgs {
		ps.handleMessage(p, m)
	}
}

func (ps *PubSub) handleMessage(p *peer, m *wireMessage) {
	if len(m.topics) == 0 {
		ps.stats.malformed.Add(1)
		logger.Debug("丢弃无主题消息", "conn", p.info.ID.String())
		return
	}
	seqno, err := decodeSeqno(m.seqno)
	if err != nil {
		ps.stats.malformed.Add(1)
		logger.Debug("丢弃序号无效的消息", "conn", p.info.ID.String(), "error", err)
		return
	}
	var from types.PeerID
	if len(m.from) > 0 {
		if from, err = types.PeerIDFromBytes(m.from); err != nil {
			ps.stats.malformed.Add(1)
			logger.Debug("丢弃发布者无效的消息", "conn", p.info.ID.String(), "error", err)
			return
		}
	}

	if !ps.seen.visit(messageID(m.from, seqno, m.data, m.topics)) {
		ps.stats.duplicates.Add(1)
		return
	}

	msg := &pkgif.Message{
		From:         from,
		Seqno:        seqno,
		Topics:       m.topics,
		Data:         m.data,
		ReceivedFrom: p.info.ID,
	}
	ps.deliver(msg)

	relayed := ps.forward(m, p)
	ps.stats.relayed.Add(uint64(relayed))
}

// deliver 投递给本地订阅；订阅缓冲满时丢弃该条
func (ps *PubSub) deliver(msg *pkgif.Message) {
	var delivered map[*Subscription]struct{}
	for _, t := range msg.Topics {
		sub := ps.topics[t]
		if sub == nil {
			continue
		}
		if _, dup := delivered[sub]; dup {
			continue
		}
		if delivered == nil {
			delivered = make(map[*Subscription]struct{}, len(msg.Topics))
		}
		delivered[sub] = struct{}{}

		select {
		case sub.ch <- msg:
			ps.stats.delivered.Add(1)
		default:
			logger.Warn("订阅者处理过慢，丢弃消息", "topic", t, "from", msg.From.ShortString())
		}
	}
}

func (ps *PubSub) heartbeat() {
	st := ps.Stats()
	logger.Info("floodsub 心跳",
		"peers", st.Peers,
		"topics", st.Topics,
		"seen", ps.seen.len(),
		"published", st.Published,
		"delivered", st.Delivered,
		"relayed", st.Relayed,
		"duplicates", st.Duplicates,
		"malformed", st.Malformed)
}
