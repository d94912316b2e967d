package floodsub

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// peer 一条 floodsub 流
type peer struct {
	info   types.ConnInfo
	stream pkgif.MuxedStream
	out    chan []byte

	// topics 对端声明的兴趣，仅由事件循环访问
	topics map[string]struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newPeer(info types.ConnInfo, s pkgif.MuxedStream, queue int) *peer {
	return &peer{
		info:   info,
		stream: s,
		out:    make(chan []byte, queue),
		topics: make(map[string]struct{}),
		closed: make(chan struct{}),
	}
}

// close 重置流，读写两侧随之结束
func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		_ = p.stream.Reset()
	})
}

func (p *peer) interested(topics []string) bool {
	for _, t := range topics {
		if _, ok := p.topics[t]; ok {
			return true
		}
	}
	return false
}

func (p *peer) topicList() []string {
	out := make([]string, 0, len(p.topics))
	for t := range p.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// writeLoop 顺序写出发送队列
func (p *peer) writeLoop() {
	for {
		select {
		case frame := <-p.out:
			if _, err := p.stream.Write(frame); err != nil {
				logger.Debug("写入对端失败", "conn", p.info.ID.String(), "error", err)
				p.close()
				return
			}
		case <-p.closed:
			return
		}
	}
}

// servePeer 对端任务：登记对端，读取帧直至流结束
func (ps *PubSub) servePeer(ctx context.Context, p *peer) error {
	if err := ps.do(ctx, func() { ps.addPeer(p) }); err != nil {
		p.close()
		return err
	}
	go p.writeLoop()

	stop := context.AfterFunc(ctx, p.close)
	defer stop()
	defer func() {
		// 服务关闭时循环已清理所有对端
		_ = ps.do(context.Background(), func() { ps.removePeer(p) })
		p.close()
	}()

	br := bufio.NewReader(p.stream)
	for {
		r, err := readRPC(br, ps.cfg.MaxMessageSize)
		if err != nil {
			var fe *frameError
			if errors.As(err, &fe) {
				ps.stats.malformed.Add(1)
				logger.Debug("丢弃格式错误的帧", "conn", p.info.ID.String(), "error", err)
				continue
			}
			select {
			case <-p.closed:
				return nil
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, types.ErrConnectionClosed) {
				return nil
			}
			return err
		}
		if r.empty() {
			continue
		}

		select {
		case ps.incoming <- peerRPC{peer: p, rpc: r}:
		case <-p.closed:
			return nil
		case <-ps.ctx.Done():
			return nil
		}
	}
}
