// Package transport 提供组合传输与按配置装配承载
//
// 组合传输按顺序持有多个承载：
//   - Dial 选择第一个 CanDial 接受地址的承载，不并发竞速
//   - Listen 选择第一个接受地址的承载
//   - ListenAll 将多个承载的监听器合并为一个入站序列
package transport

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/transport")

// 确保实现接口
var _ pkgif.Transport = (*Combinator)(nil)

// Combinator 组合传输
type Combinator struct {
	transports []pkgif.Transport
}

// NewCombinator 创建组合传输，ts 的顺序即尝试顺序
func NewCombinator(ts ...pkgif.Transport) *Combinator {
	return &Combinator{transports: ts}
}

// Transports 返回内部承载
func (c *Combinator) Transports() []pkgif.Transport {
	return c.transports
}

// TransportFor 返回第一个可处理地址的承载
func (c *Combinator) TransportFor(addr types.Address) (pkgif.Transport, bool) {
	for _, t := range c.transports {
		if t.CanDial(addr) {
			return t, true
		}
	}
	return nil, false
}

// CanDial 任一承载可处理即可
func (c *Combinator) CanDial(addr types.Address) bool {
	_, ok := c.TransportFor(addr)
	return ok
}

// Dial 使用第一个匹配的承载拨号
func (c *Combinator) Dial(ctx context.Context, raddr types.Address) (pkgif.Conn, error) {
	t, ok := c.TransportFor(raddr)
	if !ok {
		return nil, fmt.Errorf("%w: no transport for %s", types.ErrUnsupported, raddr)
	}
	logger.Debug("选择承载拨号", "addr", raddr.String(), "carrier", strings.Join(t.Protocols(), ","))
	return t.Dial(ctx, raddr)
}

// Listen 使用第一个匹配的承载监听
func (c *Combinator) Listen(laddr types.Address) (pkgif.Listener, error) {
	t, ok := c.TransportFor(laddr)
	if !ok {
		return nil, fmt.Errorf("%w: no transport for %s", types.ErrUnsupported, laddr)
	}
	return t.Listen(laddr)
}

// ListenAll 在多个地址上监听，合并为一个入站序列
//
// 任一地址监听失败时关闭已建立的监听器并返回错误。
func (c *Combinator) ListenAll(addrs ...types.Address) (*MergedListener, error) {
	ls := make([]pkgif.Listener, 0, len(addrs))
	for _, a := range addrs {
		l, err := c.Listen(a)
		if err != nil {
			for _, opened := range ls {
				_ = opened.Close()
			}
			return nil, err
		}
		ls = append(ls, l)
	}
	return NewMergedListener(ls...), nil
}

// Protocols 返回所有承载名称
func (c *Combinator) Protocols() []string {
	var out []string
	for _, t := range c.transports {
		out = append(out, t.Protocols()...)
	}
	return out
}

// Multiplexed 组合传输本身不保证原生多路复用，以实际连接为准
func (c *Combinator) Multiplexed() bool {
	return false
}

// Close 关闭所有承载
func (c *Combinator) Close() error {
	var err error
	for _, t := range c.transports {
		err = multierr.Append(err, t.Close())
	}
	return err
}
