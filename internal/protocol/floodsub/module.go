package floodsub

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// Params floodsub 依赖参数
type Params struct {
	fx.In

	LC         fx.Lifecycle
	LocalPeer  types.PeerID
	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("floodsub",
		fx.Provide(
			ProvidePubSub,
			func(ps *PubSub) pkgif.PubSub { return ps },
		),
		fx.Invoke(func(u *upgrader.Upgrader, ps *PubSub) error {
			return u.Register(ps.Protocol())
		}),
	)
}

// ProvidePubSub 提供 PubSub（依赖注入）
func ProvidePubSub(p Params) (*PubSub, error) {
	ps, err := New(p.LocalPeer, WithConfig(ConfigFromUnified(p.UnifiedCfg)))
	if err != nil {
		return nil, err
	}
	p.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}
