package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	"github.com/dep2p/go-floodnet/internal/protocol/floodsub"
)

// Params 指标服务依赖参数
type Params struct {
	fx.In

	LC         fx.Lifecycle
	Metrics    *Metrics
	UnifiedCfg *config.Config   `optional:"true"`
	PubSub     *floodsub.PubSub `optional:"true"`
}

// Module 返回 Fx 模块
//
// 仅在 metrics.enable 为 true 时装配。
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(
			New,
			func(m *Metrics) swarm.Metrics { return m },
			func(m *Metrics) upgrader.StateObserver { return m.ObserveUpgrade },
		),
		fx.Invoke(Start),
	)
}

// Start 导出发布订阅统计，配置了地址时启动 HTTP 服务
func Start(p Params) error {
	if p.PubSub != nil {
		if err := p.Metrics.RegisterPubSub(p.PubSub.Stats); err != nil {
			return err
		}
	}
	if p.UnifiedCfg == nil || p.UnifiedCfg.Metrics.ListenAddr == "" {
		return nil
	}

	srv := NewServer(p.UnifiedCfg.Metrics.ListenAddr, p.Metrics)
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Close(ctx)
		},
	})
	return nil
}
