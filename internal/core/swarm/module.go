package swarm

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// Params Swarm 依赖参数
type Params struct {
	fx.In

	LC         fx.Lifecycle
	UnifiedCfg *config.Config `optional:"true"`

	Transport pkgif.Transport
	Muxers    []pkgif.Multiplexer
	Upgrader  *upgrader.Upgrader
	Handler   pkgif.Handler
	Metrics   Metrics `optional:"true"`
}

// Output Swarm 模块输出
type Output struct {
	fx.Out

	Swarm     *Swarm
	Interface pkgif.Swarm
}

// Module 返回 Fx 模块
//
// 监听与 Run 由上层在启动时驱动；停止时关闭 Swarm。
func Module() fx.Option {
	return fx.Module("swarm",
		fx.Provide(ProvideSwarm),
	)
}

// ProvideSwarm 提供 Swarm（依赖注入）
func ProvideSwarm(p Params) (Output, error) {
	s, err := New(p.Transport, p.Muxers, p.Upgrader, p.Handler,
		WithConfig(ConfigFromUnified(p.UnifiedCfg)),
		WithMetrics(p.Metrics),
	)
	if err != nil {
		return Output{}, err
	}

	p.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return Output{Swarm: s, Interface: s}, nil
}
