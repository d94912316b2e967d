package floodnet

import (
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/identity"
	"github.com/dep2p/go-floodnet/internal/core/metrics"
	"github.com/dep2p/go-floodnet/internal/core/muxer"
	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/core/transport"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	"github.com/dep2p/go-floodnet/internal/protocol/floodsub"
	"github.com/dep2p/go-floodnet/internal/protocol/hello"
	"github.com/dep2p/go-floodnet/internal/protocol/identify"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

var logger = log.Logger("floodnet")

// nodeParams 注入到 Node 的组件
type nodeParams struct {
	fx.In

	Identity *identity.Identity
	Swarm    *swarm.Swarm
	Upgrader *upgrader.Upgrader
	PubSub   *floodsub.PubSub `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序：
//  1. Core: Identity → Transport → Muxer → Upgrader → Swarm
//  2. Protocol: 按 upgrader.protocols 顺序注册
//  3. Metrics（metrics.enable 时）
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	cfg := o.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),

		identity.Module(),
		transport.Module(),
		muxer.Module(),
		upgrader.Module(),
		swarm.Module(),

		fx.Provide(func() pkgif.Handler {
			return &dispatcher{onIdentify: o.onIdentify}
		}),
	}

	for _, name := range cfg.Upgrader.Protocols {
		switch name {
		case config.ProtocolFloodSub:
			modules = append(modules, floodsub.Module())
		case config.ProtocolIdentify:
			modules = append(modules, identify.Module())
		case config.ProtocolHello:
			if o.onGreeting != nil {
				f := hello.GreetingFunc(o.onGreeting)
				modules = append(modules, fx.Provide(func() hello.GreetingFunc { return f }))
			}
			modules = append(modules, hello.Module())
		}
	}

	if cfg.Metrics.Enable {
		modules = append(modules, metrics.Module())
	}

	modules = append(modules, o.fxOptions...)

	modules = append(modules,
		fx.Invoke(func(p nodeParams) {
			node.id = p.Identity
			node.swarm = p.Swarm
			node.upgrader = p.Upgrader
			node.pubsub = p.PubSub
			node.metrics = p.Metrics
		}),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, err
	}
	return app, nil
}
