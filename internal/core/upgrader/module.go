package upgrader

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// Params Upgrader 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Observer   StateObserver  `optional:"true"`
}

// Module 返回 Fx 模块
//
// 协议处理器由各协议模块在 fx.Invoke 中调用 Register 注册，
// Invoke 的声明顺序即本地偏好顺序。
func Module() fx.Option {
	return fx.Module("upgrader",
		fx.Provide(
			ProvideUpgrader,
			func(u *Upgrader) pkgif.Upgrader { return u },
		),
	)
}

// ProvideUpgrader 提供 Upgrader（依赖注入）
func ProvideUpgrader(params Params) (*Upgrader, error) {
	cfg := ConfigFromUnified(params.UnifiedCfg)
	cfg.Observer = params.Observer
	return New(cfg)
}
