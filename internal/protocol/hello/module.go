package hello

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/internal/core/upgrader"
)

// Params Hello 依赖参数
type Params struct {
	fx.In

	OnGreeting GreetingFunc `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("hello",
		fx.Provide(ProvideService),
		fx.Invoke(func(u *upgrader.Upgrader, s *Service) error {
			return u.Register(s)
		}),
	)
}

// ProvideService 提供 Hello 服务（依赖注入）
func ProvideService(p Params) *Service {
	var opts []Option
	if p.OnGreeting != nil {
		opts = append(opts, OnGreeting(p.OnGreeting))
	}
	return NewService(opts...)
}
