package identify

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/internal/core/identity"
	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// Params Identify 依赖参数
type Params struct {
	fx.In

	Identity *identity.Identity
	Upgrader *upgrader.Upgrader
	Swarm    *swarm.Swarm `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("identify",
		fx.Provide(ProvideService),
		fx.Invoke(func(u *upgrader.Upgrader, s *Service) error {
			return u.Register(s)
		}),
	)
}

// ProvideService 提供 Identify 服务（依赖注入）
func ProvideService(p Params) *Service {
	var addrs func() []types.Address
	if p.Swarm != nil {
		addrs = p.Swarm.ListenAddrs
	}
	return NewService(p.Identity, addrs, p.Upgrader.Protocols)
}
