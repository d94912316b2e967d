package identity

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// ModuleOutput 模块输出
type ModuleOutput struct {
	fx.Out

	Identity  *Identity
	LocalPeer types.PeerID
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideIdentity),
	)
}

// ProvideIdentity 按配置加载或生成身份
func ProvideIdentity(cfg *config.Config) (ModuleOutput, error) {
	id, err := LoadOrCreate(cfg.Identity.KeyFile, cfg.Identity.AutoGenerate)
	if err != nil {
		return ModuleOutput{}, err
	}
	logger.Info("本地身份", "peer", id.PeerID().String())
	return ModuleOutput{Identity: id, LocalPeer: id.PeerID()}, nil
}
