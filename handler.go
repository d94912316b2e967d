package floodnet

import (
	"github.com/dep2p/go-floodnet/internal/protocol/identify"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// tasker 带长期任务的升级产物
type tasker interface {
	Task() pkgif.Task
}

// dispatcher 按升级产物类型分发
type dispatcher struct {
	onIdentify func(types.ConnInfo, identify.Info)
}

// 确保实现了接口
var _ pkgif.Handler = (*dispatcher)(nil)

// Handle 实现 pkgif.Handler
func (d *dispatcher) Handle(out pkgif.UpgradeOutput, remote types.Address) pkgif.Task {
	switch o := out.(type) {
	case *identify.Output:
		logger.Info("识别到对端",
			"peer", o.Remote.PeerID.ShortString(),
			"remote", remote.String(),
			"agent", o.Remote.AgentVersion,
			"listenAddrs", len(o.Remote.ListenAddrs))
		if d.onIdentify != nil {
			d.onIdentify(o.Conn, o.Remote)
		}
		return nil
	case tasker:
		return o.Task()
	default:
		logger.Warn("未处理的升级产物", "protocol", string(out.Protocol()), "remote", remote.String())
		return nil
	}
}
