package swarm

import (
	"net"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// EventType 事件类型
type EventType int

const (
	// EventListening 监听器已就绪
	EventListening EventType = iota
	// EventListenerClosed 监听器结束
	EventListenerClosed
	// EventIncoming 接受到入站连接
	EventIncoming
	// EventDialed 拨号成功
	EventDialed
	// EventDialFailed 拨号失败
	EventDialFailed
	// EventUpgraded 流升级成功
	EventUpgraded
	// EventUpgradeFailed 多路复用或流升级失败
	EventUpgradeFailed
	// EventTaskDone 任务结束
	EventTaskDone
	// EventConnClosed 连接关闭
	EventConnClosed
)

// String 返回事件类型名称
func (t EventType) String() string {
	switch t {
	case EventListening:
		return "listening"
	case EventListenerClosed:
		return "listener-closed"
	case EventIncoming:
		return "incoming"
	case EventDialed:
		return "dialed"
	case EventDialFailed:
		return "dial-failed"
	case EventUpgraded:
		return "upgraded"
	case EventUpgradeFailed:
		return "upgrade-failed"
	case EventTaskDone:
		return "task-done"
	case EventConnClosed:
		return "conn-closed"
	default:
		return "unknown"
	}
}

// Event Swarm 事件
//
// 按类型填充相关字段，其余为零值。
type Event struct {
	Type     EventType
	Addr     types.Address
	Conn     types.ConnInfo
	Dial     types.DialID
	Protocol types.ProtocolID
	Err      error
}

// Metrics Swarm 指标上报
type Metrics interface {
	ConnOpened(info types.ConnInfo)
	ConnClosed(info types.ConnInfo)
	DialDone(err error)
	UpgradeFailed(dir types.Direction)
	TaskStarted(protocol types.ProtocolID)
	TaskDone(protocol types.ProtocolID, err error)
	EventDropped()
}

// ByteMeter 统计字节流连接的收发字节
//
// Metrics 实现该接口时，字节流连接在多路复用前被包装。
type ByteMeter interface {
	MeterConn(c net.Conn) net.Conn
}

type noopMetrics struct{}

func (noopMetrics) ConnOpened(types.ConnInfo)        {}
func (noopMetrics) ConnClosed(types.ConnInfo)        {}
func (noopMetrics) DialDone(error)                   {}
func (noopMetrics) UpgradeFailed(types.Direction)    {}
func (noopMetrics) TaskStarted(types.ProtocolID)     {}
func (noopMetrics) TaskDone(types.ProtocolID, error) {}
func (noopMetrics) EventDropped()                    {}

// emit 非阻塞上报事件
func (s *Swarm) emit(ev Event) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.metrics.EventDropped()
		logger.Debug("事件通道已满，丢弃事件", "type", ev.Type.String())
	}
}
