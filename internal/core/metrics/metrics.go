package metrics

import (
	"errors"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/core/upgrader"
	"github.com/dep2p/go-floodnet/internal/protocol/floodsub"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("core/metrics")

const namespace = "floodnet"

// 确保实现了接口
var (
	_ swarm.Metrics   = (*Metrics)(nil)
	_ swarm.ByteMeter = (*Metrics)(nil)
)

// Metrics 指标集合
type Metrics struct {
	reg *prometheus.Registry

	conns         *prometheus.GaugeVec
	connsOpened   *prometheus.CounterVec
	dials         *prometheus.CounterVec
	upgradeFailed *prometheus.CounterVec
	tasks         *prometheus.GaugeVec
	tasksDone     *prometheus.CounterVec
	eventsDropped prometheus.Counter
	bytes         *prometheus.CounterVec
	negotiations  *prometheus.CounterVec
}

// New 创建指标集合并注册到私有 Registry
//
// 同时注册 Go 运行时与进程采集器。
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		conns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "connections",
			Help: "Open connections by direction.",
		}, []string{"direction"}),
		connsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "connections_opened_total",
			Help: "Connections established, by direction, transport and muxer.",
		}, []string{"direction", "transport", "muxer"}),
		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "dials_total",
			Help: "Dial attempts by result.",
		}, []string{"result"}),
		upgradeFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "upgrade_failures_total",
			Help: "Stream upgrades that failed, by direction.",
		}, []string{"direction"}),
		tasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "tasks",
			Help: "Running handler tasks by protocol.",
		}, []string{"protocol"}),
		tasksDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "tasks_done_total",
			Help: "Finished handler tasks by protocol and result.",
		}, []string{"protocol", "result"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "swarm", Name: "events_dropped_total",
			Help: "Swarm events dropped because the event channel was full.",
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "bytes_total",
			Help: "Bytes read and written on stream connections.",
		}, []string{"direction"}),
		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "upgrader", Name: "negotiations_total",
			Help: "Protocol negotiations by result and selected protocol.",
		}, []string{"result", "protocol"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.conns, m.connsOpened, m.dials, m.upgradeFailed,
		m.tasks, m.tasksDone, m.eventsDropped, m.bytes, m.negotiations,
	)
	return m
}

// Registry 返回私有 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ConnOpened 实现 swarm.Metrics
func (m *Metrics) ConnOpened(info types.ConnInfo) {
	m.conns.WithLabelValues(info.Direction.String()).Inc()
	m.connsOpened.WithLabelValues(info.Direction.String(), info.Transport, info.Muxer).Inc()
}

// ConnClosed 实现 swarm.Metrics
func (m *Metrics) ConnClosed(info types.ConnInfo) {
	m.conns.WithLabelValues(info.Direction.String()).Dec()
}

// DialDone 实现 swarm.Metrics
func (m *Metrics) DialDone(err error) {
	m.dials.WithLabelValues(dialResult(err)).Inc()
}

// UpgradeFailed 实现 swarm.Metrics
func (m *Metrics) UpgradeFailed(dir types.Direction) {
	m.upgradeFailed.WithLabelValues(dir.String()).Inc()
}

// TaskStarted 实现 swarm.Metrics
func (m *Metrics) TaskStarted(p types.ProtocolID) {
	m.tasks.WithLabelValues(string(p)).Inc()
}

// TaskDone 实现 swarm.Metrics
func (m *Metrics) TaskDone(p types.ProtocolID, err error) {
	m.tasks.WithLabelValues(string(p)).Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.tasksDone.WithLabelValues(string(p), result).Inc()
}

// EventDropped 实现 swarm.Metrics
func (m *Metrics) EventDropped() {
	m.eventsDropped.Inc()
}

// MeterConn 实现 swarm.ByteMeter
func (m *Metrics) MeterConn(c net.Conn) net.Conn {
	return &meteredConn{
		Conn: c,
		in:   m.bytes.WithLabelValues("in"),
		out:  m.bytes.WithLabelValues("out"),
	}
}

// ObserveUpgrade 协商状态回调，可作为 upgrader.StateObserver
func (m *Metrics) ObserveUpgrade(_ types.ConnInfo, st upgrader.State, p types.ProtocolID) {
	switch st {
	case upgrader.StateRunning:
		m.negotiations.WithLabelValues("ok", string(p)).Inc()
	case upgrader.StateFailed:
		m.negotiations.WithLabelValues("failed", string(p)).Inc()
	}
}

// RegisterPubSub 导出发布订阅统计
//
// stats 在每次采集时调用。
func (m *Metrics) RegisterPubSub(stats func() floodsub.Stats) error {
	counter := func(name, help string, f func(floodsub.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "floodsub", Name: name, Help: help,
		}, func() float64 { return float64(f(stats())) })
	}
	gauge := func(name, help string, f func(floodsub.Stats) int) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "floodsub", Name: name, Help: help,
		}, func() float64 { return float64(f(stats())) })
	}

	cs := []prometheus.Collector{
		counter("published_total", "Messages published locally.", func(s floodsub.Stats) uint64 { return s.Published }),
		counter("delivered_total", "Messages delivered to local subscriptions.", func(s floodsub.Stats) uint64 { return s.Delivered }),
		counter("relayed_total", "Messages forwarded to other peers.", func(s floodsub.Stats) uint64 { return s.Relayed }),
		counter("duplicates_total", "Messages dropped as already seen.", func(s floodsub.Stats) uint64 { return s.Duplicates }),
		counter("malformed_total", "Frames or messages dropped as malformed.", func(s floodsub.Stats) uint64 { return s.Malformed }),
		counter("dropped_peers_total", "Peers dropped on a full send queue.", func(s floodsub.Stats) uint64 { return s.DroppedPeers }),
		gauge("peers", "Attached peers.", func(s floodsub.Stats) int { return s.Peers }),
		gauge("topics", "Local subscriptions.", func(s floodsub.Stats) int { return s.Topics }),
	}
	for _, c := range cs {
		if err := m.reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func dialResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrTimeout):
		return "timeout"
	case errors.Is(err, types.ErrConnectionRefused):
		return "refused"
	case errors.Is(err, types.ErrUnsupported):
		return "unsupported"
	default:
		return "error"
	}
}
