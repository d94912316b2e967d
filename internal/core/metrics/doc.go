// Package metrics 提供 Prometheus 指标
//
// 所有指标注册在私有 Registry 上，命名空间为 floodnet：
//
//	floodnet_swarm_connections{direction}           当前连接数
//	floodnet_swarm_connections_opened_total{...}    累计建立连接
//	floodnet_swarm_dials_total{result}              拨号结果
//	floodnet_swarm_tasks{protocol}                  运行中的任务
//	floodnet_swarm_tasks_done_total{protocol,result}
//	floodnet_swarm_events_dropped_total             溢出丢弃的事件
//	floodnet_transport_bytes_total{direction}       字节流连接收发字节
//	floodnet_upgrader_negotiations_total{result,protocol}
//	floodnet_floodsub_*                             发布订阅统计
//
// # 使用示例
//
//	m := metrics.New()
//	sw, _ := swarm.New(tpt, muxers, u, h, swarm.WithMetrics(m))
//	_ = m.RegisterPubSub(ps.Stats)
//
//	srv := metrics.NewServer("127.0.0.1:9090", m)
//	_ = srv.Start()
//	defer srv.Close(ctx)
package metrics
