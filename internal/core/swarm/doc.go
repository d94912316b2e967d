// Package swarm 实现连接群
//
// Swarm 将传输、多路复用器选择、流升级与用户处理器串联起来：
//
//	listener/dial -> 原始连接 -> 多路复用器协商 -> 流 -> Upgrader -> Handler -> Task
//
// # 并发模型
//
// Run 是唯一的调度循环，独占连接表与任务注册表。监听、拨号、流接受、
// 协商和任务各自运行在 errgroup 的 goroutine 中，通过内部通道向循环汇报；
// 外部查询（Conns、Tasks、ListenAddrs）读取循环发布的快照。
//
// 单个连接或任务的错误只终止该连接，不影响其他连接。监听器出现
// 非关闭类错误视为致命，Run 返回该错误。
//
// # 生命周期
//
//   - 出站连接打开一条流；入站连接接受对端打开的流
//   - 连接上的任务全部结束后进入空闲，对端关闭或空闲满 CloseLinger 后关闭
//   - 所有监听器、拨号、连接与任务结束后 Run 返回
//
// # 事件
//
// 监听、入站、拨号结果、升级失败、任务结束、连接关闭都以 Event 上报到
// 带缓冲通道，缓冲满时丢弃。
package swarm
