// Package interfaces 定义 floodnet 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - transport.go  - 传输层（internal/core/transport）
//   - muxer.go      - 多路复用（internal/core/muxer）
//   - upgrader.go   - 协议协商与升级（internal/core/upgrader）
//   - swarm.go      - 连接群（internal/core/swarm）
//   - pubsub.go     - 发布订阅（internal/protocol/floodsub）
package interfaces
