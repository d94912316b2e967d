// Package muxer 实现流多路复用适配
//
// 在字节流连接上提供 {打开流, 接受流, 关闭} 能力：
//   - Yamux: 基于 go-yamux 的多路复用（/yamux/1.0.0）
//   - Dummy: 整个连接即唯一的流，用于不需要多路复用的场景
//
// QUIC 连接原生多路复用，由 transport/quic 直接实现 MuxedConn，不经过本包。
//
// # 快速开始
//
//	m := muxer.NewYamux(muxer.DefaultConfig())
//
//	// 服务端
//	mc, _ := m.NewConn(conn, true)
//	stream, _ := mc.AcceptStream()
//
//	// 客户端
//	mc, _ := m.NewConn(conn, false)
//	stream, _ := mc.OpenStream(ctx)
//
// # 错误语义
//
// 连接关闭后，未完成和后续的流操作返回 types.ErrConnectionClosed；
// 关闭单个流不影响同一连接上的其他流。
package muxer
