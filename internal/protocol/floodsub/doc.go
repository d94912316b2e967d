// Package floodsub 实现 flood 发布订阅
//
// 协议 /floodsub/1.0.0，帧为 uvarint 长度前缀的 RPC，布局与 libp2p floodsub 一致。
//
// # 转发规则
//
//   - 消息 ID 为 (发布者, 序号)，无发布者时为内容摘要
//   - 已见消息直接丢弃，不投递也不转发
//   - 新消息投递给本地订阅，并转发给除来源外的所有对端
//   - FilteredFlood 开启时只转发给声明了相关主题兴趣的对端
//   - 发布者不接收自己发布的消息
//
// # 背压
//
// 每个对端一个有界发送队列，队列满时断开该对端，事件循环从不阻塞。
// 本地订阅缓冲满时丢弃该条消息。
//
// # 使用示例
//
//	ps, err := floodsub.New(localPeer)
//	if err != nil {
//	    return err
//	}
//	defer ps.Close()
//
//	// 注册到 Upgrader，Swarm 运行 Output.Task()
//	_ = up.Register(ps.Protocol())
//
//	sub, _ := ps.Subscribe("room")
//	_ = ps.Publish(ctx, "room", []byte("hi"))
package floodsub
