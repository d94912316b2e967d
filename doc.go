// Package floodnet 提供 flood 发布订阅节点
//
// 节点由以下组件通过 Fx 依赖注入组装：
//
//	Identity → Transport → Muxer → Upgrader → Swarm
//	                                   ↑
//	             FloodSub / Identify / Hello（按配置顺序注册）
//
// 每条升级成功的流由节点的分发器处理：带任务的产物（floodsub 对端、hello）
// 交给 Swarm 驱动，identify 产物记录对端信息后结束。
//
// 使用示例：
//
//	node, err := floodnet.New(
//	    floodnet.WithPreset(config.PresetNative),
//	    floodnet.WithListenAddrs("/ip4/0.0.0.0/tcp/4001"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := node.Start(ctx); err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	sub, _ := node.Subscribe("room")
//	_ = node.Publish(ctx, "room", []byte("hi"))
//	msg, _ := sub.Next(ctx)
package floodnet
