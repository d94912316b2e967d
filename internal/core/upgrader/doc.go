// Package upgrader 实现流级协议协商与升级
//
// # 概述
//
// upgrader 在一条字节流（多路复用流或原始连接）上协商双方都支持的协议，
// 再把流交给选中协议的处理器，得到该协议的 UpgradeOutput。
//
// # 协商状态
//
//	Start → Exchanging → Selected(P) → Running(P)
//	                   ↘ Failed
//
// # 协商方式
//
// list-exchange（默认，/floodnet/select/1.0.0）：
//
//  1. 双方并发写出头部帧和协议列表帧，每帧为 uvarint 长度 + 内容 + '\n'
//  2. 双方读取对端列表，取监听方列表中第一个双方共有的协议
//  3. 无共同协议时返回 ErrNoCommonProtocol，流被重置，不调用任何处理器
//
// 读取使用 bufio.Reader，协商之后已缓冲的字节通过包装流交给处理器，不丢失也不重复。
//
// multistream：使用 multistream-select，拨号方逐个提议，拨号方顺序优先。
//
// # 使用示例
//
//	u := upgrader.New(upgrader.DefaultConfig(), floodsubHandler, helloHandler)
//	out, err := u.Upgrade(ctx, stream, info)
//	if errors.Is(err, types.ErrNoCommonProtocol) {
//	    // 对端不支持任何本地协议
//	}
package upgrader
