package types

import "time"

// ConnInfo 连接元信息，随升级流程传递给协议处理器
type ConnInfo struct {
	// ID Swarm 分配的连接标识
	ID ConnID

	// Direction 连接方向
	Direction Direction

	// Local 本地地址
	Local Address

	// Remote 远端地址
	Remote Address

	// Transport 承载传输名称（tcp / websocket / quic）
	Transport string

	// Muxer 协商出的多路复用器
	Muxer string

	// Opened 建立时间
	Opened time.Time
}
