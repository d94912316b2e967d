// Package identify 实现身份交换协议
//
// 协议 /floodnet/id/1.0.0。双方同时发送一帧身份信息（uvarint 长度前缀 +
// protobuf 编码），读到对端信息后关闭流：
//
//	Info { peer_id = 1; listen_addrs = 2; protocols = 3; agent = 4;
//	       public_key = 5; observed_addr = 6; protocol_version = 7 }
//
// 收到的信息会校验公钥派生的节点 ID 与声明一致。
package identify
