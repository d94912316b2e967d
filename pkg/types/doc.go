// Package types 定义 floodnet 的基础类型
//
// 本包不依赖任何内部实现，供所有层共享：
//   - address.go  - 地址（多段斜杠分隔的 multiaddr）
//   - ids.go      - PeerID / ProtocolID / ConnID / DialID
//   - enums.go    - 连接方向等枚举
//   - conn.go     - 连接元信息
//   - errors.go   - 跨层共享的错误分类
package types
