package types

import (
	"crypto/ed25519"
	"fmt"

	"github.com/google/uuid"
	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
)

// ============================================================================
//                              PeerID - 节点标识
// ============================================================================

const (
	// multihashSHA256 sha2-256 multihash 编码
	multihashSHA256 = 0x12
	// multihashSHA256Len sha2-256 摘要长度
	multihashSHA256Len = 32
)

// PeerID 节点标识
//
// 内部保存 sha2-256 multihash 的原始字节（0x12 0x20 || sha256(pubkey)），
// 文本形式为 base58 编码。
type PeerID string

// EmptyPeerID 空节点 ID
const EmptyPeerID PeerID = ""

// PeerIDFromPublicKey 从 Ed25519 公钥派生 PeerID
func PeerIDFromPublicKey(pub ed25519.PublicKey) (PeerID, error) {
	if len(pub) != ed25519.PublicKeySize {
		return EmptyPeerID, fmt.Errorf("%w: public key size %d", ErrInvalidPeerID, len(pub))
	}
	sum := sha256.Sum256(pub)
	buf := make([]byte, 0, 2+multihashSHA256Len)
	buf = append(buf, multihashSHA256, multihashSHA256Len)
	buf = append(buf, sum[:]...)
	return PeerID(buf), nil
}

// PeerIDFromBytes 从 multihash 原始字节构造 PeerID
func PeerIDFromBytes(b []byte) (PeerID, error) {
	id := PeerID(b)
	if err := id.Validate(); err != nil {
		return EmptyPeerID, err
	}
	return id, nil
}

// ParsePeerID 解析 base58 文本形式的 PeerID
func ParsePeerID(s string) (PeerID, error) {
	if s == "" {
		return EmptyPeerID, ErrEmptyPeerID
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return EmptyPeerID, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return PeerIDFromBytes(raw)
}

// Validate 校验 PeerID 结构
func (id PeerID) Validate() error {
	if id == EmptyPeerID {
		return ErrEmptyPeerID
	}
	if len(id) != 2+multihashSHA256Len || id[0] != multihashSHA256 || id[1] != multihashSHA256Len {
		return ErrInvalidPeerID
	}
	return nil
}

// Bytes 返回原始字节
func (id PeerID) Bytes() []byte {
	return []byte(id)
}

// String 返回 base58 文本形式
func (id PeerID) String() string {
	if id == EmptyPeerID {
		return ""
	}
	return base58.Encode([]byte(id))
}

// ShortString 返回用于日志的短形式
func (id PeerID) ShortString() string {
	s := id.String()
	if len(s) <= 12 {
		return s
	}
	return s[len(s)-8:]
}

// IsEmpty 是否为空
func (id PeerID) IsEmpty() bool {
	return id == EmptyPeerID
}

// MarshalText 实现 encoding.TextMarshaler
func (id PeerID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *PeerID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*id = EmptyPeerID
		return nil
	}
	parsed, err := ParsePeerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ============================================================================
//                              ProtocolID - 协议标识
// ============================================================================

// ProtocolID 协议标识，如 "/floodsub/1.0.0"
type ProtocolID string

// String 返回字符串形式
func (p ProtocolID) String() string {
	return string(p)
}

// ProtocolIDs 将字符串列表转为 ProtocolID 列表
func ProtocolIDs(ss ...string) []ProtocolID {
	out := make([]ProtocolID, len(ss))
	for i, s := range ss {
		out[i] = ProtocolID(s)
	}
	return out
}

// ProtocolStrings 将 ProtocolID 列表转为字符串列表
func ProtocolStrings(ps []ProtocolID) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

// ============================================================================
//                              ConnID / DialID
// ============================================================================

// ConnID Swarm 内部的连接标识，任务注册表以此为键
type ConnID string

// NewConnID 生成新的连接标识
func NewConnID() ConnID {
	return ConnID(uuid.NewString())
}

// String 返回字符串形式
func (c ConnID) String() string {
	return string(c)
}

// DialID 进行中拨号的标识
type DialID string

// NewDialID 生成新的拨号标识
func NewDialID() DialID {
	return DialID(uuid.NewString())
}

// String 返回字符串形式
func (d DialID) String() string {
	return string(d)
}
