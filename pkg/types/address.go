package types

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// 常用协议编号（来自 multiaddr 协议表）
const (
	ProtoIP4    = ma.P_IP4
	ProtoIP6    = ma.P_IP6
	ProtoDNS4   = ma.P_DNS4
	ProtoDNS6   = ma.P_DNS6
	ProtoTCP    = ma.P_TCP
	ProtoUDP    = ma.P_UDP
	ProtoWS     = ma.P_WS
	ProtoQUICV1 = ma.P_QUIC_V1
	ProtoP2P    = ma.P_P2P
)

// Segment 地址中的一段（协议名 + 可选值）
type Segment struct {
	Code  int
	Name  string
	Value string
}

// String 返回该段的文本形式
func (s Segment) String() string {
	if s.Value == "" {
		return "/" + s.Name
	}
	return "/" + s.Name + "/" + s.Value
}

// Address 多段斜杠分隔的网络地址
//
// 形如 /ip4/127.0.0.1/tcp/4001 或 /ip4/127.0.0.1/tcp/4001/ws。
// 值语义，创建后不可变。
type Address struct {
	m ma.Multiaddr
}

// ParseAddress 解析文本地址
//
// 空串、缺少前导 "/"、未知协议名或非法值均返回 ErrInvalidAddress。
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if !strings.HasPrefix(s, "/") {
		return Address{}, fmt.Errorf("%w: %q must start with '/'", ErrInvalidAddress, s)
	}
	m, err := ma.NewMultiaddr(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return Address{m: m}, nil
}

// MustParseAddress 解析地址，失败时 panic（仅用于常量地址和测试）
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes 从二进制形式构造地址
func AddressFromBytes(b []byte) (Address, error) {
	m, err := ma.NewMultiaddrBytes(b)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{m: m}, nil
}

// AddressFromNetAddr 从 net.Addr 构造地址（仅 thin waist 部分）
func AddressFromNetAddr(a net.Addr) (Address, error) {
	m, err := manet.FromNetAddr(a)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return Address{m: m}, nil
}

// IsEmpty 是否为空地址
func (a Address) IsEmpty() bool {
	return a.m == nil
}

// String 渲染为文本形式；对规范输入满足 String(Parse(s)) == s
func (a Address) String() string {
	if a.m == nil {
		return ""
	}
	return a.m.String()
}

// Bytes 返回二进制形式
func (a Address) Bytes() []byte {
	if a.m == nil {
		return nil
	}
	return a.m.Bytes()
}

// Equal 结构比较
func (a Address) Equal(b Address) bool {
	if a.m == nil || b.m == nil {
		return a.m == nil && b.m == nil
	}
	return a.m.Equal(b.m)
}

// Multiaddr 返回底层 multiaddr
func (a Address) Multiaddr() ma.Multiaddr {
	return a.m
}

// Segments 按顺序返回地址各段
func (a Address) Segments() []Segment {
	if a.m == nil {
		return nil
	}
	var segs []Segment
	ma.ForEach(a.m, func(c ma.Component) bool {
		p := c.Protocol()
		seg := Segment{Code: p.Code, Name: p.Name}
		if p.Size != 0 {
			seg.Value = c.Value()
		}
		segs = append(segs, seg)
		return true
	})
	return segs
}

// Has 是否包含指定协议段
func (a Address) Has(code int) bool {
	_, ok := a.Value(code)
	return ok
}

// Value 返回第一个指定协议段的值
func (a Address) Value(code int) (string, bool) {
	for _, s := range a.Segments() {
		if s.Code == code {
			return s.Value, true
		}
	}
	return "", false
}

// Last 返回最后一段的协议编号
func (a Address) Last() int {
	segs := a.Segments()
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].Code
}

// Port 返回第一个 tcp/udp 端口
func (a Address) Port() (int, bool) {
	for _, s := range a.Segments() {
		if s.Code == ProtoTCP || s.Code == ProtoUDP {
			p, err := strconv.Atoi(s.Value)
			if err != nil {
				return 0, false
			}
			return p, true
		}
	}
	return 0, false
}

// IsUnspecified 主机为 0.0.0.0 / :: 或端口为 0
func (a Address) IsUnspecified() bool {
	if v, ok := a.Value(ProtoIP4); ok && net.ParseIP(v).IsUnspecified() {
		return true
	}
	if v, ok := a.Value(ProtoIP6); ok && net.ParseIP(v).IsUnspecified() {
		return true
	}
	if p, ok := a.Port(); ok && p == 0 {
		return true
	}
	return false
}

// Encapsulate 在末尾追加 suffix
func (a Address) Encapsulate(suffix Address) Address {
	if a.m == nil {
		return suffix
	}
	if suffix.m == nil {
		return a
	}
	return Address{m: a.m.Encapsulate(suffix.m)}
}

// Decapsulate 移除最后一次出现的 suffix 及其之后的部分
func (a Address) Decapsulate(suffix Address) Address {
	if a.m == nil || suffix.m == nil {
		return a
	}
	return Address{m: a.m.Decapsulate(suffix.m)}
}

// DialArgs 返回 net.Dial 所需的 network 与 host:port
func (a Address) DialArgs() (network, host string, err error) {
	if a.m == nil {
		return "", "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	network, host, err = manet.DialArgs(a.m)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return network, host, nil
}

// WithResolvedPort 返回第一个 tcp/udp 端口被替换后的新地址
//
// 用于把 port 0 监听地址替换为系统实际分配的端口。
func WithResolvedPort(a Address, port int) (Address, error) {
	if port < 0 || port > 65535 {
		return Address{}, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}
	var b strings.Builder
	replaced := false
	for _, s := range a.Segments() {
		if !replaced && (s.Code == ProtoTCP || s.Code == ProtoUDP) {
			s.Value = strconv.Itoa(port)
			replaced = true
		}
		b.WriteString(s.String())
	}
	if !replaced {
		return Address{}, fmt.Errorf("%w: %s", ErrNoPort, a)
	}
	return ParseAddress(b.String())
}

// AddressStrings 将地址列表转为字符串列表
func AddressStrings(as []Address) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.String()
	}
	return out
}

// MarshalText 实现 encoding.TextMarshaler
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (a *Address) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddresses 批量解析
func ParseAddresses(ss ...string) ([]Address, error) {
	out := make([]Address, 0, len(ss))
	for _, s := range ss {
		a, err := ParseAddress(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
