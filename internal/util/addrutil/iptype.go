package addrutil

import (
	"net"
	"sort"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// AddrType 地址可达范围
type AddrType int

const (
	// AddrUnknown 无法判断（如 DNS 地址）
	AddrUnknown AddrType = iota
	// AddrLoopback 回环地址
	AddrLoopback
	// AddrPrivate 私网或链路本地地址
	AddrPrivate
	// AddrPublic 公网地址
	AddrPublic
)

// String 返回类型名
func (t AddrType) String() string {
	switch t {
	case AddrLoopback:
		return "loopback"
	case AddrPrivate:
		return "private"
	case AddrPublic:
		return "public"
	default:
		return "unknown"
	}
}

// TypeOf 按首个 ip4/ip6 段判断地址类型
func TypeOf(addr types.Address) AddrType {
	ip := extractIP(addr)
	switch {
	case ip == nil:
		return AddrUnknown
	case ip.IsLoopback():
		return AddrLoopback
	case ip.IsPrivate() || ip.IsLinkLocalUnicast():
		return AddrPrivate
	case ip.IsGlobalUnicast():
		return AddrPublic
	default:
		return AddrUnknown
	}
}

// IsLoopback 是否回环地址
func IsLoopback(addr types.Address) bool { return TypeOf(addr) == AddrLoopback }

// IsPrivate 是否私网地址
func IsPrivate(addr types.Address) bool { return TypeOf(addr) == AddrPrivate }

// IsPublic 是否公网地址
func IsPublic(addr types.Address) bool { return TypeOf(addr) == AddrPublic }

// SortForSharing 按公网、未知、私网、回环排序，同类保持原顺序
func SortForSharing(addrs []types.Address) []types.Address {
	rank := func(a types.Address) int {
		switch TypeOf(a) {
		case AddrPublic:
			return 0
		case AddrUnknown:
			return 1
		case AddrPrivate:
			return 2
		default:
			return 3
		}
	}
	out := append([]types.Address(nil), addrs...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	return out
}

func extractIP(addr types.Address) net.IP {
	for _, s := range addr.Segments() {
		switch s.Code {
		case types.ProtoIP4, types.ProtoIP6:
			return net.ParseIP(s.Value)
		case types.ProtoDNS4, types.ProtoDNS6:
			return nil
		}
	}
	return nil
}
