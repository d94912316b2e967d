// Package addrutil 提供地址解析工具
//
// 完整地址是可拨号地址后追加 /p2p/<PeerID>，用于在命令行和配置中分享节点。
package addrutil

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-floodnet/pkg/types"
)

var (
	// ErrMissingPeerID 缺少 /p2p/<PeerID> 后缀
	ErrMissingPeerID = errors.New("missing /p2p/<PeerID> suffix")

	// ErrPeerIDNotAtEnd /p2p/<PeerID> 不在地址末尾
	ErrPeerIDNotAtEnd = errors.New("/p2p/<PeerID> must be the last segment")

	// ErrPeerIDConflict 地址已包含不同的 PeerID
	ErrPeerIDConflict = errors.New("address already contains a different peer id")
)

// ParseFullAddr 拆分完整地址
//
//	id, addr, _ := ParseFullAddr(types.MustParseAddress("/ip4/1.2.3.4/tcp/4001/p2p/Qm..."))
//	// addr = /ip4/1.2.3.4/tcp/4001
func ParseFullAddr(full types.Address) (types.PeerID, types.Address, error) {
	segs := full.Segments()
	if len(segs) == 0 {
		return types.EmptyPeerID, types.Address{}, fmt.Errorf("%w: empty", types.ErrInvalidAddress)
	}
	last := segs[len(segs)-1]
	if last.Code != types.ProtoP2P {
		for _, s := range segs {
			if s.Code == types.ProtoP2P {
				return types.EmptyPeerID, types.Address{}, ErrPeerIDNotAtEnd
			}
		}
		return types.EmptyPeerID, types.Address{}, ErrMissingPeerID
	}

	id, err := types.ParsePeerID(last.Value)
	if err != nil {
		return types.EmptyPeerID, types.Address{}, err
	}
	if len(segs) == 1 {
		return types.EmptyPeerID, types.Address{}, fmt.Errorf("%w: %s has no transport part", types.ErrInvalidAddress, full)
	}
	return id, full.Decapsulate(types.MustParseAddress(last.String())), nil
}

// BuildFullAddr 在地址末尾追加 /p2p/<PeerID>
//
// 地址已带相同 PeerID 时原样返回。
func BuildFullAddr(addr types.Address, id types.PeerID) (types.Address, error) {
	if addr.IsEmpty() {
		return types.Address{}, fmt.Errorf("%w: empty", types.ErrInvalidAddress)
	}
	if err := id.Validate(); err != nil {
		return types.Address{}, err
	}
	if HasPeerID(addr) {
		existing, _, err := ParseFullAddr(addr)
		if err != nil {
			return types.Address{}, err
		}
		if existing != id {
			return types.Address{}, ErrPeerIDConflict
		}
		return addr, nil
	}
	suffix, err := types.ParseAddress("/p2p/" + id.String())
	if err != nil {
		return types.Address{}, err
	}
	return addr.Encapsulate(suffix), nil
}

// SplitDialAddr 返回可拨号部分与可选的期望 PeerID
//
// 不带 /p2p/ 的地址原样返回，PeerID 为空。
func SplitDialAddr(addr types.Address) (types.PeerID, types.Address, error) {
	if !HasPeerID(addr) {
		return types.EmptyPeerID, addr, nil
	}
	return ParseFullAddr(addr)
}

// HasPeerID 地址是否包含 /p2p/ 段
func HasPeerID(addr types.Address) bool {
	return addr.Has(types.ProtoP2P)
}
