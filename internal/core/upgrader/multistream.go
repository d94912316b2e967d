package upgrader

import (
	"errors"
	"fmt"
	"io"

	mss "github.com/multiformats/go-multistream"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// Multistream 基于 multistream-select 的协商器
//
// 服务器端使用 MultistreamMuxer.Negotiate()，客户端使用 SelectOneOf()。
// 客户端逐个提议，因此拨号方顺序优先。
type Multistream struct{}

// Negotiate 实现 Negotiator
func (Multistream) Negotiate(rw io.ReadWriteCloser, local []string, listener bool) (string, io.Reader, error) {
	if listener {
		muxer := mss.NewMultistreamMuxer[string]()
		for _, p := range local {
			muxer.AddHandler(p, nil)
		}

		selected, _, err := muxer.Negotiate(rw)
		if err != nil {
			// 客户端提议全部被拒后关闭流
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return "", nil, fmt.Errorf("%w: peer gave up: %w", types.ErrNoCommonProtocol, err)
			}
			return "", nil, fmt.Errorf("server negotiation: %w", err)
		}
		return selected, rw, nil
	}

	selected, err := mss.SelectOneOf(local, rw)
	if err != nil {
		if errors.Is(err, mss.ErrNotSupported[string]{}) {
			return "", nil, fmt.Errorf("%w: %w", types.ErrNoCommonProtocol, err)
		}
		return "", nil, fmt.Errorf("client negotiation: %w", err)
	}
	return selected, rw, nil
}
