package identify

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-floodnet/internal/core/identity"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("protocol/identify")

const (
	// ProtocolID Identify 协议 ID
	ProtocolID types.ProtocolID = "/floodnet/id/1.0.0"

	// ProtocolVersion 协议族版本
	ProtocolVersion = "floodnet/1.0.0"

	// DefaultAgentVersion 默认代理版本
	DefaultAgentVersion = "go-floodnet/1.0.0"

	// DefaultTimeout 交换超时
	DefaultTimeout = 10 * time.Second

	// maxInfoSize 单帧上限
	maxInfoSize = 64 * 1024
)

var (
	// ErrPeerIDMismatch 公钥与声明的节点 ID 不一致
	ErrPeerIDMismatch = errors.New("identify: peer id does not match public key")

	// ErrInfoTooLarge 身份帧过大
	ErrInfoTooLarge = errors.New("identify: info too large")
)

// 确保实现了接口
var _ pkgif.ProtocolHandler = (*Service)(nil)

// Info 节点身份信息
type Info struct {
	// PeerID 节点 ID
	PeerID types.PeerID

	// PublicKey Ed25519 公钥
	PublicKey ed25519.PublicKey

	// ListenAddrs 监听地址列表
	ListenAddrs []types.Address

	// ObservedAddr 对端看到的我方地址
	ObservedAddr types.Address

	// Protocols 支持的协议列表
	Protocols []types.ProtocolID

	// AgentVersion 代理版本
	AgentVersion string

	// ProtocolVersion 协议版本
	ProtocolVersion string
}

// Output Identify 升级产物
type Output struct {
	// Remote 对端身份
	Remote Info

	// Conn 连接信息
	Conn types.ConnInfo
}

// Protocol 实现 UpgradeOutput
func (o *Output) Protocol() types.ProtocolID {
	return ProtocolID
}

// Service Identify 服务
//
// 双方在流上各发送一帧身份信息后关闭流。
type Service struct {
	id        *identity.Identity
	addrs     func() []types.Address
	protocols func() []types.ProtocolID
	agent     string
	timeout   time.Duration
}

// Option 服务选项
type Option func(*Service)

// WithAgentVersion 设置代理版本
func WithAgentVersion(v string) Option {
	return func(s *Service) { s.agent = v }
}

// WithTimeout 设置交换超时
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// NewService 创建 Identify 服务
//
// addrs 与 protocols 在每次交换时调用，可为 nil。
func NewService(id *identity.Identity, addrs func() []types.Address, protocols func() []types.ProtocolID, opts ...Option) *Service {
	s := &Service{
		id:        id,
		addrs:     addrs,
		protocols: protocols,
		agent:     DefaultAgentVersion,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID 实现 ProtocolHandler
func (s *Service) ID() types.ProtocolID {
	return ProtocolID
}

// Upgrade 交换身份信息
func (s *Service) Upgrade(ctx context.Context, st pkgif.MuxedStream, info types.ConnInfo) (pkgif.UpgradeOutput, error) {
	deadline := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = st.SetDeadline(deadline)

	local := s.localInfo(info.Remote)
	writeErr := make(chan error, 1)
	go func() {
		_, err := st.Write(appendFrame(nil, local.marshal()))
		writeErr <- err
	}()

	remote, err := readInfo(bufio.NewReader(st))
	if err != nil {
		_ = st.Reset()
		<-writeErr
		return nil, fmt.Errorf("read identify: %w", err)
	}
	if err := <-writeErr; err != nil {
		_ = st.Reset()
		return nil, fmt.Errorf("write identify: %w", err)
	}
	_ = st.Close()

	if err := remote.verify(); err != nil {
		return nil, err
	}
	logger.Debug("身份交换完成",
		"peer", remote.PeerID.ShortString(),
		"remote", info.Remote.String(),
		"agent", remote.AgentVersion,
		"protocols", len(remote.Protocols))
	return &Output{Remote: *remote, Conn: info}, nil
}

func (s *Service) localInfo(observed types.Address) *Info {
	info := &Info{
		PeerID:          s.id.PeerID(),
		PublicKey:       s.id.PublicKey(),
		ObservedAddr:    observed,
		AgentVersion:    s.agent,
		ProtocolVersion: ProtocolVersion,
	}
	if s.addrs != nil {
		info.ListenAddrs = s.addrs()
	}
	if s.protocols != nil {
		info.Protocols = s.protocols()
	}
	return info
}

// verify 校验公钥派生出的 ID 与声明一致
func (i *Info) verify() error {
	derived, err := types.PeerIDFromPublicKey(i.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrMalformed, err)
	}
	if derived != i.PeerID {
		return ErrPeerIDMismatch
	}
	return nil
}

// 帧字段
const (
	fieldPeerID          protowire.Number = 1
	fieldListenAddrs     protowire.Number = 2
	fieldProtocols       protowire.Number = 3
	fieldAgentVersion    protowire.Number = 4
	fieldPublicKey       protowire.Number = 5
	fieldObservedAddr    protowire.Number = 6
	fieldProtocolVersion protowire.Number = 7
)

func (i *Info) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPeerID, protowire.BytesType)
	b = protowire.AppendBytes(b, i.PeerID.Bytes())
	for _, a := range i.ListenAddrs {
		b = protowire.AppendTag(b, fieldListenAddrs, protowire.BytesType)
		b = protowire.AppendBytes(b, a.Bytes())
	}
	for _, p := range i.Protocols {
		b = protowire.AppendTag(b, fieldProtocols, protowire.BytesType)
		b = protowire.AppendString(b, string(p))
	}
	b = protowire.AppendTag(b, fieldAgentVersion, protowire.BytesType)
	b = protowire.AppendString(b, i.AgentVersion)
	b = protowire.AppendTag(b, fieldPublicKey, protowire.BytesType)
	b = protowire.AppendBytes(b, i.PublicKey)
	if !i.ObservedAddr.IsEmpty() {
		b = protowire.AppendTag(b, fieldObservedAddr, protowire.BytesType)
		b = protowire.AppendBytes(b, i.ObservedAddr.Bytes())
	}
	b = protowire.AppendTag(b, fieldProtocolVersion, protowire.BytesType)
	b = protowire.AppendString(b, i.ProtocolVersion)
	return b
}

func unmarshalInfo(b []byte) (*Info, error) {
	info := &Info{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldPeerID:
			id, err := types.PeerIDFromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", types.ErrMalformed, err)
			}
			info.PeerID = id
		case fieldListenAddrs:
			a, err := types.AddressFromBytes(v)
			if err != nil {
				// 无法解析的地址跳过
				logger.Debug("跳过无效监听地址", "error", err)
				continue
			}
			info.ListenAddrs = append(info.ListenAddrs, a)
		case fieldProtocols:
			info.Protocols = append(info.Protocols, types.ProtocolID(v))
		case fieldAgentVersion:
			info.AgentVersion = string(v)
		case fieldPublicKey:
			info.PublicKey = append(ed25519.PublicKey(nil), v...)
		case fieldObservedAddr:
			if a, err := types.AddressFromBytes(v); err == nil {
				info.ObservedAddr = a
			}
		case fieldProtocolVersion:
			info.ProtocolVersion = string(v)
		}
	}
	if info.PeerID.IsEmpty() {
		return nil, fmt.Errorf("%w: identify without peer id", types.ErrMalformed)
	}
	return info, nil
}

func appendFrame(dst, body []byte) []byte {
	dst = append(dst, varint.ToUvarint(uint64(len(body)))...)
	return append(dst, body...)
}

func readInfo(br *bufio.Reader) (*Info, error) {
	n, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	if n > maxInfoSize {
		return nil, fmt.Errorf("%w: %w (%d bytes)", types.ErrMalformed, ErrInfoTooLarge, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	return unmarshalInfo(buf)
}
