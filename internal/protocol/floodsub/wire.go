package floodsub

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-floodnet/pkg/types"
)

// 帧布局与 libp2p floodsub 的 RPC 保持一致：
//
//	RPC     { subscriptions = 1 (SubOpts); publish = 2 (Message) }
//	SubOpts { subscribe = 1 (bool); topicid = 2 (string) }
//	Message { from = 1; data = 2; seqno = 3 (8 字节大端); topicIDs = 4 }
const (
	rpcSubscriptions protowire.Number = 1
	rpcPublish       protowire.Number = 2

	subSubscribe protowire.Number = 1
	subTopicID   protowire.Number = 2

	msgFrom     protowire.Number = 1
	msgData     protowire.Number = 2
	msgSeqno    protowire.Number = 3
	msgTopicIDs protowire.Number = 4
)

// subOpt 订阅变更
type subOpt struct {
	subscribe bool
	topic     string
}

// wireMessage 线上的发布消息
type wireMessage struct {
	from   []byte
	data   []byte
	seqno  []byte
	topics []string
}

// rpc 一帧
type rpc struct {
	subs []subOpt
	msgs []*wireMessage
}

func (r *rpc) empty() bool {
	return len(r.subs) == 0 && len(r.msgs) == 0
}

// encodeSeqno 序号编码为 8 字节大端
func encodeSeqno(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// decodeSeqno 不足 8 字节时左侧补零
func decodeSeqno(b []byte) (uint64, error) {
	if len(b) > 8 {
		return 0, fmt.Errorf("%w: seqno length %d", types.ErrMalformed, len(b))
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (r *rpc) marshal() []byte {
	var b []byte
	for _, s := range r.subs {
		var sb []byte
		sb = protowire.AppendTag(sb, subSubscribe, protowire.VarintType)
		sb = protowire.AppendVarint(sb, protowire.EncodeBool(s.subscribe))
		sb = protowire.AppendTag(sb, subTopicID, protowire.BytesType)
		sb = protowire.AppendString(sb, s.topic)

		b = protowire.AppendTag(b, rpcSubscriptions, protowire.BytesType)
		b = protowire.AppendBytes(b, sb)
	}
	for _, m := range r.msgs {
		b = protowire.AppendTag(b, rpcPublish, protowire.BytesType)
		b = protowire.AppendBytes(b, m.marshal())
	}
	return b
}

func (m *wireMessage) marshal() []byte {
	var b []byte
	if len(m.from) > 0 {
		b = protowire.AppendTag(b, msgFrom, protowire.BytesType)
		b = protowire.AppendBytes(b, m.from)
	}
	if len(m.data) > 0 {
		b = protowire.AppendTag(b, msgData, protowire.BytesType)
		b = protowire.AppendBytes(b, m.data)
	}
	if len(m.seqno) > 0 {
		b = protowire.AppendTag(b, msgSeqno, protowire.BytesType)
		b = protowire.AppendBytes(b, m.seqno)
	}
	for _, t := range m.topics {
		b = protowire.AppendTag(b, msgTopicIDs, protowire.BytesType)
		b = protowire.AppendString(b, t)
	}
	return b
}

// fieldIter 依次读出字段，未知字段跳过
func fieldIter(b []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, v, 0); err != nil {
				return err
			}
		case protowire.VarintType:
			u, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			if err := fn(num, typ, nil, u); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: %w", types.ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func unmarshalRPC(b []byte) (*rpc, error) {
	r := &rpc{}
	err := fieldIter(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case rpcSubscriptions:
			s, err := unmarshalSubOpt(v)
			if err != nil {
				return err
			}
			r.subs = append(r.subs, s)
		case rpcPublish:
			m, err := unmarshalMessage(v)
			if err != nil {
				return err
			}
			r.msgs = append(r.msgs, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func unmarshalSubOpt(b []byte) (subOpt, error) {
	var s subOpt
	err := fieldIter(b, func(num protowire.Number, typ protowire.Type, v []byte, u uint64) error {
		switch {
		case num == subSubscribe && typ == protowire.VarintType:
			s.subscribe = protowire.DecodeBool(u)
		case num == subTopicID && typ == protowire.BytesType:
			s.topic = string(v)
		}
		return nil
	})
	if err != nil {
		return subOpt{}, err
	}
	if s.topic == "" {
		return subOpt{}, fmt.Errorf("%w: subscription without topic", types.ErrMalformed)
	}
	return s, nil
}

func unmarshalMessage(b []byte) (*wireMessage, error) {
	m := &wireMessage{}
	err := fieldIter(b, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case msgFrom:
			m.from = append([]byte(nil), v...)
		case msgData:
			m.data = append([]byte(nil), v...)
		case msgSeqno:
			m.seqno = append([]byte(nil), v...)
		case msgTopicIDs:
			m.topics = append(m.topics, string(v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// appendFrame 写入 uvarint 长度前缀与 RPC
func appendFrame(dst []byte, r *rpc) []byte {
	body := r.marshal()
	dst = append(dst, varint.ToUvarint(uint64(len(body)))...)
	return append(dst, body...)
}

// frameError 可跳过的坏帧，流本身仍然可用
type frameError struct {
	err error
}

func (e *frameError) Error() string { return e.err.Error() }
func (e *frameError) Unwrap() error { return e.err }

// readRPC 读取一帧
//
// 超长帧被丢弃并返回 frameError；解码失败同样返回 frameError。
// 其余错误表示流已不可用。
func readRPC(br *bufio.Reader, maxSize int) (*rpc, error) {
	n, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: frame length: %w", types.ErrMalformed, err)
	}
	if n > uint64(maxSize) {
		if _, err := io.CopyN(io.Discard, br, int64(n)); err != nil {
			return nil, err
		}
		return nil, &frameError{fmt.Errorf("%w: %w (%d > %d)", types.ErrMalformed, ErrMessageTooLarge, n, maxSize)}
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	r, err := unmarshalRPC(buf)
	if err != nil {
		return nil, &frameError{err}
	}
	return r, nil
}
