package upgrader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/pkg/types"
)

const (
	// SelectProtocolID list-exchange 协商头部
	SelectProtocolID = "/floodnet/select/1.0.0"

	// maxFrameSize 单个协商帧上限
	maxFrameSize = 64 * 1024
)

// Negotiator 在字节流上选出双方共同支持的协议
//
// 返回的 Reader 必须替代 rw 用于后续读取（可能持有已缓冲的字节）。
type Negotiator interface {
	Negotiate(rw io.ReadWriteCloser, local []string, listener bool) (selected string, r io.Reader, err error)
}

// NewNegotiator 按名称创建协商器
func NewNegotiator(mode string) (Negotiator, error) {
	switch mode {
	case "", config.NegotiationListExchange:
		return ListExchange{}, nil
	case config.NegotiationMultistream:
		return Multistream{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNegotiation, mode)
	}
}

// SelectProtocol 返回 preferred 中第一个也出现在 other 中的协议
func SelectProtocol(preferred, other []string) (string, bool) {
	set := make(map[string]struct{}, len(other))
	for _, p := range other {
		set[p] = struct{}{}
	}
	for _, p := range preferred {
		if _, ok := set[p]; ok {
			return p, true
		}
	}
	return "", false
}

// ListExchange 交换完整协议列表的协商器
//
// 双方对称地发送列表，以监听方顺序确定选择，无需额外往返确认。
type ListExchange struct{}

// Negotiate 实现 Negotiator
func (ListExchange) Negotiate(rw io.ReadWriteCloser, local []string, listener bool) (string, io.Reader, error) {
	for _, p := range local {
		if p == "" || strings.ContainsRune(p, '\n') {
			return "", nil, fmt.Errorf("%w: %q", types.ErrEmptyProtocolID, p)
		}
	}

	// 写与读并发进行，避免在无缓冲管道上互相等待
	writeErr := make(chan error, 1)
	go func() {
		var buf bytes.Buffer
		appendFrame(&buf, []byte(SelectProtocolID))
		appendFrame(&buf, []byte(strings.Join(local, "\n")))
		_, err := rw.Write(buf.Bytes())
		writeErr <- err
	}()

	br := bufio.NewReader(rw)
	remote, readErr := readList(br)
	if readErr != nil {
		// 关闭以解除可能阻塞的写
		_ = rw.Close()
		<-writeErr
		return "", nil, readErr
	}
	if err := <-writeErr; err != nil {
		return "", nil, fmt.Errorf("write protocol list: %w", err)
	}

	var (
		selected string
		ok       bool
	)
	if listener {
		selected, ok = SelectProtocol(local, remote)
	} else {
		selected, ok = SelectProtocol(remote, local)
	}
	if !ok {
		return "", nil, fmt.Errorf("%w: local=%v remote=%v", types.ErrNoCommonProtocol, local, remote)
	}
	return selected, br, nil
}

func readList(br *bufio.Reader) ([]string, error) {
	header, err := readFrame(br)
	if err != nil {
		return nil, err
	}
	if string(header) != SelectProtocolID {
		return nil, fmt.Errorf("%w: unexpected negotiation header %q", types.ErrMalformed, header)
	}

	body, err := readFrame(br)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	return strings.Split(string(body), "\n"), nil
}

// appendFrame 写入 uvarint(len(msg)+1) + msg + '\n'
func appendFrame(buf *bytes.Buffer, msg []byte) {
	buf.Write(varint.ToUvarint(uint64(len(msg) + 1)))
	buf.Write(msg)
	buf.WriteByte('\n')
}

// readFrame 读取一帧并去掉结尾换行
func readFrame(br *bufio.Reader) ([]byte, error) {
	n, err := varint.ReadUvarint(br)
	if err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", types.ErrMalformed, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: empty frame", types.ErrMalformed)
	}
	if n > maxFrameSize {
		return nil, fmt.Errorf("%w: %w (%d bytes)", types.ErrMalformed, ErrFrameTooLarge, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return nil, err
	}
	if buf[n-1] != '\n' {
		return nil, fmt.Errorf("%w: frame missing trailing newline", types.ErrMalformed)
	}
	return buf[:n-1], nil
}
