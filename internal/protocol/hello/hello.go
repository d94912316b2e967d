// Package hello 实现原始字节流问候协议
//
// 监听方写出问候语并关闭写端，拨号方读到 EOF 为止。
package hello

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var logger = log.Logger("protocol/hello")

const (
	// ProtocolID Hello 协议 ID
	ProtocolID types.ProtocolID = "/floodnet/hello/1.0.0"

	// DefaultGreeting 默认问候语
	DefaultGreeting = "hello world"

	// DefaultTimeout 单次问候超时
	DefaultTimeout = 10 * time.Second

	// MaxGreetingSize 读取上限
	MaxGreetingSize = 4096
)

// ErrGreetingTooLarge 问候语超过上限
var ErrGreetingTooLarge = errors.New("hello: greeting too large")

// 确保实现了接口
var (
	_ pkgif.ProtocolHandler = (*Service)(nil)
	_ pkgif.UpgradeOutput   = (*Output)(nil)
)

// GreetingFunc 拨号方收到问候语时的回调
type GreetingFunc func(info types.ConnInfo, greeting []byte)

// Service Hello 服务
type Service struct {
	greeting []byte
	timeout  time.Duration
	onRecv   GreetingFunc
}

// Option 服务选项
type Option func(*Service)

// WithGreeting 设置问候语
func WithGreeting(s string) Option {
	return func(svc *Service) { svc.greeting = []byte(s) }
}

// WithTimeout 设置问候超时
func WithTimeout(d time.Duration) Option {
	return func(svc *Service) { svc.timeout = d }
}

// OnGreeting 设置收到问候语的回调
func OnGreeting(f GreetingFunc) Option {
	return func(svc *Service) { svc.onRecv = f }
}

// NewService 创建 Hello 服务
func NewService(opts ...Option) *Service {
	s := &Service{
		greeting: []byte(DefaultGreeting),
		timeout:  DefaultTimeout,
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

// Upgrade 接管原始字节流，读写在任务中进行
func (s *Service) Upgrade(_ context.Context, st pkgif.MuxedStream, info types.ConnInfo) (pkgif.UpgradeOutput, error) {
	return &Output{Stream: st, Conn: info, svc: s}, nil
}

// Output Hello 升级产物
type Output struct {
	// Stream 协商后的原始字节流
	Stream pkgif.MuxedStream

	// Conn 连接信息
	Conn types.ConnInfo

	svc *Service
}

// Protocol 实现 UpgradeOutput
func (o *Output) Protocol() types.ProtocolID {
	return ProtocolID
}

// Task 返回问候任务
//
// 监听方发送问候语，拨号方接收并回调。
func (o *Output) Task() pkgif.Task {
	return func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() { _ = o.Stream.Reset() })
		defer stop()
		_ = o.Stream.SetDeadline(time.Now().Add(o.svc.timeout))

		if o.Conn.Direction.IsListener() {
			return o.send()
		}
		greeting, err := o.Receive()
		if err != nil {
			return err
		}
		if o.svc.onRecv != nil {
			o.svc.onRecv(o.Conn, greeting)
		}
		return nil
	}
}

func (o *Output) send() error {
	defer o.Stream.Close()
	if _, err := o.Stream.Write(o.svc.greeting); err != nil {
		_ = o.Stream.Reset()
		return fmt.Errorf("write greeting: %w", err)
	}
	if err := o.Stream.CloseWrite(); err != nil {
		return fmt.Errorf("close write: %w", err)
	}
	logger.Debug("已发送问候", "remote", o.Conn.Remote.String())
	return nil
}

// Receive 读取问候语直到 EOF
func (o *Output) Receive() ([]byte, error) {
	defer o.Stream.Close()
	b, err := io.ReadAll(io.LimitReader(o.Stream, MaxGreetingSize+1))
	if err != nil {
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	if len(b) > MaxGreetingSize {
		_ = o.Stream.Reset()
		return nil, ErrGreetingTooLarge
	}
	logger.Debug("收到问候", "remote", o.Conn.Remote.String(), "size", len(b))
	return b, nil
}
