package transport

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/identity"
	"github.com/dep2p/go-floodnet/internal/core/transport/quic"
	"github.com/dep2p/go-floodnet/internal/core/transport/tcp"
	"github.com/dep2p/go-floodnet/internal/core/transport/websocket"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
)

// NewFromConfig 按配置装配承载
//
// 承载集合及其顺序由 cfg.ResolvedCarriers() 决定；WebSocket 复用同一个 TCP 传输拨号和监听。
// priv 用作 QUIC 证书密钥，可为空。
func NewFromConfig(cfg config.TransportConfig, priv ed25519.PrivateKey) (*Combinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tcpCfg := tcp.Config{
		DialTimeout:     cfg.DialTimeout.Duration(),
		KeepAlivePeriod: cfg.TCP.KeepAlivePeriod.Duration(),
		NoDelay:         cfg.TCP.NoDelay,
	}

	var (
		ts       []pkgif.Transport
		tcpInner *tcp.Transport
	)
	innerTCP := func() *tcp.Transport {
		if tcpInner == nil {
			tcpInner = tcp.New(tcpCfg)
		}
		return tcpInner
	}

	for _, name := range cfg.ResolvedCarriers() {
		switch name {
		case config.CarrierTCP:
			ts = append(ts, innerTCP())
		case config.CarrierWebSocket:
			ts = append(ts, websocket.New(websocket.Config{
				ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
				WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
				HandshakeTimeout: cfg.WebSocket.HandshakeTimeout.Duration(),
				Path:             cfg.WebSocket.Path,
				DialOnly:         cfg.IsDialOnly(),
			}, innerTCP()))
		case config.CarrierQUIC:
			qt, err := quic.New(quic.Config{
				DialTimeout:        cfg.DialTimeout.Duration(),
				MaxIdleTimeout:     cfg.QUIC.MaxIdleTimeout.Duration(),
				KeepAlivePeriod:    cfg.QUIC.KeepAlivePeriod.Duration(),
				MaxIncomingStreams: cfg.QUIC.MaxIncomingStreams,
				PrivateKey:         priv,
			})
			if err != nil {
				return nil, fmt.Errorf("创建 QUIC 传输失败: %w", err)
			}
			ts = append(ts, qt)
		}
	}

	logger.Info("传输装配完成", "carriers", cfg.ResolvedCarriers(), "dialOnly", cfg.IsDialOnly())
	return NewCombinator(ts...), nil
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(
			ProvideTransport,
			func(c *Combinator) pkgif.Transport { return c },
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideTransport 从统一配置提供组合传输
func ProvideTransport(cfg *config.Config, id *identity.Identity) (*Combinator, error) {
	return NewFromConfig(cfg.Transport, id.PrivateKey())
}

func registerLifecycle(lc fx.Lifecycle, c *Combinator) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return c.Close()
		},
	})
}
