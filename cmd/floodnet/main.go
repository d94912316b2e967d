// Package main 提供 floodnet 命令行入口
//
// 示例：
//
//	floodnet --listen /ip4/0.0.0.0/tcp/4001 --topic chat
//	floodnet --listen /ip4/0.0.0.0/tcp/0 /ip4/127.0.0.1/tcp/4001
//	floodnet --carrier browser /ip4/127.0.0.1/tcp/4002/ws
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/dep2p/go-floodnet"
	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/core/swarm"
	"github.com/dep2p/go-floodnet/internal/protocol/identify"
	"github.com/dep2p/go-floodnet/internal/util/logger"
	pkgif "github.com/dep2p/go-floodnet/pkg/interfaces"
	"github.com/dep2p/go-floodnet/pkg/lib/log"
	"github.com/dep2p/go-floodnet/pkg/types"
)

var cliLogger = log.Logger("cmd/floodnet")

// flags 命令行参数
type flags struct {
	listenAddrs  *[]string
	topic        *string
	configFile   *string
	carrier      *string
	identityFile *string
	protocols    *[]string
	metricsAddr  *string
	logLevel     *string
	logFile      *string
	peers        *[]string
}

func newApp() (*kingpin.Application, *flags) {
	app := kingpin.New("floodnet", "Flood publish/subscribe over a pluggable p2p stack.")
	app.Version(floodnet.VersionInfo())
	app.HelpFlag.Short('h')

	f := &flags{
		listenAddrs:  app.Flag("listen", "Address to listen on (repeatable).").Short('l').PlaceHolder("ADDR").Strings(),
		topic:        app.Flag("topic", "Topic to join.").Short('t').Default("chat").String(),
		configFile:   app.Flag("config", "JSON config file.").Short('c').ExistingFile(),
		carrier:      app.Flag("carrier", "Carrier preset.").Enum(config.PresetNative, config.PresetBrowser),
		identityFile: app.Flag("identity", "Key file, created when missing.").String(),
		protocols:    app.Flag("protocol", "Application protocol in preference order (repeatable).").Enums(config.ProtocolFloodSub, config.ProtocolIdentify, config.ProtocolHello),
		metricsAddr:  app.Flag("metrics", "Serve Prometheus metrics on host:port.").String(),
		logLevel:     app.Flag("log-level", "Log level spec, e.g. floodsub=debug,info.").String(),
		logFile:      app.Flag("log-file", "Write logs to file instead of stderr.").String(),
		peers:        app.Arg("peer", "Peer address to dial.").Strings(),
	}
	return app, f
}

func main() {
	app, f := newApp()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	if err := run(f); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(f *flags) error {
	cfg, err := buildConfig(f)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	node, err := floodnet.New(
		floodnet.WithConfig(cfg),
		floodnet.OnGreeting(func(info types.ConnInfo, g []byte) {
			fmt.Printf("> %s\n", g)
		}),
		floodnet.OnIdentify(func(info types.ConnInfo, remote identify.Info) {
			fmt.Printf("Identified %s (%s) at %s\n", remote.PeerID, remote.AgentVersion, info.Remote)
		}),
	)
	if err != nil {
		return err
	}
	if err := node.Start(ctx); err != nil {
		return err
	}
	defer node.Close()

	printBanner(os.Stdout, node.ID(), node.ListenAddrs(), node.FullAddrs())

	go printEvents(node.Events())

	if node.PubSub() != nil {
		sub, err := node.Subscribe(*f.topic)
		if err != nil {
			return err
		}
		go printMessages(ctx, sub)
		go publishLines(ctx, node, *f.topic, os.Stdin)
	}

	select {
	case <-ctx.Done():
		cliLogger.Info("收到退出信号")
		return nil
	case <-node.Done():
		return node.Err()
	}
}

// printBanner 输出本地标识、绑定地址与可分享给对端的完整地址
func printBanner(w io.Writer, id types.PeerID, listen, full []types.Address) {
	fmt.Fprintf(w, "Local peer id: %s\n", id)
	for _, a := range listen {
		fmt.Fprintf(w, "Now listening on %s\n", a)
	}
	for _, a := range full {
		fmt.Fprintf(w, "Dial with: %s\n", a)
	}
}

// buildConfig 合并配置文件与命令行参数，命令行优先
func buildConfig(f *flags) (*config.Config, error) {
	cfg := config.NewConfig()
	if *f.configFile != "" {
		loaded, err := config.LoadFile(*f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *f.carrier != "" {
		if err := config.ApplyPreset(cfg, *f.carrier); err != nil {
			return nil, err
		}
	}
	if len(*f.listenAddrs) > 0 {
		cfg.Swarm.ListenAddrs = append([]string(nil), *f.listenAddrs...)
	}
	cfg.Swarm.Peers = append(cfg.Swarm.Peers, *f.peers...)
	if *f.identityFile != "" {
		cfg.Identity.KeyFile = *f.identityFile
		cfg.Identity.AutoGenerate = true
	}
	if len(*f.protocols) > 0 {
		cfg.Upgrader.Protocols = append([]string(nil), *f.protocols...)
	}
	if *f.metricsAddr != "" {
		cfg.Metrics.Enable = true
		cfg.Metrics.ListenAddr = *f.metricsAddr
	}
	if *f.logLevel != "" {
		cfg.Log.Level = *f.logLevel
	}
	if *f.logFile != "" {
		cfg.Log.File = *f.logFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(lc config.LogConfig) (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if lc.File != "" {
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger.Setup(logger.FromUnified(lc), w)
	return closeFn, nil
}

func printEvents(events <-chan swarm.Event) {
	for ev := range events {
		switch ev.Type {
		case swarm.EventIncoming:
			fmt.Printf("Incoming connection from %s\n", ev.Addr)
		case swarm.EventDialed:
			fmt.Printf("Connected to %s\n", ev.Addr)
		case swarm.EventDialFailed:
			fmt.Printf("Dial %s failed: %v\n", ev.Addr, ev.Err)
		case swarm.EventUpgraded:
			cliLogger.Debug("协议已升级", "protocol", string(ev.Protocol), "remote", ev.Conn.Remote.String())
		case swarm.EventConnClosed:
			fmt.Printf("Connection to %s closed\n", ev.Conn.Remote)
		}
	}
}

func printMessages(ctx context.Context, sub pkgif.Subscription) {
	for {
		m, err := sub.Next(ctx)
		if err != nil {
			return
		}
		fmt.Printf("> %s\n", m.Data)
	}
}

func publishLines(ctx context.Context, node *floodnet.Node, topic string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := node.Publish(ctx, topic, []byte(line)); err != nil {
			fmt.Fprintf(os.Stderr, "publish: %v\n", err)
		}
	}
}
