package main

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-floodnet/config"
	"github.com/dep2p/go-floodnet/internal/util/addrutil"
	"github.com/dep2p/go-floodnet/pkg/types"
)

// TestBuildConfig 测试命令行参数覆盖配置
func TestBuildConfig(t *testing.T) {
	app, f := newApp()
	_, err := app.Parse([]string{
		"--listen", "/ip4/127.0.0.1/tcp/0",
		"--topic", "room",
		"--protocol", "hello", "--protocol", "floodsub",
		"--log-level", "swarm=debug,warn",
		"/ip4/127.0.0.1/tcp/4001",
	})
	require.NoError(t, err)

	cfg, err := buildConfig(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/0"}, cfg.Swarm.ListenAddrs)
	assert.Equal(t, []string{"/ip4/127.0.0.1/tcp/4001"}, cfg.Swarm.Peers)
	assert.Equal(t, []string{config.ProtocolHello, config.ProtocolFloodSub}, cfg.Upgrader.Protocols)
	assert.Equal(t, "swarm=debug,warn", cfg.Log.Level)
	assert.Equal(t, "room", *f.topic)

	t.Log("✅ 命令行参数合并正确")
}

// TestBuildConfig_BrowserCarrier 测试浏览器承载预设
func TestBuildConfig_BrowserCarrier(t *testing.T) {
	app, f := newApp()
	_, err := app.Parse([]string{"--carrier", "browser", "/ip4/127.0.0.1/tcp/4002/ws"})
	require.NoError(t, err)

	cfg, err := buildConfig(f)
	require.NoError(t, err)
	assert.True(t, cfg.Transport.IsDialOnly())
	assert.Empty(t, cfg.Swarm.ListenAddrs)

	app, _ = newApp()
	_, err = app.Parse([]string{"--carrier", "pigeon"})
	assert.Error(t, err)

	t.Log("✅ 浏览器预设正确")
}

// TestPrintBanner 测试监听行输出绑定地址，完整地址单独成行
func TestPrintBanner(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	id, err := types.PeerIDFromPublicKey(pub)
	require.NoError(t, err)

	bound := types.MustParseAddress("/ip4/127.0.0.1/tcp/4001")
	full, err := addrutil.BuildFullAddr(bound, id)
	require.NoError(t, err)

	var buf bytes.Buffer
	printBanner(&buf, id, []types.Address{bound}, []types.Address{full})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Local peer id: "+id.String(), lines[0])
	assert.Equal(t, "Now listening on /ip4/127.0.0.1/tcp/4001", lines[1])
	assert.Equal(t, "Dial with: "+full.String(), lines[2])
	assert.NotContains(t, lines[1], "/p2p/")

	t.Log("✅ 启动信息格式正确")
}
