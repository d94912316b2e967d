package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseAddress_RoundTrip 测试规范地址的解析与渲染往返
func TestParseAddress_RoundTrip(t *testing.T) {
	cases := []string{
		"/ip4/1.2.3.4/tcp/80",
		"/ip4/127.0.0.1/tcp/1000/ws",
		"/ip4/0.0.0.0/tcp/0",
		"/ip6/::1/udp/4001/quic-v1",
		"/dns4/example.com/tcp/443/ws",
	}

	for _, c := range cases {
		a, err := ParseAddress(c)
		require.NoError(t, err, c)
		assert.Equal(t, c, a.String())

		b, err := ParseAddress(a.String())
		require.NoError(t, err)
		assert.True(t, a.Equal(b))
	}

	t.Log("✅ 地址往返正确")
}

// TestParseAddress_Malformed 测试非法地址
func TestParseAddress_Malformed(t *testing.T) {
	cases := []string{
		"",
		"ip4/1.2.3.4/tcp/80",
		"/ip4/999.1.1.1/tcp/80",
		"/ip4/1.2.3.4/tcp/notaport",
		"/nosuchproto/1",
	}

	for _, c := range cases {
		_, err := ParseAddress(c)
		assert.ErrorIs(t, err, ErrInvalidAddress, c)
	}
}

// TestWithResolvedPort 测试端口替换
func TestWithResolvedPort(t *testing.T) {
	a := MustParseAddress("/ip4/0.0.0.0/tcp/0/ws")

	b, err := WithResolvedPort(a, 4001)
	require.NoError(t, err)
	assert.Equal(t, "/ip4/0.0.0.0/tcp/4001/ws", b.String())

	// 原地址不变
	assert.Equal(t, "/ip4/0.0.0.0/tcp/0/ws", a.String())

	p, ok := b.Port()
	require.True(t, ok)
	assert.Equal(t, 4001, p)

	q := MustParseAddress("/ip6/::/udp/0/quic-v1")
	q2, err := WithResolvedPort(q, 9000)
	require.NoError(t, err)
	assert.Equal(t, "/ip6/::/udp/9000/quic-v1", q2.String())
}

// TestWithResolvedPort_NoPort 测试没有端口段的地址
func TestWithResolvedPort_NoPort(t *testing.T) {
	a := MustParseAddress("/ip4/1.2.3.4")
	_, err := WithResolvedPort(a, 1)
	assert.ErrorIs(t, err, ErrNoPort)

	_, err = WithResolvedPort(MustParseAddress("/ip4/1.2.3.4/tcp/1"), 70000)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// TestAddress_Segments 测试分段
func TestAddress_Segments(t *testing.T) {
	a := MustParseAddress("/ip4/127.0.0.1/tcp/1000/ws")
	segs := a.Segments()
	require.Len(t, segs, 3)

	assert.Equal(t, "ip4", segs[0].Name)
	assert.Equal(t, "127.0.0.1", segs[0].Value)
	assert.Equal(t, "tcp", segs[1].Name)
	assert.Equal(t, "1000", segs[1].Value)
	assert.Equal(t, "ws", segs[2].Name)
	assert.Empty(t, segs[2].Value)

	assert.True(t, a.Has(ProtoWS))
	assert.False(t, a.Has(ProtoQUICV1))
	assert.Equal(t, ProtoWS, a.Last())
}

// TestAddress_EncapsulateDecapsulate 测试封装与解封
func TestAddress_EncapsulateDecapsulate(t *testing.T) {
	base := MustParseAddress("/ip4/127.0.0.1/tcp/1000")
	ws := MustParseAddress("/ws")

	full := base.Encapsulate(ws)
	assert.Equal(t, "/ip4/127.0.0.1/tcp/1000/ws", full.String())
	assert.True(t, full.Decapsulate(ws).Equal(base))
}

// TestAddress_IsUnspecified 测试未指定地址判断
func TestAddress_IsUnspecified(t *testing.T) {
	assert.True(t, MustParseAddress("/ip4/0.0.0.0/tcp/1").IsUnspecified())
	assert.True(t, MustParseAddress("/ip4/127.0.0.1/tcp/0").IsUnspecified())
	assert.True(t, MustParseAddress("/ip6/::/tcp/1").IsUnspecified())
	assert.False(t, MustParseAddress("/ip4/127.0.0.1/tcp/1").IsUnspecified())
}

// TestAddress_DialArgs 测试拨号参数
func TestAddress_DialArgs(t *testing.T) {
	network, host, err := MustParseAddress("/ip4/127.0.0.1/tcp/4001").DialArgs()
	require.NoError(t, err)
	assert.Equal(t, "tcp4", network)
	assert.Equal(t, "127.0.0.1:4001", host)
}

// TestAddress_JSON 测试地址出现在配置中的 JSON 形式
func TestAddress_JSON(t *testing.T) {
	type wrapper struct {
		Addr Address `json:"addr"`
	}

	in := wrapper{Addr: MustParseAddress("/ip4/1.2.3.4/tcp/80")}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"addr":"/ip4/1.2.3.4/tcp/80"}`, string(data))

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Addr.Equal(out.Addr))

	err = json.Unmarshal([]byte(`{"addr":"garbage"}`), &out)
	assert.Error(t, err)
}
