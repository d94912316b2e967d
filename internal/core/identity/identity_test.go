package identity

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGenerate 测试随机身份生成
func TestGenerate(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a.PeerID(), b.PeerID())
	require.NoError(t, a.PeerID().Validate())

	sig := a.Sign([]byte("data"))
	assert.True(t, a.Verify([]byte("data"), sig))
	assert.False(t, b.Verify([]byte("data"), sig))

	t.Log("✅ 身份生成正确")
}

// TestFromSeed_Deterministic 测试种子派生确定性
func TestFromSeed_Deterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.PeerID(), b.PeerID())

	_, err = FromSeed([]byte{1})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

// TestLoadOrCreate 测试身份持久化
func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "node.key")

	_, err := LoadOrCreate(path, false)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	created, err := LoadOrCreate(path, true)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadOrCreate(path, true)
	require.NoError(t, err)
	assert.Equal(t, created.PeerID(), loaded.PeerID())
}

// TestLoad_InvalidPEM 测试损坏的密钥文件
func TestLoad_InvalidPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.key")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidPEM)
}

// TestLoadOrCreate_Ephemeral 测试未配置路径时的临时身份
func TestLoadOrCreate_Ephemeral(t *testing.T) {
	a, err := LoadOrCreate("", true)
	require.NoError(t, err)
	b, err := LoadOrCreate("", true)
	require.NoError(t, err)
	assert.NotEqual(t, a.PeerID(), b.PeerID())
}
