package identity

import (
	"crypto/ed25519"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

var logger = log.Logger("core/identity")

const pemTypeEd25519Seed = "ED25519 PRIVATE KEY SEED"

// Save 以 PEM 格式保存私钥种子
//
// 临时文件 + rename 原子写入，文件权限 0600。
func Save(id *Identity, path string) error {
	block := &pem.Block{
		Type:  pemTypeEd25519Seed,
		Bytes: id.priv.Seed(),
	}
	return atomicWriteFile(path, pem.EncodeToMemory(block), 0600)
}

// Load 从 PEM 文件加载身份
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeEd25519Seed {
		return nil, ErrInvalidPEM
	}
	if len(block.Bytes) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed size %d", ErrInvalidKey, len(block.Bytes))
	}
	return FromSeed(block.Bytes)
}

// LoadOrCreate 加载身份；文件不存在且 autoCreate 时生成并保存
//
// path 为空时返回随机身份，不落盘。
func LoadOrCreate(path string, autoCreate bool) (*Identity, error) {
	if path == "" {
		return Generate()
	}

	id, err := Load(path)
	if err == nil {
		logger.Debug("已加载身份", "peer", id.PeerID().ShortString(), "path", path)
		return id, nil
	}
	if !errors.Is(err, ErrKeyNotFound) || !autoCreate {
		return nil, err
	}

	id, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := Save(id, path); err != nil {
		return nil, fmt.Errorf("保存身份失败: %w", err)
	}
	logger.Info("已生成新身份", "peer", id.PeerID().ShortString(), "path", path)
	return id, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-key-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("重命名失败: %w", err)
	}

	success = true
	return nil
}
