package identity

import "errors"

var (
	// ErrGenerateKey 密钥生成失败
	ErrGenerateKey = errors.New("failed to generate key")

	// ErrInvalidKey 密钥格式无效
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidPEM 无效的 PEM 数据
	ErrInvalidPEM = errors.New("invalid PEM data")

	// ErrKeyNotFound 密钥文件不存在
	ErrKeyNotFound = errors.New("key not found")
)
