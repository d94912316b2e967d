// Package logger 为 floodnet 安装统一的 slog 默认 handler
//
// 支持通过环境变量配置日志级别：
//   - FLOODNET_LOG_LEVEL: 设置日志级别，支持按组件配置
//     格式: 组件=级别,组件=级别,默认级别
//     示例: floodsub=debug,transport=warn,info
//   - FLOODNET_LOG_FORMAT: 日志格式 (text 或 json)
//   - FLOODNET_LOG_ADD_SOURCE: 是否输出源码位置
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/dep2p/go-floodnet/config"
)

// 环境变量名
const (
	EnvLevel     = "FLOODNET_LOG_LEVEL"
	EnvFormat    = "FLOODNET_LOG_FORMAT"
	EnvAddSource = "FLOODNET_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// ParseFormat 解析格式名称，未知名称回退为文本
func ParseFormat(s string) LogFormat {
	if strings.EqualFold(strings.TrimSpace(s), "json") {
		return FormatJSON
	}
	return FormatText
}

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// ComponentLevels 各组件的日志级别
	//
	// 键可以是完整组件名（core/swarm）或其最后一段（swarm）。
	ComponentLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DefaultLevel:    slog.LevelInfo,
		ComponentLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}
}

// LevelFor 获取指定组件的日志级别
func (c *Config) LevelFor(component string) slog.Level {
	if level, ok := c.ComponentLevels[component]; ok {
		return level
	}
	if i := strings.LastIndex(component, "/"); i >= 0 {
		if level, ok := c.ComponentLevels[component[i+1:]]; ok {
			return level
		}
	}
	return c.DefaultLevel
}

// ConfigFromEnv 从环境变量解析配置
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if levelStr := os.Getenv(EnvLevel); levelStr != "" {
		ApplyLevelSpec(cfg, levelStr)
	}

	if formatStr := os.Getenv(EnvFormat); formatStr != "" {
		cfg.Format = ParseFormat(formatStr)
	}

	if addSourceStr := os.Getenv(EnvAddSource); addSourceStr != "" {
		cfg.AddSource = addSourceStr != "false" && addSourceStr != "0"
	}

	return cfg
}

// FromUnified 从统一配置创建日志配置，环境变量优先
func FromUnified(lc config.LogConfig) *Config {
	cfg := DefaultConfig()
	ApplyLevelSpec(cfg, lc.Level)
	cfg.Format = ParseFormat(lc.Format)

	if spec := os.Getenv(EnvLevel); spec != "" {
		ApplyLevelSpec(cfg, spec)
	}
	if f := os.Getenv(EnvFormat); f != "" {
		cfg.Format = ParseFormat(f)
	}
	if v := os.Getenv(EnvAddSource); v != "" {
		cfg.AddSource = v != "false" && v != "0"
	}
	return cfg
}

// ApplyLevelSpec 解析日志级别配置字符串并写入 cfg
// 格式: component=level,component=level,defaultLevel
func ApplyLevelSpec(cfg *Config, spec string) {
	if cfg.ComponentLevels == nil {
		cfg.ComponentLevels = make(map[string]slog.Level)
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if k, v, ok := strings.Cut(part, "="); ok {
			if level, ok := ParseLevel(strings.TrimSpace(v)); ok {
				cfg.ComponentLevels[strings.TrimSpace(k)] = level
			}
			continue
		}

		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
