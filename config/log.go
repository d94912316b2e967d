package config

import "fmt"

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别描述，格式同 FLOODNET_LOG_LEVEL：component=level,...,default
	Level string `json:"level"`

	// Format text 或 json
	Format string `json:"format"`

	// File 输出文件，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	switch c.Format {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}
