package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

var (
	activeMu sync.Mutex
	active   *levelTable
)

// Setup 按配置安装默认 logger
//
// w 为 nil 时输出到 stderr。返回安装后的 logger。
//
// 示例:
//
//	cfg := logger.ConfigFromEnv()
//	logger.Setup(cfg, nil)
func Setup(cfg *Config, w io.Writer) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ComponentLevels == nil {
		cfg.ComponentLevels = make(map[string]slog.Level)
	}
	if w == nil {
		w = os.Stderr
	}

	levels := &levelTable{cfg: cfg}
	l := slog.New(newHandler(w, cfg, levels))

	activeMu.Lock()
	active = levels
	activeMu.Unlock()

	log.SetDefault(l)
	return l
}

// SetLevel 运行期调整组件级别；component 为空时调整默认级别
//
// 仅对 Setup 安装的 logger 生效。
func SetLevel(component string, level slog.Level) {
	activeMu.Lock()
	levels := active
	activeMu.Unlock()

	if levels != nil {
		levels.set(component, level)
	}
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
