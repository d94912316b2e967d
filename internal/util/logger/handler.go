package logger

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/dep2p/go-floodnet/pkg/lib/log"
)

// levelTable 组件级别表，所有派生 handler 共享
type levelTable struct {
	mu  sync.RWMutex
	cfg *Config
}

func (t *levelTable) levelFor(component string) slog.Level {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.LevelFor(component)
}

func (t *levelTable) set(component string, level slog.Level) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if component == "" {
		t.cfg.DefaultLevel = level
		return
	}
	t.cfg.ComponentLevels[component] = level
}

// componentHandler 按 component 属性过滤级别的 slog.Handler
//
// LazyLogger 通过 With("component", name) 派生 logger，
// WithAttrs 捕获该属性后，Enabled 使用对应组件的级别。
type componentHandler struct {
	component string
	levels    *levelTable
	inner     slog.Handler
}

func newHandler(w io.Writer, cfg *Config, levels *levelTable) *componentHandler {
	opts := &slog.HandlerOptions{
		// 真正的过滤在 Enabled 中进行
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelToString(lvl))
				}
			}
			return a
		},
	}

	var inner slog.Handler
	if cfg.Format == FormatJSON {
		inner = slog.NewJSONHandler(w, opts)
	} else {
		inner = slog.NewTextHandler(w, opts)
	}

	return &componentHandler{levels: levels, inner: inner}
}

// Enabled 检查是否启用指定级别
func (h *componentHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.levels.levelFor(h.component)
}

// Handle 处理日志记录
func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

// WithAttrs 添加属性
func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == log.ComponentKey {
			component = a.Value.String()
		}
	}
	return &componentHandler{
		component: component,
		levels:    h.levels,
		inner:     h.inner.WithAttrs(attrs),
	}
}

// WithGroup 添加组
func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{
		component: h.component,
		levels:    h.levels,
		inner:     h.inner.WithGroup(name),
	}
}

func levelToString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

// discardHandler 丢弃所有日志的 Handler（用于测试）
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
