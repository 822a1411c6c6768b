package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Leveled logger shared by the server, the sweep command and the realtime layer.
// - package-level Debugf/Infof/Warnf/Errorf/Fatalf on top of log/slog
// - Init(level, format) selects the level and the text or json handler
// - With(args...) returns a structured child logger for a component

var (
	mu        sync.RWMutex
	outMu     sync.Mutex
	out       io.Writer = os.Stdout
	outFormat = "text"
	level     = new(slog.LevelVar)
	base      *slog.Logger
)

// LevelFatal sits above slog's error level; Fatalf always logs and exits.
const LevelFatal = slog.Level(12)

func init() {
	rebuild()
}

func rebuild() {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelFatal {
					return slog.String(slog.LevelKey, "FATAL")
				}
			}
			return a
		},
	}
	var h slog.Handler
	if outFormat == "json" {
		h = slog.NewJSONHandler(sink{}, opts)
	} else {
		h = slog.NewTextHandler(sink{}, opts)
	}
	base = slog.New(h)
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal)
// and the output format (text or json). Call early during startup. Defaults are info/text.
func Init(l string, f ...string) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(ParseLevel(l))
	if len(f) > 0 {
		if strings.EqualFold(strings.TrimSpace(f[0]), "json") {
			outFormat = "json"
		} else {
			outFormat = "text"
		}
	}
	rebuild()
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(l string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "fatal":
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// sink forwards to the current output so loggers built with With keep
// following SetOutput.
type sink struct{}

func (sink) Write(p []byte) (int, error) {
	outMu.Lock()
	defer outMu.Unlock()
	return out.Write(p)
}

// SetOutput redirects all log output. Used by tests to capture lines.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// With returns a structured logger that always carries the given key-value pairs,
// e.g. logger.With("component", "gateway").
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

func Debugf(format string, v ...interface{}) {
	current().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...interface{}) {
	current().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...interface{}) {
	current().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	current().Error(fmt.Sprintf(format, v...))
}

func Fatalf(format string, v ...interface{}) {
	current().Log(context.Background(), LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	switch l := level.Level(); {
	case l >= LevelFatal:
		return "fatal"
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
