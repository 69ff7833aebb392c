// Package rhexlog is a small leveled, structured logger in the style the
// rest of this codebase's ancestry uses: a package-level root logger, child
// loggers carrying bound key/value context, and a text format of
// `t=... lvl=... msg="..." k=v ...`. It intentionally does not pull in a
// third-party structured logging library — logging here is a thin formatter
// over io.Writer, not a feature surface worth a dependency.
package rhexlog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelCrit Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelCrit:
		return "crit"
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// Logger writes leveled, structured log lines with bound context.
type Logger struct {
	mu       *sync.Mutex
	w        io.Writer
	minLevel Level
	ctx      []interface{}
}

var root = &Logger{mu: &sync.Mutex{}, w: os.Stderr, minLevel: LevelInfo}

// Root returns the package-level root logger.
func Root() *Logger { return root }

// SetOutput redirects the root logger's output.
func SetOutput(w io.Writer) { root.mu.Lock(); defer root.mu.Unlock(); root.w = w }

// SetLevel sets the minimum level the root logger emits.
func SetLevel(lvl Level) { root.mu.Lock(); defer root.mu.Unlock(); root.minLevel = lvl }

// New returns a child logger with the given key/value pairs bound to every
// subsequent line it emits.
func (l *Logger) New(ctx ...interface{}) *Logger {
	merged := make([]interface{}, 0, len(l.ctx)+len(ctx))
	merged = append(merged, l.ctx...)
	merged = append(merged, ctx...)
	return &Logger{mu: l.mu, w: l.w, minLevel: l.minLevel, ctx: merged}
}

func New(ctx ...interface{}) *Logger { return root.New(ctx...) }

func (l *Logger) log(lvl Level, msg string, kv []interface{}) {
	if lvl > l.minLevel {
		return
	}
	all := make([]interface{}, 0, len(l.ctx)+len(kv))
	all = append(all, l.ctx...)
	all = append(all, kv...)

	var b strings.Builder
	fmt.Fprintf(&b, "t=%s lvl=%s msg=%q", time.Now().UTC().Format(time.RFC3339Nano), lvl, msg)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(&b, " %v=%v", all[i], formatValue(all[i+1]))
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, b.String())
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case error:
		return fmt.Sprintf("%q", t.Error())
	case string:
		return fmt.Sprintf("%q", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func (l *Logger) Crit(msg string, kv ...interface{})  { l.log(LevelCrit, msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(LevelWarn, msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(LevelInfo, msg, kv) }
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv) }

func Crit(msg string, kv ...interface{})  { root.Crit(msg, kv...) }
func Error(msg string, kv ...interface{}) { root.Error(msg, kv...) }
func Warn(msg string, kv ...interface{})  { root.Warn(msg, kv...) }
func Info(msg string, kv ...interface{})  { root.Info(msg, kv...) }
func Debug(msg string, kv ...interface{}) { root.Debug(msg, kv...) }

// SortedKeys is a small helper used by callers that log maps and want
// deterministic key order in output.
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
