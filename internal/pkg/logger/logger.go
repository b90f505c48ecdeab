// Package logger emits structured JSON log lines with e-mail address redaction.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
)

// Level represents the severity of a log entry.
type Level = slog.Level

const (
	DEBUG = slog.LevelDebug
	INFO  = slog.LevelInfo
	WARN  = slog.LevelWarn
	ERROR = slog.LevelError
)

var (
	level     = new(slog.LevelVar)
	redactPII atomic.Bool
	current   atomic.Pointer[slog.Logger]
)

func init() {
	redactPII.Store(true)
	current.Store(newLogger(os.Stderr))
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}))
}

// SetLevel sets the minimum log level.
func SetLevel(l Level) { level.Set(l) }

// ParseLevel maps "debug", "info", "warn" and "error" to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetRedactPII enables or disables address redaction.
func SetRedactPII(r bool) { redactPII.Store(r) }

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) { current.Store(newLogger(w)) }

// With returns a logger that always carries the given key/value pairs.
func With(fields ...any) *slog.Logger { return current.Load().With(fields...) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...any) { log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...any) { log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...any) { log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...any) { log(ERROR, msg, fields...) }

func log(l Level, msg string, fields ...any) {
	current.Load().Log(context.Background(), l, msg, fields...)
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if !redactPII.Load() {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redactPIIValue(a.Key, a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, redactPIIValue(a.Key, err.Error()))
		}
	}
	return a
}

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || key == "from" || key == "to" || strings.HasSuffix(key, "address") {
		if strings.Contains(val, "@") {
			return emailRegex.ReplaceAllStringFunc(val, maskAddress)
		}
		return val
	}
	// message ids look like addresses but are not personal data
	if strings.Contains(key, "message_id") || key == "in_reply_to" || key == "references" {
		return val
	}
	return emailRegex.ReplaceAllStringFunc(val, maskAddress)
}

// maskAddress keeps the first two characters of the mailbox and the whole
// domain: "john.doe@example.com" becomes "jo***@example.com". Mailboxes of
// two characters or fewer are hidden entirely.
func maskAddress(addr string) string {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
