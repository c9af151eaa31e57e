package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"media-service/pkg/config"
)

type ctxKey struct{}

// Logger wraps a logrus logger with the field-map call style used across the service.
type Logger struct {
	entry *logrus.Entry
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = newDefault()
)

func newDefault() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: logrus.NewEntry(l)}
}

// NewLogger builds a logger from the log section of the config.
func NewLogger(cfg *config.Config) *Logger {
	if cfg == nil {
		return newDefault()
	}
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(cfg.Log.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	out := &Logger{}
	var w io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Output)) {
	case "stderr":
		w = os.Stderr
	case "file":
		if cfg.Log.Filename != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Log.Filename), 0o755); err == nil {
				if f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
					out.file = f
					w = f
				}
			}
		}
	}
	l.SetOutput(w)
	out.entry = logrus.NewEntry(l).WithField("service", "media-service")
	return out
}

// NewWithWriter returns a logger writing JSON lines to w, mostly for tests.
func NewWithWriter(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{entry: logrus.NewEntry(l)}
}

// SetGlobalLogger replaces the logger used by the package-level helpers.
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the current package-level logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// ContextWithRequestID stores the request id for WithContext.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext returns the request id placed by the request middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithContext returns a logger carrying the request id, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return &Logger{entry: l.entry.WithField("request_id", id), file: l.file}
	}
	return l
}

// WithFields returns a logger with the given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(fields), file: l.file}
}

func (l *Logger) with(fields []map[string]interface{}) *logrus.Entry {
	e := l.entry
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(f)
		}
	}
	return e
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) { l.with(fields).Debug(msg) }
func (l *Logger) Info(msg string, fields ...map[string]interface{})  { l.with(fields).Info(msg) }
func (l *Logger) Warn(msg string, fields ...map[string]interface{})  { l.with(fields).Warn(msg) }
func (l *Logger) Error(msg string, fields ...map[string]interface{}) { l.with(fields).Error(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// Close releases the log file, if one was opened.
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Sync()
		_ = l.file.Close()
		l.file = nil
	}
}

// WithContext is GetGlobalLogger().WithContext(ctx).
func WithContext(ctx context.Context) *Logger { return GetGlobalLogger().WithContext(ctx) }

func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().Errorf(format, args...) }

// Fatal logs and exits the process.
func Fatal(msg string) {
	GetGlobalLogger().entry.Fatal(msg)
}

// Fatalf logs a formatted message and exits the process.
func Fatalf(format string, args ...interface{}) {
	Fatal(fmt.Sprintf(format, args...))
}
