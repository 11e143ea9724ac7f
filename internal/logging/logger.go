// Package logging provides structured JSON logging with request and run
// identifiers pulled from the context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fields represents structured log fields
type Fields map[string]interface{}

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	runIDKey     contextKey = "run_id"
)

// Logger is the logging surface used across the module. Messages follow the
// "[TAG] message" convention.
type Logger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields, err error)
}

// StructuredLogger writes JSON log lines through logrus.
type StructuredLogger struct {
	entry *logrus.Entry
}

// New creates a JSON logger writing to stderr. Unknown level names fall back
// to info.
func New(service, version, level string) *StructuredLogger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	hostname, _ := os.Hostname()
	return &StructuredLogger{entry: base.WithFields(logrus.Fields{
		"service":  service,
		"version":  version,
		"hostname": hostname,
	})}
}

// NewNop returns a logger that discards everything.
func NewNop() *StructuredLogger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.PanicLevel)
	return &StructuredLogger{entry: logrus.NewEntry(base)}
}

// SetOutput sets the output destination for logs
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.entry.Logger.SetOutput(w)
}

// SetLevel sets the minimum log level
func (l *StructuredLogger) SetLevel(level logrus.Level) {
	l.entry.Logger.SetLevel(level)
}

func (l *StructuredLogger) Debug(ctx context.Context, message string, fields Fields) {
	l.with(ctx, fields, nil).Debug(message)
}

func (l *StructuredLogger) Info(ctx context.Context, message string, fields Fields) {
	l.with(ctx, fields, nil).Info(message)
}

func (l *StructuredLogger) Warn(ctx context.Context, message string, fields Fields) {
	l.with(ctx, fields, nil).Warn(message)
}

func (l *StructuredLogger) Error(ctx context.Context, message string, fields Fields, err error) {
	l.with(ctx, fields, err).Error(message)
}

// WithFields returns a logger that adds fields to every entry.
func (l *StructuredLogger) WithFields(fields Fields) *StructuredLogger {
	return &StructuredLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *StructuredLogger) with(ctx context.Context, fields Fields, err error) *logrus.Entry {
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if ctx != nil {
		if requestID := RequestID(ctx); requestID != "" {
			entry = entry.WithField(string(requestIDKey), requestID)
		}
		if runID := RunID(ctx); runID != "" {
			entry = entry.WithField(string(runIDKey), runID)
		}
	}
	if err != nil {
		entry = entry.WithError(err)
	}
	return entry
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestID(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

func RunID(ctx context.Context) string {
	value, _ := ctx.Value(runIDKey).(string)
	return value
}

var _ Logger = (*StructuredLogger)(nil)
