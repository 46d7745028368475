// Package snowlog provides structured logging with connector/task context.
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the sink core (structured fields)
//   - SugaredLogger: printf-style logging for the demo harness/CLI surface
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package snowlog

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TaskContext identifies the (topic, partition) a logger is scoped to.
// Every log entry from a per-partition component carries these fields.
type TaskContext struct {
	Connector string
	Topic     string
	Partition int32
}

// Logger wraps zap with fixed connector/task context fields.
type Logger struct {
	zap *zap.Logger
}

// SugaredLogger provides printf-style logging for CLI/debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// New creates a Logger scoped to the given task context. Output defaults
// to os.Stderr.
func New(tc TaskContext) *Logger {
	return newWithWriter(tc, os.Stderr)
}

// WithOutput returns a new Logger writing to a different destination.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)
	return &Logger{zap: l.zap.WithOptions(zap.WrapCore(func(zapcore.Core) zapcore.Core { return core }))}
}

func newWithWriter(tc TaskContext, w io.Writer) *Logger {
	core := zapcore.NewCore(jsonEncoder(), zapcore.AddSync(w), zapcore.DebugLevel)

	fields := []zap.Field{
		zap.String("connector", tc.Connector),
		zap.String("topic", tc.Topic),
		zap.Int32("partition", tc.Partition),
	}

	return &Logger{zap: zap.New(core).With(fields...)}
}

func jsonEncoder() zapcore.Encoder {
	return zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	})
}

func (l *Logger) Debug(message string, fields map[string]any) { l.zap.Debug(message, zap.Any("fields", fields)) }
func (l *Logger) Info(message string, fields map[string]any)  { l.zap.Info(message, zap.Any("fields", fields)) }
func (l *Logger) Warn(message string, fields map[string]any)  { l.zap.Warn(message, zap.Any("fields", fields)) }
func (l *Logger) Error(message string, fields map[string]any) { l.zap.Error(message, zap.Any("fields", fields)) }

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

func (s *SugaredLogger) Debugf(template string, args ...any) { s.sugar.Debugf(template, args...) }
func (s *SugaredLogger) Infof(template string, args ...any)  { s.sugar.Infof(template, args...) }
func (s *SugaredLogger) Warnf(template string, args ...any)  { s.sugar.Warnf(template, args...) }
func (s *SugaredLogger) Errorf(template string, args ...any) { s.sugar.Errorf(template, args...) }
