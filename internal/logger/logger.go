// Package logger holds the process-wide zap logger. Until Init is called
// every message is discarded.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance.
var Log = zap.NewNop()

// Sugar is the sugared logger for printf-style messages.
var Sugar = Log.Sugar()

// Rotation controls how the log file is rotated. Zero fields take the
// defaults of DefaultRotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultRotation keeps five compressed 20 MB files for at most 30 days.
var DefaultRotation = Rotation{MaxSizeMB: 20, MaxBackups: 5, MaxAgeDays: 30, Compress: true}

// Options describes where log entries go.
type Options struct {
	Level    string    // debug, info, warn or error; empty means info
	File     string    // Rotated log file, none if empty
	Rotation Rotation  // Applies to File
	Console  io.Writer // Colored human output, none if nil
}

// Init installs a logger writing to stderr and, if logFile is set, to a
// rotated file.
func Init(level string, logFile string) error {
	l, err := New(Options{Level: level, File: logFile, Rotation: DefaultRotation, Console: os.Stderr})
	if err != nil {
		return err
	}
	set(l)
	return nil
}

// New builds a logger without installing it.
func New(opts Options) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if opts.Level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(opts.Level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	var cores []zapcore.Core
	if opts.Console != nil {
		enc := encoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(opts.Console), lvl))
	}
	if opts.File != "" {
		rot := opts.Rotation.withDefaults()
		w := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
			MaxAge:     rot.MaxAgeDays,
			Compress:   rot.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(w), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// InitNop discards all log output.
func InitNop() {
	set(zap.NewNop())
}

// ForScan returns a child logger tagging every entry with the scan id.
func ForScan(scanID string) *zap.Logger {
	return Log.With(zap.String("scan_id", scanID))
}

func set(l *zap.Logger) {
	Log = l
	Sugar = l.Sugar()
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		CallerKey:        "caller",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB == 0 {
		r.MaxSizeMB = DefaultRotation.MaxSizeMB
	}
	if r.MaxBackups == 0 {
		r.MaxBackups = DefaultRotation.MaxBackups
	}
	if r.MaxAgeDays == 0 {
		r.MaxAgeDays = DefaultRotation.MaxAgeDays
	}
	return r
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = Log.Sync()
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

// Info logs an info message.
func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

// Error logs an error message.
func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}
