// Package logging builds the process logger from shareconfig.LogSettings.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rmacdonaldsmith/pshare-go/internal/shareconfig"
)

const (
	// DefaultMaxSizeMB is the size at which the log file is rotated
	DefaultMaxSizeMB = 100
	// DefaultMaxBackups is the number of rotated files kept
	DefaultMaxBackups = 5
	// DefaultMaxAgeDays is the age after which rotated files are removed
	DefaultMaxAgeDays = 28
)

// New creates a logger writing to stderr, and additionally to a rotated
// file when settings.File is set. The returned closer flushes and closes
// the file; it is never nil.
func New(settings shareconfig.LogSettings) (*zap.Logger, io.Closer, error) {
	return newLogger(settings, os.Stderr)
}

func newLogger(settings shareconfig.LogSettings, console zapcore.WriteSyncer) (*zap.Logger, io.Closer, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(settings.Level))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", settings.Level, err)
	}

	encoder, err := newEncoder(settings.Format)
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(console), level)}
	var closer io.Closer = nopCloser{}

	if settings.File != "" {
		file := &lumberjack.Logger{
			Filename:   settings.File,
			MaxSize:    orDefault(settings.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: orDefault(settings.MaxBackups, DefaultMaxBackups),
			MaxAge:     orDefault(settings.MaxAgeDays, DefaultMaxAgeDays),
		}
		// files always get JSON so they can be shipped as-is
		fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), level))
		closer = file
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, closer, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch strings.ToLower(format) {
	case "", "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	case "json":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
