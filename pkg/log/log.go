// Package log builds the process logger. Every entry carries the run id so
// the output of one invocation can be picked out of a shared log.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

type Options struct {
	// Level is a zap level name, "info" when empty.
	Level string
	// Format is FormatJSON or FormatConsole, FormatConsole when empty.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// RunID is generated when empty.
	RunID string
}

func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		MessageKey:     "message",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	var encoder zapcore.Encoder
	switch opts.Format {
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case FormatConsole, "":
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("log format %q: want %s or %s", opts.Format, FormatJSON, FormatConsole)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core).With(zap.String("run_id", runID)), nil
}

// DeviceFields identifies the opened device in log entries.
func DeviceFields(vendorID, productID uint16, serial string) []zap.Field {
	fields := []zap.Field{
		zap.String("vid", fmt.Sprintf("0x%04x", vendorID)),
		zap.String("pid", fmt.Sprintf("0x%04x", productID)),
	}
	if serial != "" {
		fields = append(fields, zap.String("serial", serial))
	}
	return fields
}
