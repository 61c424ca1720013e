// Package logging builds the zap loggers used by the sandbox core and CLI.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	Verbose bool
	JSON    bool
	Output  io.Writer
}

// New returns a logger writing to opts.Output (stderr by default). The
// console encoder is used unless JSON is set; verbose enables debug level.
func New(opts Options) *zap.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}

	var encoder zapcore.Encoder
	if opts.JSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	level := zapcore.WarnLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level))
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
