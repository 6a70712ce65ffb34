// Package logging builds the zap logger shared by noter's commands.
//
// Warnings go to stderr in a compact console format. When a log file is
// configured, every record at info and above is also written there as JSON
// through a size-rotated lumberjack writer.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Verbose lowers the console level from warn to debug.
	Verbose bool
	// File, when set, adds a rotated JSON log file.
	File string
	// Console defaults to os.Stderr.
	Console io.Writer
}

// New builds a logger from opts. Callers should defer Sync.
func New(opts Options) *zap.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	consoleLevel := zap.WarnLevel
	if opts.Verbose {
		consoleLevel = zap.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.NameKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(console)), consoleLevel),
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5, // Megabytes
			MaxBackups: 3,
			MaxAge:     30, // Days
			Compress:   true,
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "timestamp"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.MessageKey = "message"
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), zap.InfoLevel))
	}

	return zap.New(zapcore.NewTee(cores...)).Named("noter")
}
