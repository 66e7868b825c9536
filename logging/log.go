package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerKey struct{}

func NewContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey{}, logger)
}

// FromContext returns the logger carried by ctx, or a debug console logger when there is none.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return New(zap.DebugLevel, "", false)
}

// Rotation controls the log file rotation. Zero values fall back to lumberjack defaults.
type Rotation struct {
	MaxFiles  int // maximum number of old log files to retain
	MaxSizeMB int
}

func New(level zapcore.LevelEnabler, logFileName string, json bool) *zap.Logger {
	return NewWithRotation(level, logFileName, json, Rotation{})
}

func NewWithRotation(level zapcore.LevelEnabler, logFileName string, json bool, rotation Rotation) *zap.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}

	if logFileName != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   logFileName,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxFiles,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileLogger), zap.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...))
}
