package utils

import (
	"fmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
)

// NewLog returns a logger writing JSON lines to dir/name.log.
func NewLog(dir, name string, debug bool) *zap.Logger {
	if err := os.MkdirAll(dir, 0755); err != nil {
		panic(err)
	}
	fileName := fmt.Sprintf("%s%s.log", dir, name)
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{fileName}
	cfg.ErrorOutputPaths = []string{fileName, "stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named(name)
}
