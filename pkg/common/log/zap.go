/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// callerSkip hides Log, modLog and zapLogger frames from the reported caller.
const callerSkip = 3

// ZapConfig configures the zap backed provider.
type ZapConfig struct {
	// Output receives console lines, os.Stdout when nil.
	Output io.Writer
	// File, when set, additionally writes JSON lines to a rotated log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// ZapProvider creates loggers backed by a shared zap core.
type ZapProvider struct {
	base *zap.Logger
}

// NewZapProvider builds a console (and optionally file) zap core.
// Level filtering is left to module levels, so the core accepts every level.
func NewZapProvider(cfg ZapConfig) *ZapProvider {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), zapcore.DebugLevel),
	}

	if cfg.File != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			fileWriter(cfg),
			zapcore.DebugLevel,
		))
	}

	return &ZapProvider{
		base: zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(callerSkip)),
	}
}

func fileWriter(cfg ZapConfig) zapcore.WriteSyncer {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory for %s: %v\n", cfg.File, err)

		return zapcore.AddSync(os.Stderr)
	}

	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
}

// GetLogger returns a logger named after the module.
func (p *ZapProvider) GetLogger(module string) Logger {
	return &zapLogger{sugar: p.base.Named(module).Sugar()}
}

// Sync flushes buffered log entries.
func (p *ZapProvider) Sync() error {
	return p.base.Sync()
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (z *zapLogger) Panicf(msg string, args ...interface{}) { z.sugar.Panicf(msg, args...) }
func (z *zapLogger) Fatalf(msg string, args ...interface{}) { z.sugar.Fatalf(msg, args...) }
func (z *zapLogger) Errorf(msg string, args ...interface{}) { z.sugar.Errorf(msg, args...) }
func (z *zapLogger) Warnf(msg string, args ...interface{})  { z.sugar.Warnf(msg, args...) }
func (z *zapLogger) Infof(msg string, args ...interface{})  { z.sugar.Infof(msg, args...) }
func (z *zapLogger) Debugf(msg string, args ...interface{}) { z.sugar.Debugf(msg, args...) }
