/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package log implements a module based, leveled logger for fmt-style messages.
//
// Loggers are created per module with New and lazily bound to the provider installed with Initialize.
// When no provider is installed before the first line is written, a zap backed console provider is used.
package log

import (
	"sync"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log/internal/metadata"
)

const (
	loggerNotInitializedMsg = "Default logger initialized (call log.Initialize() before logging to use a custom provider)"
	loggerModule            = "zkpass/common"
)

// Log is a module scoped logger.
type Log struct {
	instance Logger
	module   string
	once     sync.Once
}

// New creates a Logger for the given module.
// The underlying logger instance is resolved on first use.
func New(module string) *Log {
	return &Log{module: module}
}

// Fatalf logs at CRITICAL and exits the process.
func (l *Log) Fatalf(msg string, args ...interface{}) {
	l.logger().Fatalf(msg, args...)
}

// Panicf logs at CRITICAL and panics.
func (l *Log) Panicf(msg string, args ...interface{}) {
	l.logger().Panicf(msg, args...)
}

// Debugf calls Debugf function of underlying logger.
func (l *Log) Debugf(msg string, args ...interface{}) {
	l.logger().Debugf(msg, args...)
}

// Infof calls Infof function of underlying logger.
func (l *Log) Infof(msg string, args ...interface{}) {
	l.logger().Infof(msg, args...)
}

// Warnf calls Warnf function of underlying logger.
func (l *Log) Warnf(msg string, args ...interface{}) {
	l.logger().Warnf(msg, args...)
}

// Errorf calls Errorf function of underlying logger.
func (l *Log) Errorf(msg string, args ...interface{}) {
	l.logger().Errorf(msg, args...)
}

// Module returns the module name of the logger.
func (l *Log) Module() string {
	return l.module
}

func (l *Log) logger() Logger {
	l.once.Do(func() {
		l.instance = loggerProvider().GetLogger(l.module)
	})

	return l.instance
}

// SetLevel sets the logging level of a module. The empty module name sets the default level.
// If not set, the level is INFO.
func SetLevel(module string, level Level) {
	metadata.SetLevel(module, level)
}

// GetLevel returns the logging level of a module.
func GetLevel(module string) Level {
	return metadata.GetLevel(module)
}

// IsEnabledFor reports whether the level is enabled for the module.
func IsEnabledFor(module string, level Level) bool {
	return metadata.IsEnabledFor(module, level)
}

// ParseLevel returns the log level from a string representation such as "debug" or "WARNING".
func ParseLevel(level string) (Level, error) {
	return metadata.ParseLevel(level)
}

// ParseString returns the string representation of a level.
func ParseString(level Level) string {
	return metadata.ParseString(level)
}
