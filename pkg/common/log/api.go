/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log/internal/metadata"

// Level is a log level for a logging message.
type Level = metadata.Level

// Log levels.
const (
	CRITICAL = metadata.CRITICAL
	ERROR    = metadata.ERROR
	WARNING  = metadata.WARNING
	INFO     = metadata.INFO
	DEBUG    = metadata.DEBUG
)

// Logger represents a general-purpose logger.
type Logger interface {
	Panicf(msg string, args ...interface{})
	Fatalf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Debugf(msg string, args ...interface{})
}

// LoggerProvider is a factory for moduled loggers.
type LoggerProvider interface {
	GetLogger(module string) Logger
}
