/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package metadata keeps the per-module log level table shared by every logger.
package metadata

import (
	"errors"
	"strings"
	"sync"
)

// Level mirrors log.Level; it is redeclared here to keep this package free of import cycles.
type Level int

// Log levels, most severe first.
const (
	CRITICAL Level = iota
	ERROR
	WARNING
	INFO
	DEBUG
)

const defaultLevel = INFO

//nolint:gochecknoglobals
var (
	levelNames = []string{"CRITICAL", "ERROR", "WARNING", "INFO", "DEBUG"}

	rwmutex = &sync.RWMutex{}
	levels  = map[string]Level{}
)

// ErrInvalidLogLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLogLevel = errors.New("logger: invalid log level")

// SetLevel sets the level of a module. An empty module sets the default for every module without its own level.
func SetLevel(module string, level Level) {
	rwmutex.Lock()
	defer rwmutex.Unlock()

	levels[module] = level
}

// GetLevel returns the level of a module, falling back to the default module and then to INFO.
func GetLevel(module string) Level {
	rwmutex.RLock()
	defer rwmutex.RUnlock()

	if level, ok := levels[module]; ok {
		return level
	}

	if level, ok := levels[""]; ok {
		return level
	}

	return defaultLevel
}

// IsEnabledFor reports whether messages at level are written for module.
func IsEnabledFor(module string, level Level) bool {
	return level <= GetLevel(module)
}

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(level string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, level) {
			return Level(i), nil
		}
	}

	if strings.EqualFold(level, "warn") {
		return WARNING, nil
	}

	return ERROR, ErrInvalidLogLevel
}

// ParseString returns the name of a level.
func ParseString(level Level) string {
	if level < CRITICAL || int(level) >= len(levelNames) {
		return "UNKNOWN"
	}

	return levelNames[level]
}
