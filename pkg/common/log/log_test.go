/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	mu    sync.Mutex
	lines []string
}

func (p *recordingProvider) GetLogger(module string) Logger {
	return &recordingLogger{p: p, module: module}
}

type recordingLogger struct {
	p      *recordingProvider
	module string
}

func (l *recordingLogger) record(level, msg string, args ...interface{}) {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()

	l.p.lines = append(l.p.lines, fmt.Sprintf("%s [%s] %s", level, l.module, fmt.Sprintf(msg, args...)))
}

func (l *recordingLogger) Panicf(msg string, args ...interface{}) { l.record("CRITICAL", msg, args...) }
func (l *recordingLogger) Fatalf(msg string, args ...interface{}) { l.record("CRITICAL", msg, args...) }
func (l *recordingLogger) Errorf(msg string, args ...interface{}) { l.record("ERROR", msg, args...) }
func (l *recordingLogger) Warnf(msg string, args ...interface{})  { l.record("WARNING", msg, args...) }
func (l *recordingLogger) Infof(msg string, args ...interface{})  { l.record("INFO", msg, args...) }
func (l *recordingLogger) Debugf(msg string, args ...interface{}) { l.record("DEBUG", msg, args...) }

func TestCustomProvider(t *testing.T) {
	defer func() { loggerProviderOnce = sync.Once{} }()

	loggerProviderOnce = sync.Once{}
	provider := &recordingProvider{}
	Initialize(provider)

	const module = "sample-module-custom"

	SetLevel(module, WARNING)

	logger := New(module)
	logger.Debugf("hidden %d", 1)
	logger.Infof("hidden %d", 2)
	logger.Warnf("shown %d", 3)
	logger.Errorf("shown %d", 4)

	require.Equal(t, module, logger.Module())
	require.Contains(t, provider.lines, "WARNING [sample-module-custom] shown 3")
	require.Contains(t, provider.lines, "ERROR [sample-module-custom] shown 4")

	for _, line := range provider.lines {
		require.NotContains(t, line, "hidden")
	}
}

func TestAllLevels(t *testing.T) {
	tests := []struct {
		module   string
		level    Level
		enabled  []Level
		disabled []Level
	}{
		{"sample-module-critical", CRITICAL, []Level{CRITICAL}, []Level{ERROR, WARNING, INFO, DEBUG}},
		{"sample-module-error", ERROR, []Level{CRITICAL, ERROR}, []Level{WARNING, INFO, DEBUG}},
		{"sample-module-warning", WARNING, []Level{CRITICAL, ERROR, WARNING}, []Level{INFO, DEBUG}},
		{"sample-module-info", INFO, []Level{CRITICAL, ERROR, WARNING, INFO}, []Level{DEBUG}},
		{"sample-module-debug", DEBUG, []Level{CRITICAL, ERROR, WARNING, INFO, DEBUG}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.module, func(t *testing.T) {
			SetLevel(tc.module, tc.level)
			require.Equal(t, tc.level, GetLevel(tc.module))

			for _, level := range tc.enabled {
				require.True(t, IsEnabledFor(tc.module, level), ParseString(level))
			}

			for _, level := range tc.disabled {
				require.False(t, IsEnabledFor(tc.module, level), ParseString(level))
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{
		"critical": CRITICAL,
		"ERROR":    ERROR,
		"warning":  WARNING,
		"warn":     WARNING,
		"Info":     INFO,
		"debug":    DEBUG,
	} {
		level, err := ParseLevel(name)
		require.NoError(t, err)
		require.Equal(t, want, level)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
	require.Equal(t, "UNKNOWN", ParseString(Level(42)))
}

func TestZapProvider(t *testing.T) {
	buf := &bytes.Buffer{}
	provider := NewZapProvider(ZapConfig{Output: buf})

	logger := provider.GetLogger("zkpass/test")
	logger.Infof("proof generated in %dms", 42)
	logger.Errorf("channel %s", "closed")
	require.NoError(t, provider.Sync())

	out := buf.String()
	require.Contains(t, out, "INFO")
	require.Contains(t, out, "zkpass/test")
	require.Contains(t, out, "proof generated in 42ms")
	require.Contains(t, out, "channel closed")
}

func TestZapProviderFile(t *testing.T) {
	file := t.TempDir() + "/logs/host.log"
	provider := NewZapProvider(ZapConfig{Output: &bytes.Buffer{}, File: file, MaxSizeMB: 1})

	provider.GetLogger("zkpass/file").Warnf("rotated output")
	require.NoError(t, provider.Sync())
	require.FileExists(t, file)
}
