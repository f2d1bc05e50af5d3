/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocklogger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log"
)

// MockLogger is a mocked logger that can be used for testing.
type MockLogger struct {
	mu    sync.Mutex
	lines []string
}

func (m *MockLogger) record(level, msg string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lines = append(m.lines, level+" "+fmt.Sprintf(msg, args...))
}

// Panicf records a CRITICAL line and panics.
func (m *MockLogger) Panicf(msg string, args ...interface{}) {
	m.record("CRITICAL", msg, args...)
	panic(fmt.Sprintf(msg, args...))
}

// Fatalf records a CRITICAL line. It does not exit.
func (m *MockLogger) Fatalf(msg string, args ...interface{}) { m.record("CRITICAL", msg, args...) }

// Errorf records an ERROR line.
func (m *MockLogger) Errorf(msg string, args ...interface{}) { m.record("ERROR", msg, args...) }

// Warnf records a WARNING line.
func (m *MockLogger) Warnf(msg string, args ...interface{}) { m.record("WARNING", msg, args...) }

// Infof records an INFO line.
func (m *MockLogger) Infof(msg string, args ...interface{}) { m.record("INFO", msg, args...) }

// Debugf records a DEBUG line.
func (m *MockLogger) Debugf(msg string, args ...interface{}) { m.record("DEBUG", msg, args...) }

// Lines returns a copy of everything logged so far.
func (m *MockLogger) Lines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.lines...)
}

// AllLogContents returns every line joined by newlines.
func (m *MockLogger) AllLogContents() string {
	return strings.Join(m.Lines(), "\n")
}

// Provider is a mock logger provider that hands out one shared MockLogger.
type Provider struct {
	MockLogger *MockLogger
}

// GetLogger returns the shared logger.
func (p *Provider) GetLogger(string) log.Logger {
	return p.MockLogger
}
