/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import "github.com/gl-zkPass/zkpass-sdk-sub001/pkg/common/log/internal/metadata"

// modLog filters calls to the wrapped logger by the level configured for its module.
type modLog struct {
	logger Logger
	module string
}

func (m *modLog) Fatalf(format string, args ...interface{}) {
	m.logger.Fatalf(format, args...)
}

func (m *modLog) Panicf(format string, args ...interface{}) {
	m.logger.Panicf(format, args...)
}

func (m *modLog) Debugf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, DEBUG) {
		return
	}

	m.logger.Debugf(format, args...)
}

func (m *modLog) Infof(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, INFO) {
		return
	}

	m.logger.Infof(format, args...)
}

func (m *modLog) Warnf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, WARNING) {
		return
	}

	m.logger.Warnf(format, args...)
}

func (m *modLog) Errorf(format string, args ...interface{}) {
	if !metadata.IsEnabledFor(m.module, ERROR) {
		return
	}

	m.logger.Errorf(format, args...)
}
