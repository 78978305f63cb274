package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObservedLogger returns a debug-level logger whose entries are captured
// in memory, for asserting on log output in tests.
func NewObservedLogger() (Logger, *observer.ObservedLogs) {
	core, observed := observer.New(zapcore.DebugLevel)
	return NewFromZap(zap.New(core)), observed
}
