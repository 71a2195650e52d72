// Copyright 2024 The Lumen Authors
// This file is part of Lumen.
//
// Lumen is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Lumen is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Lumen. If not, see <http://www.gnu.org/licenses/>.

// Package lumenlog provides the node-wide structured logger. It wraps
// zap.Logger with a glog-style per-package verbosity override, so an
// operator can say "log everything at debug except the sync pipeline"
// without restarting at a different global level.
package lumenlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a named, leveled logger. Component loggers are created with
// Named and inherit the package-level verbosity overrides.
type Logger struct {
	z    *zap.Logger
	name string
}

var (
	mu        sync.RWMutex
	base      *zap.Logger
	atomLevel = zap.NewAtomicLevel()
	overrides = map[string]zapcore.Level{}
)

func init() {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), zapcore.DebugLevel)
	base = zap.New(core)
}

// SetVerbosity sets the global minimum level.
func SetVerbosity(level zapcore.Level) {
	atomLevel.SetLevel(level)
}

// SetVmodule overrides the minimum level for loggers with the given
// component name, independent of the global verbosity — a per-component
// "vmodule" dial.
func SetVmodule(component string, level zapcore.Level) {
	mu.Lock()
	defer mu.Unlock()
	overrides[component] = level
}

// Named returns a Logger scoped to component, e.g. "txpool", "stages.blocks".
func Named(component string) *Logger {
	return &Logger{z: base.Named(component), name: component}
}

func (l *Logger) enabled(level zapcore.Level) bool {
	mu.RLock()
	override, ok := overrides[l.name]
	mu.RUnlock()
	if ok {
		return level >= override
	}
	return atomLevel.Enabled(level)
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	if l.enabled(zapcore.DebugLevel) {
		l.z.Debug(msg, fields...)
	}
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	if l.enabled(zapcore.InfoLevel) {
		l.z.Info(msg, fields...)
	}
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	if l.enabled(zapcore.WarnLevel) {
		l.z.Warn(msg, fields...)
	}
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	if l.enabled(zapcore.ErrorLevel) {
		l.z.Error(msg, fields...)
	}
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{z: l.z.With(fields...), name: l.name}
}

// Sync flushes buffered log entries; call before process exit.
func (l *Logger) Sync() error { return l.z.Sync() }
