/** Copyright 2020-2023 Alibaba Group Holding Limited.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log holds the process wide logr.Logger used by tensorwire. The
// logger is backed by zap; verbosity is taken from TENSORWIRE_LOG_LEVEL
// (0 = info, 1 = per-message debug, 2 = per-tensor debug).
package log

import (
	"os"
	"strconv"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LevelEnv = "TENSORWIRE_LOG_LEVEL"

var (
	once   sync.Once
	logger logr.Logger
	mu     sync.RWMutex
)

// NewLogger builds a zap backed logr.Logger. Larger verbosity enables more
// of the V(n) messages.
func NewLogger(verbosity int) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	cfg.Sampling = nil
	z, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(z), nil
}

func verbosityFromEnv() int {
	if v, err := strconv.Atoi(os.Getenv(LevelEnv)); err == nil && v >= 0 {
		return v
	}
	return 0
}

// Log returns the shared logger.
func Log() logr.Logger {
	once.Do(func() {
		l, err := NewLogger(verbosityFromEnv())
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger = logr.Discard()
			return
		}
		logger = l.WithName("tensorwire")
	})
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLogger replaces the shared logger, e.g. with logr.Discard() in tests.
func SetLogger(l logr.Logger) {
	once.Do(func() {})
	mu.Lock()
	defer mu.Unlock()
	logger = l
}
