// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import "time"

// EngineConfig carries the engine's recognized tunables (§6 BUFSIZE,
// SLEEPTIME) plus an optional Metrics observer. Built via functional
// options (EngineOption) passed to NewEngineConfig.
type EngineConfig struct {
	// BufSize is the receive stack-buffer size per call.
	BufSize int

	// SleepTime is the base back-off interval used after EINTR on the
	// readiness wait.
	SleepTime time.Duration

	// Metrics receives per-call observations. NewEngineConfig replaces a nil
	// value (the default) with a no-op observer; the engine calls Metrics
	// without a nil check.
	Metrics Metrics
}

var defaultEngineConfig = EngineConfig{
	BufSize:   16 * 1024,
	SleepTime: time.Millisecond,
	Metrics:   nil,
}

type EngineOption func(*EngineConfig)

// NewEngineConfig builds an EngineConfig from the defaults plus opts.
func NewEngineConfig(opts ...EngineOption) EngineConfig {
	c := defaultEngineConfig
	for _, fn := range opts {
		fn(&c)
	}
	if c.Metrics == nil {
		c.Metrics = noopMetrics{}
	}
	return c
}

// WithBufSize sets the per-call receive buffer size (BUFSIZE).
func WithBufSize(n int) EngineOption {
	return func(c *EngineConfig) { c.BufSize = n }
}

// WithSleepTime sets the EINTR back-off interval (SLEEPTIME).
func WithSleepTime(d time.Duration) EngineOption {
	return func(c *EngineConfig) { c.SleepTime = d }
}

// WithMetrics installs an observer for committed reads, writes, drained
// placeholders, and session end.
func WithMetrics(m Metrics) EngineOption {
	return func(c *EngineConfig) { c.Metrics = m }
}
