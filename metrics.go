// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

// Metrics is an optional observer the engine calls on every successful
// receive, every send, every drained placeholder, and once when a call
// completes normally (outcome "completed"); calls that time out or fail do
// not report a session end. A nil Metrics (the default) is replaced by a
// no-op observer in NewEngineConfig; WithMetrics installs one.
type Metrics interface {
	ObserveRead(d Direction, n int)
	ObserveWrite(d Direction, n int)
	ObservePlaceholderDrained(d Direction, n int)
	ObserveSessionEnd(outcome string)
}

// noopMetrics is installed when the caller supplies none, so the engine's
// hot path never has to nil-check before every observation.
type noopMetrics struct{}

func (noopMetrics) ObserveRead(Direction, int)               {}
func (noopMetrics) ObserveWrite(Direction, int)              {}
func (noopMetrics) ObservePlaceholderDrained(Direction, int) {}
func (noopMetrics) ObserveSessionEnd(string)                 {}
