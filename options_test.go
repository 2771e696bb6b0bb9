// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package relay

import (
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func TestNewEngineConfig_Defaults(t *testing.T) {
	c := NewEngineConfig()
	assert.Equal(t, c.BufSize, defaultEngineConfig.BufSize)
	assert.Equal(t, c.SleepTime, defaultEngineConfig.SleepTime)
	assert.Assert(t, c.Metrics != nil)
}

func TestNewEngineConfig_Overrides(t *testing.T) {
	c := NewEngineConfig(WithBufSize(2048), WithSleepTime(5*time.Millisecond))
	assert.Equal(t, c.BufSize, 2048)
	assert.Equal(t, c.SleepTime, 5*time.Millisecond)
}

func TestWithMetrics_InstallsObserver(t *testing.T) {
	m := &recordingMetrics{}
	c := NewEngineConfig(WithMetrics(m))
	c.Metrics.ObserveRead(CLIENT, 3)
	assert.Equal(t, m.reads, 3)
}

type recordingMetrics struct {
	reads, writes, drained int
	lastOutcome            string
}

func (m *recordingMetrics) ObserveRead(_ Direction, n int)               { m.reads += n }
func (m *recordingMetrics) ObserveWrite(_ Direction, n int)              { m.writes += n }
func (m *recordingMetrics) ObservePlaceholderDrained(_ Direction, n int) { m.drained += n }
func (m *recordingMetrics) ObserveSessionEnd(outcome string)             { m.lastOutcome = outcome }
