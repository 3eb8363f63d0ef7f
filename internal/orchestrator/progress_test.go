package orchestrator

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSimulatedProgress_CapsAtCeiling(t *testing.T) {
	p := NewSimulatedProgress(ProgressConfig{Step: 30, Interval: time.Millisecond, Ceiling: 80})
	var ticks int32
	p.Start(func(v int) {
		atomic.AddInt32(&ticks, 1)
		assert.LessOrEqual(t, v, 80)
	})

	assert.Eventually(t, func() bool { return p.Value() == 80 }, time.Second, time.Millisecond)
	p.Stop()

	// 30, 60, 80 and nothing after the ceiling.
	assert.Equal(t, int32(3), atomic.LoadInt32(&ticks))
}

func TestSimulatedProgress_StopIsFinal(t *testing.T) {
	p := NewSimulatedProgress(ProgressConfig{Interval: time.Millisecond})
	p.Start(nil)
	p.Stop()
	p.Stop()

	p.Set(100)
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 100, p.Value())
}

func TestSimulatedProgress_StopWithoutStart(t *testing.T) {
	p := NewSimulatedProgress(DefaultProgressConfig())
	p.Stop()
	assert.Zero(t, p.Value())
}

func TestProgressConfig_Defaults(t *testing.T) {
	cfg := ProgressConfig{Ceiling: 150, ResetDelay: -1}.withDefaults()
	assert.Equal(t, DefaultProgressConfig(), cfg)
}
