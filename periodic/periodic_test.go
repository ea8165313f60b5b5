package periodic

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"testing"
	"time"
)

func TestServiceTicks(t *testing.T) {
	var calls atomic.Int32
	s := New(5*time.Millisecond, func() { calls.Inc() }, zap.NewNop())
	assert.Equal(t, Stopped, s.Status())

	require.NoError(t, s.Start())
	assert.Equal(t, Running, s.Status())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	assert.True(t, s.Stop(time.Second))
	assert.Equal(t, Stopped, s.Status())
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestServiceStartTwice(t *testing.T) {
	s := New(time.Hour, func() {}, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop(time.Second)
	err := s.Start()
	assert.Error(t, err)
}

func TestServiceStopWhenStopped(t *testing.T) {
	s := New(time.Hour, func() {}, zap.NewNop())
	assert.True(t, s.Stop(0))
	assert.Equal(t, Stopped, s.Status())
}

func TestServiceRestart(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Millisecond, func() { calls.Inc() }, zap.NewNop())
	require.NoError(t, s.Start())
	s.Stop(time.Second)
	require.NoError(t, s.Start())
	defer s.Stop(time.Second)
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
}

func TestServiceStopTimesOutOnSlowCallback(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	s := New(time.Millisecond, func() {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
	}, zap.NewNop())
	require.NoError(t, s.Start())
	<-entered

	assert.False(t, s.Stop(10*time.Millisecond))
	assert.Equal(t, Stopped, s.Status())
	close(release)
}

func TestCallbacksNeverOverlap(t *testing.T) {
	var active, overlaps, calls atomic.Int32
	s := New(time.Millisecond, func() {
		if active.Inc() > 1 {
			overlaps.Inc()
		}
		time.Sleep(3 * time.Millisecond)
		active.Dec()
		calls.Inc()
	}, zap.NewNop())
	require.NoError(t, s.Start())
	assert.Eventually(t, func() bool { return calls.Load() >= 5 }, time.Second, time.Millisecond)
	s.Stop(time.Second)
	assert.EqualValues(t, 0, overlaps.Load())
}

func TestPanickingCallbackKeepsLoopAlive(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Millisecond, func() {
		if calls.Inc() == 1 {
			panic("boom")
		}
	}, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop(time.Second)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
}

func TestResetKeepsServiceRunning(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Millisecond, func() { calls.Inc() }, zap.NewNop())

	s.Reset()
	assert.Equal(t, Stopped, s.Status())

	require.NoError(t, s.Start())
	s.Reset()
	assert.Equal(t, Running, s.Status())
	n := calls.Load()
	assert.Eventually(t, func() bool { return calls.Load() > n }, time.Second, time.Millisecond)
	assert.True(t, s.Stop(time.Second))
}
