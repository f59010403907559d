package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestEmitter_NilSafe(t *testing.T) {
	t.Parallel()

	var e *Emitter
	e.Emit(Event{Type: PhaseStart})
	e.Phase("execute", 1)("done")
	e.Close()
	assert.Nil(t, e.Events())
}

func TestEmitter_DropsLossyWhenFull(t *testing.T) {
	t.Parallel()

	e := NewEmitter(1)
	e.Emit(Event{Type: Heartbeat})
	e.Emit(Event{Type: Heartbeat})
	e.Emit(Event{Type: FileProgress})

	got := drain(e.Events())
	require.Len(t, got, 1)
	assert.Equal(t, Heartbeat, got[0].Type)
	assert.False(t, got[0].Time.IsZero())
}

func TestEmitter_CloseIgnoresLaterEmits(t *testing.T) {
	t.Parallel()

	e := NewEmitter(4)
	e.Close()
	e.Close()
	e.Emit(Event{Type: PhaseStart})

	_, ok := <-e.Events()
	assert.False(t, ok)
}

func TestEmitter_Phase(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	e := NewEmitter(4)
	e.now = clock.now

	end := e.Phase("hash", 3)
	clock.advance(2 * time.Second)
	end("ok")

	got := drain(e.Events())
	require.Equal(t, []EventType{PhaseStart, PhaseEnd}, types(got))
	assert.Equal(t, "hash", got[1].Phase)
	assert.Equal(t, "ok", got[1].Status)
	assert.Equal(t, 2*time.Second, got[1].Elapsed)
}

func TestTracker_FileLifecycle(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	e := NewEmitter(64)
	e.now = clock.now

	tr := NewTracker(e, "execute", 3000, 1, Thresholds{EmitMinBytes: 1000, EmitMinInterval: time.Hour})
	tr.StartFile("/src/a.jpg", "MOVE", 3000)
	tr.Add(400)
	tr.Add(700)
	clock.advance(time.Second)
	tr.Add(1900)
	tr.FinishFile("SUCCESS")

	got := drain(e.Events())
	assert.Equal(t, []EventType{FileStart, FileProgress, FileProgress, FileDone}, types(got))

	done := got[len(got)-1]
	assert.Equal(t, int64(3000), done.FileDone)
	assert.Equal(t, int64(3000), done.RunDone)
	assert.Equal(t, 1, done.Items)
	assert.Equal(t, "SUCCESS", done.Status)
	assert.Equal(t, time.Second, done.Elapsed)
}

func TestTracker_SlowThroughputWarning(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	e := NewEmitter(64)
	e.now = clock.now

	tr := NewTracker(e, "execute", 0, 1, Thresholds{
		EmitMinBytes:    1 << 40,
		EmitMinInterval: time.Hour,
		SlowConsecutive: 3,
		SlowMinBytes:    1024,
		SlowMinDuration: time.Second,
		SlowMBps:        1.0,
	})
	tr.StartFile("/nas/big.mov", "MOVE", 0)

	// 100 KiB per second is well under 1 MB/s.
	for range 3 {
		clock.advance(time.Second)
		tr.Add(100 * 1024)
	}

	var warnings []Event
	for _, ev := range drain(e.Events()) {
		if ev.Type == SlowNetworkWarning {
			warnings = append(warnings, ev)
		}
	}
	require.Len(t, warnings, 1)
	assert.InDelta(t, 0.0977, warnings[0].SpeedMBps, 0.001)
	assert.Contains(t, warnings[0].Evidence, "3 consecutive samples")
}

func TestTracker_FastSamplesResetCounter(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	e := NewEmitter(64)
	e.now = clock.now

	tr := NewTracker(e, "execute", 0, 1, Thresholds{
		EmitMinBytes:    1 << 40,
		EmitMinInterval: time.Hour,
		SlowConsecutive: 2,
		SlowMinBytes:    1,
		SlowMinDuration: time.Second,
		SlowMBps:        1.0,
	})
	tr.StartFile("/nas/a.mov", "MOVE", 0)

	clock.advance(time.Second)
	tr.Add(1024)
	clock.advance(time.Second)
	tr.Add(10 << 20)
	clock.advance(time.Second)
	tr.Add(1024)

	for _, ev := range drain(e.Events()) {
		assert.NotEqual(t, SlowNetworkWarning, ev.Type)
	}
}

func TestTracker_Heartbeat(t *testing.T) {
	t.Parallel()

	e := NewEmitter(16)
	tr := NewTracker(e, "execute", 0, 0, Thresholds{HeartbeatInterval: 5 * time.Millisecond})

	stop := tr.StartHeartbeat(context.Background())
	select {
	case ev := <-e.Events():
		assert.Equal(t, Heartbeat, ev.Type)
		assert.Contains(t, ev.Evidence, "idle")
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat received")
	}
	stop()
}

func TestThresholdsFromConfig(t *testing.T) {
	t.Parallel()

	th := ThresholdsFromConfig(config.Default().Progress)
	assert.Equal(t, time.Second, th.HeartbeatInterval)
	assert.Equal(t, int64(1024*1024), th.EmitMinBytes)
	assert.Equal(t, 500*time.Millisecond, th.EmitMinInterval)
	assert.Equal(t, 3, th.SlowConsecutive)
	assert.Equal(t, int64(256*1024), th.SlowMinBytes)
}

func TestTracker_DoneAndSkip(t *testing.T) {
	t.Parallel()

	e := NewEmitter(8)
	tr := NewTracker(e, "hash", 300, 2, Thresholds{})

	tr.Skip(200)
	tr.Done("/p/a.jpg", 100, "hashed")

	got := drain(e.Events())
	require.Equal(t, []EventType{FileDone}, types(got))
	assert.Equal(t, "/p/a.jpg", got[0].Path)
	assert.Equal(t, "hashed", got[0].Status)
	assert.Equal(t, int64(100), got[0].FileDone)
	assert.Equal(t, int64(200), got[0].RunDone)
	assert.Equal(t, 2, got[0].Items)
}
