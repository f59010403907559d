package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jamesainslie/phototidy/pkg/tidy/config"
)

const bytesPerMB = 1024 * 1024

// Thresholds controls event emission and slow-throughput detection.
type Thresholds struct {
	HeartbeatInterval time.Duration

	// A FILE_PROGRESS event is emitted once either minimum has accumulated.
	EmitMinBytes    int64
	EmitMinInterval time.Duration

	// A throughput sample is judged once it covers at least SlowMinBytes
	// and SlowMinDuration. SlowConsecutive slow samples in a row raise
	// SLOW_NETWORK_WARNING.
	SlowConsecutive int
	SlowMinBytes    int64
	SlowMinDuration time.Duration
	SlowMBps        float64
}

// ThresholdsFromConfig converts the configured tunables.
func ThresholdsFromConfig(c config.ProgressConfig) Thresholds {
	return Thresholds{
		HeartbeatInterval: time.Duration(c.HeartbeatIntervalSec * float64(time.Second)),
		EmitMinBytes:      int64(c.EmitMinBytesKB) * 1024,
		EmitMinInterval:   time.Duration(c.EmitMinIntervalSec * float64(time.Second)),
		SlowConsecutive:   c.SlowConsecutiveSamples,
		SlowMinBytes:      int64(c.SlowMinSampleBytesKB) * 1024,
		SlowMinDuration:   time.Duration(c.SlowMinSampleSec * float64(time.Second)),
		SlowMBps:          c.SlowThresholdMBps,
	}
}

// Tracker turns byte counts into FILE_* events for one phase. It implements
// the Meter interfaces used by hashing and fileops.
type Tracker struct {
	emitter *Emitter
	phase   string
	th      Thresholds
	now     func() time.Time

	mu         sync.Mutex
	runTotal   int64
	runDone    int64
	items      int
	itemsTotal int

	path      string
	op        string
	fileTotal int64
	fileDone  int64
	fileStart time.Time

	lastEmitBytes int64
	lastEmitAt    time.Time
	lastActivity  time.Time

	sampleBytes int64
	sampleStart time.Time
	slowRun     int
}

// NewTracker returns a tracker for a phase covering runTotal bytes and
// itemsTotal items.
func NewTracker(em *Emitter, phase string, runTotal int64, itemsTotal int, th Thresholds) *Tracker {
	now := time.Now
	if em != nil && em.now != nil {
		now = em.now
	}
	t := now()
	return &Tracker{
		emitter:      em,
		phase:        phase,
		th:           th,
		now:          now,
		runTotal:     runTotal,
		itemsTotal:   itemsTotal,
		lastActivity: t,
	}
}

// StartFile begins tracking a file and emits FILE_START.
func (t *Tracker) StartFile(path, op string, size int64) {
	t.mu.Lock()
	now := t.now()
	t.path, t.op = path, op
	t.fileTotal, t.fileDone = size, 0
	t.fileStart = now
	t.lastEmitBytes, t.lastEmitAt = 0, now
	t.sampleBytes, t.sampleStart = 0, now
	t.lastActivity = now
	ev := t.snapshotLocked(FileStart)
	t.mu.Unlock()

	t.emitter.Emit(ev)
}

// Add records n processed bytes for the current file.
func (t *Tracker) Add(n int64) {
	if n <= 0 {
		return
	}

	var events []Event

	t.mu.Lock()
	now := t.now()
	t.fileDone += n
	t.runDone += n
	t.lastActivity = now

	if t.fileDone-t.lastEmitBytes >= t.th.EmitMinBytes || now.Sub(t.lastEmitAt) >= t.th.EmitMinInterval {
		ev := t.snapshotLocked(FileProgress)
		ev.SpeedMBps = speed(t.fileDone, now.Sub(t.fileStart))
		events = append(events, ev)
		t.lastEmitBytes, t.lastEmitAt = t.fileDone, now
	}

	t.sampleBytes += n
	if dt := now.Sub(t.sampleStart); t.sampleBytes >= t.th.SlowMinBytes && dt >= t.th.SlowMinDuration && dt > 0 {
		mbps := speed(t.sampleBytes, dt)
		if mbps < t.th.SlowMBps {
			t.slowRun++
		} else {
			t.slowRun = 0
		}
		if t.th.SlowConsecutive > 0 && t.slowRun >= t.th.SlowConsecutive {
			ev := t.snapshotLocked(SlowNetworkWarning)
			ev.SpeedMBps = mbps
			ev.Evidence = fmt.Sprintf("%.2f MB/s below %.2f MB/s for %d consecutive samples", mbps, t.th.SlowMBps, t.slowRun)
			events = append(events, ev)
			t.slowRun = 0
		}
		t.sampleBytes, t.sampleStart = 0, now
	}
	t.mu.Unlock()

	for _, ev := range events {
		t.emitter.Emit(ev)
	}
}

// FinishFile emits FILE_DONE with the final status.
func (t *Tracker) FinishFile(status string) {
	t.mu.Lock()
	now := t.now()
	t.items++
	t.lastActivity = now
	ev := t.snapshotLocked(FileDone)
	ev.Status = status
	ev.Elapsed = now.Sub(t.fileStart)
	ev.SpeedMBps = speed(t.fileDone, ev.Elapsed)
	t.mu.Unlock()

	t.emitter.Emit(ev)
}

// Done emits FILE_DONE for path without touching the current-file state.
// Parallel workers use it with Add, which only advances run totals there.
func (t *Tracker) Done(path string, size int64, status string) {
	t.mu.Lock()
	t.items++
	t.lastActivity = t.now()
	ev := t.snapshotLocked(FileDone)
	ev.Path = path
	ev.FileTotal, ev.FileDone = size, size
	ev.Status = status
	t.mu.Unlock()

	t.emitter.Emit(ev)
}

// Skip counts an item and its bytes as done without per-file events.
func (t *Tracker) Skip(size int64) {
	t.mu.Lock()
	t.items++
	t.runDone += size
	t.mu.Unlock()
}

// StartHeartbeat emits HEARTBEAT every interval until ctx is done or the
// returned stop function is called. stop waits for the goroutine to exit.
func (t *Tracker) StartHeartbeat(ctx context.Context) (stop func()) {
	interval := t.th.HeartbeatInterval
	if interval <= 0 || t.emitter == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.mu.Lock()
				ev := t.snapshotLocked(Heartbeat)
				ev.Evidence = "idle " + t.now().Sub(t.lastActivity).Truncate(time.Millisecond).String()
				t.mu.Unlock()
				t.emitter.Emit(ev)
			}
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func (t *Tracker) snapshotLocked(typ EventType) Event {
	return Event{
		Type:       typ,
		Time:       t.now(),
		Phase:      t.phase,
		Path:       t.path,
		Op:         t.op,
		FileTotal:  t.fileTotal,
		FileDone:   t.fileDone,
		RunTotal:   t.runTotal,
		RunDone:    t.runDone,
		Items:      t.items,
		ItemsTotal: t.itemsTotal,
	}
}

func speed(bytes int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(bytes) / bytesPerMB / d.Seconds()
}
