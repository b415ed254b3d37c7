package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FreeSpaceMetric is the gauge family holding the free-space percentage of
// the disk backing a tracked directory, labeled by the directory path.
const FreeSpaceMetric = "disk_free_disk_space"

// DefaultInterval is the sampling period used when Config.Interval is zero.
const DefaultInterval = 10 * time.Second

var (
	// ErrAlreadyStarted is returned by Start while a sampling goroutine is
	// running. A tracker never owns more than one.
	ErrAlreadyStarted = errors.New("disk space tracker already started")
	// ErrStopped is returned by Start after Stop; a stopped tracker is
	// terminal and cannot be restarted.
	ErrStopped = errors.New("disk space tracker stopped")
)

// Config tunes a [DiskSpaceTracker]. The zero value selects defaults.
type Config struct {
	// Interval between samples. Defaults to DefaultInterval.
	Interval time.Duration
	// Disks is the mount table to query. Defaults to SystemDisks.
	Disks DiskLister
}

// diskMetrics is the state shared with the sampling goroutine. It must never
// reference the DiskSpaceTracker handle: the goroutine holding the handle
// would keep it reachable forever and defeat the drop cleanup in Start.
type diskMetrics struct {
	// Free-space percentage of the disk backing directory.
	freeSpacePercent prometheus.Gauge
	directory        string
	disks            DiskLister
}

func newDiskMetrics(directory string, reg prometheus.Registerer, disks DiskLister) (*diskMetrics, error) {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: FreeSpaceMetric,
		Help: "The percentage amount of disk available.",
	}, []string{"path"})
	if err := reg.Register(gauge); err != nil {
		return nil, fmt.Errorf("register %s: %w", FreeSpaceMetric, err)
	}

	return &diskMetrics{
		freeSpacePercent: gauge.WithLabelValues(directory),
		directory:        directory,
		disks:            disks,
	}, nil
}

// measure samples the free-space percentage of the disk backing the tracked
// directory and sets the gauge. The directory is resolved to a mount point by
// walking the path upward until a mounted filesystem matches. Any failure
// (no matching mount, a lister error, a zero total) leaves the gauge at its
// previous value.
func (m *diskMetrics) measure(ctx context.Context) {
	mounts, err := m.disks.Mounts(ctx)
	if err != nil {
		return
	}

	path := filepath.Clean(m.directory)
	for !containsMount(mounts, path) {
		parent := filepath.Dir(path)
		if parent == path {
			return
		}
		path = parent
	}

	available, total, err := m.disks.Usage(ctx, path)
	if err != nil || total == 0 {
		return
	}

	percent := math.Round(float64(available) / float64(total) * 100)
	m.freeSpacePercent.Set(percent)
}

// sample runs the periodic measurement loop until ctx is cancelled. The first
// sample is taken immediately, then one per interval tick.
func (m *diskMetrics) sample(ctx context.Context, interval time.Duration, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.measure(ctx)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func containsMount(mounts []string, path string) bool {
	for _, mount := range mounts {
		if mount == path {
			return true
		}
	}
	return false
}

// DiskSpaceTracker periodically publishes the free-space percentage of the
// disk backing a directory.
//
// The tracker moves through three states: created (gauge registered, nothing
// running), running (one sampling goroutine ticking), and stopped (terminal).
// If a running tracker becomes unreachable without Stop being called, the
// goroutine is cancelled by a runtime cleanup so it cannot outlive its owner.
type DiskSpaceTracker struct {
	metrics  *diskMetrics
	interval time.Duration

	// mu guards the task-handle slot below; Start, Stop and the drop
	// cleanup may race from different call sites.
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
	cleanup runtime.Cleanup
}

// New registers the [FreeSpaceMetric] gauge for directory with reg and
// returns a tracker with no goroutine running.
func New(directory string, reg prometheus.Registerer, cfg Config) (*DiskSpaceTracker, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Disks == nil {
		cfg.Disks = SystemDisks{}
	}

	metrics, err := newDiskMetrics(directory, reg, cfg.Disks)
	if err != nil {
		return nil, err
	}

	return &DiskSpaceTracker{
		metrics:  metrics,
		interval: cfg.Interval,
	}, nil
}

// Start spawns the background sampling goroutine.
//
// A second Start while the goroutine is running returns [ErrAlreadyStarted];
// Start after Stop returns [ErrStopped].
func (t *DiskSpaceTracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}
	if t.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	// The goroutine shares only t.metrics, never t itself, so the handle
	// stays collectable while the loop runs.
	go t.metrics.sample(ctx, t.interval, done)

	// If the handle is dropped without Stop, cancel the goroutine anyway.
	t.cleanup = runtime.AddCleanup(t, func(c context.CancelFunc) { c() }, cancel)

	return nil
}

// Stop cancels the sampling goroutine, clears the stored handle, and marks
// the tracker terminal. It is safe to call when nothing is running and safe
// to call more than once. The handle slot is cleared synchronously; the
// goroutine's teardown completes asynchronously (observe Done for that).
func (t *DiskSpaceTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.cancel == nil {
		return
	}
	t.cancel()
	t.cancel = nil
	t.cleanup.Stop()
}

// Done returns a channel closed when the sampling goroutine has exited, or
// nil if Start was never called. After the channel is closed no further gauge
// updates occur.
func (t *DiskSpaceTracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
