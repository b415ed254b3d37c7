package tracker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type diskUsage struct {
	available uint64
	total     uint64
}

type fakeDisks struct {
	mu        sync.Mutex
	mounts    []string
	usage     map[string]diskUsage
	mountsErr error
	calls     int
}

func (f *fakeDisks) Mounts(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.mountsErr != nil {
		return nil, f.mountsErr
	}
	mounts := make([]string, len(f.mounts))
	copy(mounts, f.mounts)
	return mounts, nil
}

func (f *fakeDisks) Usage(_ context.Context, mountpoint string) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usage[mountpoint]
	if !ok {
		return 0, 0, errors.New("no such mount")
	}
	return u.available, u.total, nil
}

func (f *fakeDisks) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func freeSpacePercent(t *testing.T, reg *prometheus.Registry, path string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, family := range families {
		if family.GetName() != FreeSpaceMetric {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "path" && label.GetValue() == path {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no %s sample for path %q", FreeSpaceMetric, path)
	return 0
}

func TestMeasurePublishesRoundedPercent(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{
		mounts: []string{"/", "/data"},
		usage: map[string]diskUsage{
			"/":     {available: 1, total: 1000},
			"/data": {available: 50, total: 200},
		},
	}

	// The nearest enclosing mount (/data) must win over /.
	metrics, err := newDiskMetrics("/data/wal/segments", reg, disks)
	if err != nil {
		t.Fatalf("newDiskMetrics failed: %v", err)
	}
	metrics.measure(context.Background())

	if got := freeSpacePercent(t, reg, "/data/wal/segments"); got != 25 {
		t.Fatalf("expected 25%% free, got %v", got)
	}
}

func TestMeasureMissingMountLeavesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{
		mounts: []string{"/data"},
		usage:  map[string]diskUsage{"/data": {available: 50, total: 200}},
	}

	metrics, err := newDiskMetrics("/data/wal", reg, disks)
	if err != nil {
		t.Fatalf("newDiskMetrics failed: %v", err)
	}
	metrics.measure(context.Background())
	if got := freeSpacePercent(t, reg, "/data/wal"); got != 25 {
		t.Fatalf("expected 25%% free, got %v", got)
	}

	// Simulate the disk unmounting; the next tick must keep the last value.
	disks.mu.Lock()
	disks.mounts = nil
	disks.mu.Unlock()
	metrics.measure(context.Background())
	if got := freeSpacePercent(t, reg, "/data/wal"); got != 25 {
		t.Fatalf("missing mount must leave gauge unchanged, got %v", got)
	}
}

func TestMeasureNeverSetsGaugeOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{mountsErr: errors.New("mount table unreadable")}

	metrics, err := newDiskMetrics("/data", reg, disks)
	if err != nil {
		t.Fatalf("newDiskMetrics failed: %v", err)
	}
	metrics.measure(context.Background())

	if got := freeSpacePercent(t, reg, "/data"); got != 0 {
		t.Fatalf("gauge must stay unset on lister failure, got %v", got)
	}
}

func TestMeasureZeroTotalSkips(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{
		mounts: []string{"/"},
		usage:  map[string]diskUsage{"/": {available: 0, total: 0}},
	}

	metrics, err := newDiskMetrics("/", reg, disks)
	if err != nil {
		t.Fatalf("newDiskMetrics failed: %v", err)
	}
	metrics.measure(context.Background())

	if got := freeSpacePercent(t, reg, "/"); got != 0 {
		t.Fatalf("zero-total disk must not publish, got %v", got)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{
		mounts: []string{"/"},
		usage:  map[string]diskUsage{"/": {available: 50, total: 200}},
	}

	tracker, err := New("/", reg, Config{Interval: 5 * time.Millisecond, Disks: disks})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tracker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := tracker.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted on double start, got %v", err)
	}

	// Wait out at least two sampling intervals.
	deadline := time.Now().Add(time.Second)
	for disks.callCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("sampler never ticked twice")
		}
		time.Sleep(time.Millisecond)
	}
	if got := freeSpacePercent(t, reg, "/"); got != 25 {
		t.Fatalf("expected 25%% free, got %v", got)
	}

	tracker.Stop()
	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("sampling goroutine did not exit after Stop")
	}

	// No further samples once the goroutine has exited.
	calls := disks.callCount()
	time.Sleep(25 * time.Millisecond)
	if got := disks.callCount(); got != calls {
		t.Fatalf("sampler still running after Stop: %d -> %d calls", calls, got)
	}

	// Idempotent; a stopped tracker is terminal.
	tracker.Stop()
	if err := tracker.Start(); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped on restart, got %v", err)
	}
}

func TestStopBeforeStartIsNoOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracker, err := New("/", reg, Config{Disks: &fakeDisks{}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tracker.Stop()
	tracker.Stop()
}

func TestDroppedTrackerStopsSampling(t *testing.T) {
	reg := prometheus.NewRegistry()
	disks := &fakeDisks{
		mounts: []string{"/"},
		usage:  map[string]diskUsage{"/": {available: 50, total: 200}},
	}

	tracker, err := New("/", reg, Config{Interval: 5 * time.Millisecond, Disks: disks})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tracker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	done := tracker.Done()

	// Drop the only reference without calling Stop; the runtime cleanup must
	// cancel the goroutine once the handle is collected. The done channel is
	// held via a plain variable so waiting on it keeps nothing else alive.
	tracker = nil
	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-done:
		case <-time.After(10 * time.Millisecond):
			if time.Now().Before(deadline) {
				continue
			}
			t.Fatal("sampling goroutine outlived its dropped tracker")
		}
		break
	}

	calls := disks.callCount()
	time.Sleep(25 * time.Millisecond)
	if got := disks.callCount(); got != calls {
		t.Fatalf("sampler still running after drop: %d -> %d calls", calls, got)
	}
}

func TestTrackerOnRootPublishesSanePercent(t *testing.T) {
	reg := prometheus.NewRegistry()
	tracker, err := New("/", reg, Config{Interval: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := tracker.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer tracker.Stop()

	time.Sleep(50 * time.Millisecond)

	got := freeSpacePercent(t, reg, "/")
	if got <= 0 || got > 100 {
		t.Fatalf("expected a percentage in (0, 100], got %v", got)
	}
}
