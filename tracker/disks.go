package tracker

import (
	"context"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskLister enumerates mounted filesystems and reads their space counters.
// Implementations must refresh their view of the mount table on every call so
// the tracker observes disks mounted after it started.
type DiskLister interface {
	// Mounts returns the mount points of all currently mounted filesystems.
	Mounts(ctx context.Context) ([]string, error)

	// Usage returns the byte counts for the filesystem mounted at
	// mountpoint: bytes available to unprivileged callers and total size.
	Usage(ctx context.Context, mountpoint string) (available, total uint64, err error)
}

// SystemDisks queries the operating system's mount table.
type SystemDisks struct{}

var _ DiskLister = SystemDisks{}

// Mounts returns the mount points of all physical filesystems.
func (SystemDisks) Mounts(ctx context.Context) ([]string, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}
	mounts := make([]string, 0, len(partitions))
	for _, p := range partitions {
		mounts = append(mounts, p.Mountpoint)
	}
	return mounts, nil
}

// Usage reads fresh space counters for the filesystem at mountpoint.
func (SystemDisks) Usage(ctx context.Context, mountpoint string) (uint64, uint64, error) {
	usage, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return 0, 0, err
	}
	return usage.Free, usage.Total, nil
}
