// Package quota estimates disk capacity for the directory backing the
// persistence layer.
package quota

import "golang.org/x/sys/unix"

// Snapshot reports capacity for a filesystem. Fields are nil when the
// underlying measurement is unavailable; callers treat a nil field as
// unknown, never as zero.
type Snapshot struct {
	// Quota is the total capacity in bytes visible to this process.
	Quota *uint64
	// Usage is the number of bytes currently consumed.
	Usage *uint64
	// Percentage is usage over quota in percent.
	Percentage *float64
}

// Measure samples filesystem capacity at path. Measurement failures produce
// an empty snapshot rather than an error so status reporting keeps working on
// filesystems that cannot be queried.
func Measure(path string) Snapshot {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Snapshot{}
	}

	blockSize := uint64(stat.Bsize)
	total := stat.Blocks * blockSize
	free := stat.Bavail * blockSize
	if total == 0 {
		return Snapshot{}
	}

	used := total - free
	percentage := float64(used) / float64(total) * 100

	return Snapshot{
		Quota:      &total,
		Usage:      &used,
		Percentage: &percentage,
	}
}
