package storage

import (
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/wkmp/core/internal/wkerrors"
)

// MinFreeBytes is the free-space floor that DiskSpaceOK checks against.
const MinFreeBytes = 100 * 1024 * 1024 // 100MB

// DiskSpaceInfo mirrors diskmanager.DiskSpaceInfo but is computed via
// gopsutil for cross-platform coverage without the teacher's
// per-OS syscall.Statfs build-tag split (spec §6, §7).
type DiskSpaceInfo struct {
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// CheckDiskSpace reports the free/used space on the filesystem
// containing path, and an error if statistics cannot be read.
func CheckDiskSpace(path string) (DiskSpaceInfo, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskSpaceInfo{}, wkerrors.New(err).
			Component("storage").Category(wkerrors.CategoryStorage).
			Context("operation", "check_disk_space").Context("path", path).Build()
	}
	return DiskSpaceInfo{
		TotalBytes: usage.Total,
		FreeBytes:  usage.Free,
		UsedBytes:  usage.Used,
	}, nil
}

// DiskSpaceOK reports whether free space at path is at least
// MinFreeBytes. The ingest pipeline and the Workflow Orchestrator do
// not call it.
func DiskSpaceOK(path string) (bool, error) {
	info, err := CheckDiskSpace(path)
	if err != nil {
		return false, err
	}
	return info.FreeBytes >= MinFreeBytes, nil
}
