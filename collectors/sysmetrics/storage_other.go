//go:build !linux && !darwin && !freebsd

package sysmetrics

import (
	"github.com/shirou/gopsutil/v3/disk"
)

func statfsRoot(path string) (total, free uint64, err error) {
	u, err := disk.Usage(path)
	if err != nil {
		return 0, 0, err
	}
	used := u.Used
	if used > u.Total {
		used = u.Total
	}
	return u.Total, u.Total - used, nil
}
