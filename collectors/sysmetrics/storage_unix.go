//go:build linux || darwin || freebsd

package sysmetrics

import (
	"golang.org/x/sys/unix"
)

// statfsRoot returns total and free bytes of the filesystem holding path.
// Free counts blocks available to root, not just unprivileged users.
func statfsRoot(path string) (total, free uint64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize)
	return uint64(st.Blocks) * bsize, uint64(st.Bfree) * bsize, nil
}
