package vdev

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tfs-io/tfs/pkg/fs"
)

// lockImage takes an exclusive, non-blocking advisory lock on the backing
// file's descriptor, so two processes never open the same disk image at
// once.
func lockImage(f fs.File) error {
	if err := flockRetryEINTR(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return fmt.Errorf("vdev: lock disk image: %w", err)
	}
	return nil
}

func unlockImage(f fs.File) error {
	return flockRetryEINTR(int(f.Fd()), unix.LOCK_UN)
}

// flockRetryEINTR wraps unix.Flock, retrying on EINTR: a signal delivered
// while Open or Close is locking/unlocking the image otherwise makes the
// advisory lock spuriously fail or leak. There is no inode-match check
// here — the driver holds one open fd for its whole lifetime rather than reopening a path per
// acquisition, so there is nothing for the underlying file to have been
// swapped out from under.
func flockRetryEINTR(fd, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for range maxEINTRRetries {
		err = unix.Flock(fd, how)
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}
	return err
}
